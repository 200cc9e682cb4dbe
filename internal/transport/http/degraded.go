package http

import (
	"net"
	"net/http"
	"strings"
)

// hostMatcher recognises hosting platforms that buffer or cut streaming
// responses. Entries starting with a dot match as suffixes, others exactly.
type hostMatcher []string

func newHostMatcher(hosts []string) hostMatcher {
	m := make(hostMatcher, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			m = append(m, h)
		}
	}
	return m
}

// match reports whether the request is served through a buffering host.
// X-Forwarded-Host wins over Host since those platforms sit behind a proxy.
func (m hostMatcher) match(r *http.Request) bool {
	if len(m) == 0 {
		return false
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	for _, pattern := range m {
		if strings.HasPrefix(pattern, ".") {
			if strings.HasSuffix(host, pattern) || host == pattern[1:] {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	return false
}
