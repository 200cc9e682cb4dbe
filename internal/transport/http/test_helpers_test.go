package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardsync/internal/auth"
	"github.com/vovakirdan/boardsync/internal/board"
	"github.com/vovakirdan/boardsync/internal/config"
	"github.com/vovakirdan/boardsync/internal/core"
	"github.com/vovakirdan/boardsync/internal/rtc"
	"github.com/vovakirdan/boardsync/internal/store/memory"
)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *memory.Store
	auth  *auth.Service
}

type testOption func(*config.Config, *testDeps)

type testDeps struct {
	auth   *auth.Service
	engine rtc.Engine
}

func withAuth(secret string) testOption {
	return func(cfg *config.Config, d *testDeps) {
		cfg.JWTSecret = secret
		d.auth = auth.NewService(&auth.JWTConfig{
			Secret:   []byte(secret),
			Issuer:   "test",
			Audience: "test",
			TTL:      time.Hour,
		}, auth.Policy{
			Restricted: []board.EventKind{board.KindClear, board.KindClearAll, board.KindPdfSet, board.KindSetPage},
			Privileged: []string{"teacher"},
		})
	}
}

func withEngine(e rtc.Engine) testOption {
	return func(_ *config.Config, d *testDeps) { d.engine = e }
}

func withConfig(f func(*config.Config)) testOption {
	return func(cfg *config.Config, _ *testDeps) { f(cfg) }
}

func startTestServer(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.KeepAlive = time.Hour
	cfg.BufferedHosts = nil

	deps := &testDeps{auth: auth.NewService(nil, auth.Policy{})}
	for _, opt := range opts {
		opt(&cfg, deps)
	}

	logger := zerolog.Nop()
	st := memory.New()
	hub := core.NewHub(st, nil, core.Options{})

	server := NewServer(hub, deps.auth, deps.engine, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, auth: deps.auth}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, token string) (*http.Response, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return e.do(t, http.MethodPost, path, bytes.NewReader(payload), token)
}

func (e *testEnv) get(t *testing.T, path, token string) (*http.Response, map[string]any) {
	t.Helper()
	return e.do(t, http.MethodGet, path, nil, token)
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Reader, token string) (*http.Response, map[string]any) {
	t.Helper()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, e.ts.URL+path, body)
	} else {
		req, err = http.NewRequest(method, e.ts.URL+path, nil)
	}
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// sseReader yields the data payloads of an event stream.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(resp *http.Response) *sseReader {
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	return &sseReader{scanner: sc}
}

func (r *sseReader) next(t *testing.T) map[string]any {
	t.Helper()

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &msg); err != nil {
			t.Fatalf("decode sse data %q: %v", line, err)
		}
		return msg
	}
	if err := r.scanner.Err(); err != nil {
		t.Fatalf("read sse: %v", err)
	}
	return nil
}
