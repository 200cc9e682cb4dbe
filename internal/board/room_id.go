package board

import (
	"net/url"
	"strings"
)

// DefaultRoom is used when a caller does not name a room.
const DefaultRoom = "whiteboard-default"

// CoursePrefix marks rooms scoped to a course.
const CoursePrefix = "course-"

// sessionPrefixes identify raw ids that are already canonical.
var sessionPrefixes = []string{"session-", "room-", CoursePrefix}

// courseKeys are the query parameters that may carry a course reference.
var courseKeys = []string{"courseId", "course_id", "course"}

// NormalizeRoomID maps a raw room identifier onto its canonical key.
// It is pure and must be applied on every read and write path.
func NormalizeRoomID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRoom
	}
	for _, prefix := range sessionPrefixes {
		if strings.HasPrefix(raw, prefix) {
			return raw
		}
	}
	if course, ok := courseFromQuery(raw); ok {
		return CoursePrefix + course
	}
	return raw
}

func courseFromQuery(raw string) (string, bool) {
	query := raw
	if i := strings.IndexByte(query, '?'); i >= 0 {
		query = query[i+1:]
	}
	if !strings.Contains(query, "=") {
		return "", false
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", false
	}
	for _, key := range courseKeys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v, true
		}
	}
	return "", false
}
