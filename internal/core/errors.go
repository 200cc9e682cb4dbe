package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeInvalidEvent = "invalid_event"
	ErrCodeInvalidPage  = "invalid_page"
	ErrCodeNoManifest   = "no_manifest"
	ErrCodeForbidden    = "forbidden"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal"
)

var (
	ErrInvalidPage = errors.New("page must be a positive integer")
	ErrNoManifest  = errors.New("no pdf manifest in room")
	ErrSinkFull    = errors.New("sink buffer full")
	ErrSinkClosed  = errors.New("sink closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code string, err error) *CoreError {
	return &CoreError{Code: code, Message: err.Error(), Err: err}
}

// ErrorCode extracts the code from a CoreError, or ErrCodeInternal.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
