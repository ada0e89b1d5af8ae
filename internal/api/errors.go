package api

import (
	"errors"
	"fmt"
)

// Kind classifies why a request to the commerce API failed.
type Kind int

const (
	// KindNetwork means the request never produced an HTTP response.
	KindNetwork Kind = iota + 1
	// KindRejected means the server answered with a 4xx status.
	KindRejected
	// KindServer means the server answered with a 5xx (or other non-2xx) status.
	KindServer
	// KindDecode means the response body could not be understood.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation.
type Error struct {
	Op      string // human operation, e.g. "fetch products"
	Kind    Kind
	Status  int    // HTTP status; 0 for network failures
	Message string // trimmed response body snippet, if any
	Err     error
}

func (e *Error) Error() string {
	msg := "failed to " + e.Op
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", msg, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d", msg, e.Status)
	case e.Err != nil:
		return msg + ": " + e.Err.Error()
	default:
		return msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsRetryable reports whether err wraps a retryable *Error.
func IsRetryable(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Retryable()
}

func kindForStatus(status int) Kind {
	if status >= 400 && status < 500 {
		return KindRejected
	}
	return KindServer
}
