package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/openai/openai-go"
)

// ErrMissingCredential is returned when a completer is built without an API key.
var ErrMissingCredential = errors.New("gateway: missing provider credential")

// ErrorKind categorizes completion failures for logs and metrics.
type ErrorKind int8

const (
	// KindUnknown is any failure that could not be classified.
	KindUnknown ErrorKind = iota
	// KindAuth covers 401/403 responses (bad or revoked key).
	KindAuth
	// KindRateLimit covers 429 responses and exhausted quota.
	KindRateLimit
	// KindTransient covers 5xx responses, timeouts and connection failures.
	KindTransient
	// KindBadRequest covers other 4xx responses (prompt too long, policy).
	KindBadRequest
	// KindEmptyResponse is a 200 with no usable completion text.
	KindEmptyResponse
	// KindCanceled is a call abandoned because its context was canceled.
	KindCanceled
)

// String returns the label used for the kind in logs and metrics.
func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindBadRequest:
		return "bad_request"
	case KindEmptyResponse:
		return "empty_response"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is a classified completion failure.
type Error struct {
	Err        error
	Kind       ErrorKind
	StatusCode int
}

// Error implements the error interface. The message is the underlying
// provider error so it can be shown to the user unchanged.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindUnknown if it was never classified.
func KindOf(err error) ErrorKind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

// classify wraps err into an *Error, inspecting provider status codes.
func classify(err error) *Error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Err: err, Kind: KindCanceled}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Err: err, Kind: KindTransient}
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &Error{Err: err, Kind: kindForStatus(apiErr.StatusCode), StatusCode: apiErr.StatusCode}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Err: err, Kind: KindTransient}
	}

	return &Error{Err: err, Kind: KindUnknown}
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusRequestTimeout || status >= 500:
		return KindTransient
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}
