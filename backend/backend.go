// Package backend defines the uniform contract shared by the external API
// adapters (chat completion, image generation, symbolic computation, parcel
// tracking): a request/response call that either returns content plus a
// consumption amount, or a classified Error.
package backend

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindAuthFailure    ErrorKind = "auth_failure"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindUnavailable    ErrorKind = "unavailable"
	// KindUnsupported means the adapter is not configured (e.g. no API key),
	// as opposed to a call that was attempted and failed.
	KindUnsupported ErrorKind = "unsupported"
)

type Error struct {
	Kind    ErrorKind
	Backend string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Backend, e.Kind, e.Message)
}

func NewError(kind ErrorKind, backend, format string, args ...any) *Error {
	return &Error{Kind: kind, Backend: backend, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, defaulting to Unavailable for errors that
// did not originate from an adapter (transport failures, timeouts).
func KindOf(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnavailable
}

func IsUnsupported(err error) bool {
	return KindOf(err) == KindUnsupported
}

// KindFromStatus maps an HTTP status code from a backend API to an error kind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuthFailure
	case status == 429:
		return KindRateLimited
	case status >= 400 && status < 500:
		return KindInvalidRequest
	default:
		return KindUnavailable
	}
}
