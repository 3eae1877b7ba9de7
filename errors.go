package ddns

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for missing or invalid startup configuration.
	// It is the only kind of error that should stop the process.
	ErrConfiguration = errors.New("invalid configuration")

	ErrUnableToResolvePublicIP = errors.New("unable to resolve public IP")

	// Provider read errors.
	ErrRecordLookupFailed  = errors.New("record lookup failed")
	ErrResponseParseFailed = errors.New("unable to parse provider response")
	ErrRecordNotFound      = errors.New("record not found")

	// Provider write errors.
	ErrUpdateFailed   = errors.New("record update failed")
	ErrUpdateRejected = errors.New("record update rejected by provider")

	// ErrUnexpected indicates a broken invariant inside this package.
	ErrUnexpected = errors.New("unexpected internal error")
)

// ResponseError is returned when a provider answers with a non-success status.
// Body holds the provider's response so operators can see why, e.g. rate limiting or bad credentials.
type ResponseError struct {
	Kind       error
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: provider returned status %d: %s", e.Kind, e.StatusCode, e.Body)
}

func (e *ResponseError) Unwrap() error { return e.Kind }

// ErrorKind classifies err for logs and metrics.
// It returns one of "configuration", "resolution", "provider_read", "provider_write", "internal" or "unknown".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrUnableToResolvePublicIP):
		return "resolution"
	// a write can fail while re-reading the record, so write kinds win
	case errors.Is(err, ErrUpdateFailed), errors.Is(err, ErrUpdateRejected):
		return "provider_write"
	case errors.Is(err, ErrRecordLookupFailed),
		errors.Is(err, ErrResponseParseFailed),
		errors.Is(err, ErrRecordNotFound):
		return "provider_read"
	case errors.Is(err, ErrUnexpected):
		return "internal"
	}
	return "unknown"
}
