package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned when the breaker rejects a request without
	// sending it.
	ErrCircuitOpen = errors.New("backend: circuit open")

	// ErrNoCompany is returned when ctx carries no company, which every
	// service key is scoped by.
	ErrNoCompany = errors.New("backend: no company in context")

	// ErrEmptyName is returned by VerifyName for a blank name.
	ErrEmptyName = errors.New("backend: empty item name")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("backend: %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// IsRetryable reports whether a GET that failed with err is worth another
// attempt: 429, 502, 503 and 504 responses and transport errors are.
// Context errors and an open circuit are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Anything else reaching here came from the transport or decoding.
	return !isDecodeError(err)
}

// IsBackendFailure reports whether err should count against the circuit
// breaker. Client errors such as 404 or 409 say nothing about backend
// health and are ignored.
func IsBackendFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}
