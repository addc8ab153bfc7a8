// Package contextx carries per-request identifiers that the backend
// clients forward as HTTP headers.
package contextx

type contextKey int

const (
	requestIDKey contextKey = iota
	companyKey
)
