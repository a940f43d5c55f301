// Package contexthelpers stores request-scoped values used by templates and handlers.
package contexthelpers

type contextKey string

const (
	CurrentPathContextKey = contextKey("currentPath")
	CspNonceContextKey    = contextKey("cspNonce")
	TraceIDContextKey     = contextKey("traceID")
)
