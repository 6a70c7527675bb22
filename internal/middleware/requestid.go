// Package middleware contains the cross-cutting HTTP middleware: correlation
// IDs, request logging, and panic recovery.
package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// contextKey is an unexported type for context keys in this package, so no
// other package can shadow the correlation ID value.
type contextKey string

const correlationIDKey contextKey = "correlationID"

// CorrelationHeader is the header carrying the request's correlation ID, in
// both directions: honored on the way in, echoed on the way out.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationID assigns every request an opaque correlation ID.
//
// If the caller (or an upstream proxy) already set X-Correlation-ID we keep
// it, so one ID follows a request across services. Otherwise we generate an
// xid — 20 chars, URL-safe, sortable by creation time.
//
// The ID is stored in the request context (for the logger and for error
// bodies) and echoed on the response so clients can quote it when reporting
// a failure.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(CorrelationHeader)
		if id == "" {
			id = xid.New().String()
		}

		w.Header().Set(CorrelationHeader, id)

		ctx := context.WithValue(r.Context(), correlationIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CorrelationIDFromContext returns the request's correlation ID, or "" if
// the CorrelationID middleware did not run (e.g. in isolated handler tests).
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}
