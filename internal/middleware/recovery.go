package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery catches panics from downstream handlers, logs them with the
// correlation ID and stack trace, and returns a structured 500 body instead
// of letting the connection die.
//
// The client sees only a generic message plus the opaque traceId; the stack
// trace stays in the server log.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses this sentinel to abort a connection on
				// purpose; re-panic so that still works.
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				traceID := CorrelationIDFromContext(r.Context())
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlationId", traceID),
					slog.String("stack", string(debug.Stack())),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "internal_error",
					"message": "An internal error occurred",
					"traceId": traceID,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
