package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mahin/learnhub/internal/model"
)

// errNoCredentials means the request carried no Authorization header at all.
var errNoCredentials = errors.New("auth: no credentials presented")

// contextKey is an unexported type used for context keys in this package.
//
// Using a package-private type prevents collisions: only this package can
// create a key of type contextKey, so only this package can read or write
// Identity values in the context.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth enforces authentication on protected routes.
//
// It reads the JWT from the Authorization header ("Bearer <token>"),
// verifies it, and stores the caller's Identity in the request context.
// If the token is missing or invalid, it returns 401 Unauthorized with a
// structured body and stops the chain.
//
// WHY THE AUTHORIZATION HEADER AND NOT A COOKIE?
// This is a pure API backend consumed by non-browser clients as well as a
// frontend that already holds the provider token. Bearer headers are the
// standard transport for provider-issued JWTs and keep the server free of
// cookie/CSRF concerns.
func RequireAuth(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := extractIdentity(r, verifier)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin enforces that the verified caller holds the Admin role.
// Must be mounted after RequireAuth; an absent identity is treated as
// unauthenticated, a non-admin identity as forbidden.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
			return
		}
		if identity.Role != model.RoleAdmin {
			writeAuthError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext retrieves the verified caller identity from the
// request context.
//
// Returns (nil, false) if the request is anonymous — only possible on routes
// not wrapped in RequireAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// extractIdentity reads and verifies the bearer token.
func extractIdentity(r *http.Request, verifier *Verifier) (*Identity, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return nil, errNoCredentials
	}

	return verifier.Verify(strings.TrimSpace(header[len(prefix):]))
}

// writeAuthError emits the same JSON envelope the handler package uses.
// Kept local to avoid an import cycle between auth and handler.
func writeAuthError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + errType + `","message":"` + message + `"}`))
}
