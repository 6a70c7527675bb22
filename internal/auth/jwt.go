// Package auth verifies identity claims supplied by the external identity
// provider and makes them available to handlers via the request context.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. The identity provider (external to this system) authenticates the user
//    and issues a signed JWT containing their claims
// 2. The client sends it on every API call: Authorization: Bearer <jwt>
// 3. Middleware verifies the signature and expiry, extracts the claims,
//    and stores an Identity value in the request context
// 4. Handlers read the Identity to know who is calling and what role they hold
//
// This service never issues tokens — it only consumes them. The HS256 secret
// is shared with the provider so signatures can be verified locally without
// a network round trip.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mahin/learnhub/internal/model"
)

// Identity is the verified set of claims about the caller.
//
// Key is the provider's stable subject identifier ("sub") — the lookup key
// for claims sync. Email and Username are optional profile claims; Role is
// what the provider asserts about the caller's access level and is what the
// admin gate checks.
type Identity struct {
	Key      string
	Email    string
	Username string
	Role     model.Role
}

// Verifier validates provider-issued JWTs.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier for tokens signed with the given HS256
// secret by the given issuer. The secret should be at least 32 bytes of
// random data in production.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if issuer == "" {
		return nil, errors.New("auth: JWT issuer must not be empty")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}, nil
}

// claims is the expected JWT payload. The registered "sub" claim carries the
// identity key; email, preferred_username and role are private claims set by
// the provider.
type claims struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"preferred_username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates a JWT string and returns the caller's Identity.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches the configured provider
//   - Algorithm is HS256
//
// Passing jwt.WithValidMethods prevents algorithm confusion attacks: without
// it an attacker could present a token with alg "none" or a mismatched
// asymmetric algorithm and some parsers would accept it.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	// An unknown or missing role claim degrades to Student — the provider
	// may not stamp a role on self-service accounts at all.
	role := model.Role(c.Role)
	if !role.Valid() {
		role = model.RoleStudent
	}

	return &Identity{
		Key:      c.Subject,
		Email:    c.Email,
		Username: c.Username,
		Role:     role,
	}, nil
}
