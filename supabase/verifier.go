// Package supabase verifies Supabase Auth access tokens, either locally
// against the project's signing keys or remotely through the GoTrue user
// endpoint.
package supabase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is malformed, has a bad
	// signature or is rejected by the auth server
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is not the project
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience does not match
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrUnavailable marks failures on our side or the auth server's side.
	// These are not the caller's fault and must not be reported as 401.
	ErrUnavailable = errors.New("auth backend unavailable")

	// ErrJWKSFetchFailed is returned when the signing keys cannot be fetched
	ErrJWKSFetchFailed = fmt.Errorf("failed to fetch JWKS: %w", ErrUnavailable)
)

// User is the identity a verified token belongs to
type User struct {
	ID    uuid.UUID
	Email string
}

// TokenVerifier turns a bearer token into a user
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*User, error)
}

// IsUnavailable reports whether err came from the auth backend rather than
// from a bad token
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func authURL(projectURL, path string) string {
	return projectURL + "/auth/v1" + path
}
