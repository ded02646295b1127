package supabase

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the claims Supabase Auth puts in an access token
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	AAL       string `json:"aal"`
}

// toUser extracts the user from verified claims. The token's role claim is
// the Postgres role ("authenticated"), not the application role, so it is
// not carried over.
func (c *Claims) toUser() (*User, error) {
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: sub is not a UUID", ErrInvalidToken)
	}
	return &User{ID: id, Email: c.Email}, nil
}
