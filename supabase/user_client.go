package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// UserClient verifies tokens by asking the auth server who they belong to
type UserClient struct {
	userURL    string
	apiKey     string
	httpClient *http.Client
}

// NewUserClient creates a remote verifier. apiKey is sent as the apikey header.
func NewUserClient(projectURL, apiKey string, timeout time.Duration) *UserClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &UserClient{
		userURL:    authURL(projectURL, "/user"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// VerifyToken calls GET /auth/v1/user with the token
func (c *UserClient) VerifyToken(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidToken
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: user endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", ErrUnavailable, err)
	}

	id, err := uuid.Parse(body.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id is not a UUID", ErrInvalidToken)
	}
	return &User{ID: id, Email: body.Email}, nil
}
