// Package identity turns a bearer token into an authenticated principal and
// decides whether that principal may use the admin console.
package identity

import (
	"context"
	"strings"

	"github.com/vinodhsukumarvictor/Church-Bible-App/internal/observability"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/supabase"
	"go.uber.org/zap"
)

// Resolver resolves callers. The role always comes from profiles.role.
type Resolver struct {
	verifier supabase.TokenVerifier
	profiles repositories.ProfileRepository
	logger   *zap.Logger
}

// NewResolver creates a resolver. Either dependency may be nil, in which
// case every call fails with services.ErrNotConfigured.
func NewResolver(verifier supabase.TokenVerifier, profiles repositories.ProfileRepository, logger *zap.Logger) *Resolver {
	return &Resolver{
		verifier: verifier,
		profiles: profiles,
		logger:   logger,
	}
}

// Configured reports whether both the token verifier and the profile store
// are wired
func (r *Resolver) Configured() bool {
	return r != nil && r.verifier != nil && r.profiles != nil
}

// ResolveCaller verifies token and loads the caller's role
func (r *Resolver) ResolveCaller(ctx context.Context, token string) (*models.Principal, error) {
	if !r.Configured() {
		return nil, services.ErrNotConfigured
	}
	if token == "" {
		return nil, services.ErrMissingToken
	}

	user, err := r.verifier.VerifyToken(ctx, token)
	if err != nil {
		if supabase.IsUnavailable(err) {
			return nil, services.WrapInternal("failed to verify token", err)
		}
		r.logger.Debug("token rejected", zap.Error(err))
		return nil, services.WrapUnauthorized(services.GetErrorMessage(services.ErrInvalidToken), err)
	}

	role, err := r.profiles.GetRole(ctx, user.ID)
	if err != nil {
		return nil, services.WrapInternal("failed to load caller role", err)
	}

	observability.SetUser(ctx, user.ID.String(), user.Email)

	return &models.Principal{
		ID:    user.ID,
		Email: user.Email,
		Role:  role,
	}, nil
}

// Authorize resolves the caller and requires a privileged role
func (r *Resolver) Authorize(ctx context.Context, token string) (*models.Principal, error) {
	principal, err := r.ResolveCaller(ctx, token)
	if err != nil {
		return nil, err
	}
	if !principal.IsPrivileged() {
		r.logger.Info("privileged access denied",
			zap.String("user_id", principal.ID.String()),
			zap.String("role", string(principal.Role)),
		)
		return principal, services.ErrForbidden
	}
	return principal, nil
}

// BearerToken extracts the token from an Authorization header value. It
// returns "" when the header is missing or not a bearer credential.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
