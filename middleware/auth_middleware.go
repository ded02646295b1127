package middleware

import (
	"context"
	"net/http"

	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/identity"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// CallerResolver resolves a bearer token into a principal
type CallerResolver interface {
	Configured() bool
	ResolveCaller(ctx context.Context, token string) (*models.Principal, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	resolver CallerResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver CallerResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// RequireAuth resolves the bearer token in the Authorization header and
// stores the caller in the request context
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		if !m.resolver.Configured() {
			m.logger.Error("backend not configured",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteInternalServerError(w, services.GetErrorMessage(services.ErrNotConfigured))
			return
		}

		principal, err := m.resolver.ResolveCaller(ctx, identity.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			if services.IsUnauthorizedError(err) {
				m.logger.Warn("authentication failed",
					zap.String("request_id", requestID),
					zap.Error(err))
				_ = utils.WriteUnauthorized(w, services.GetErrorMessage(err))
				return
			}
			m.logger.Error("failed to resolve caller",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", principal.ID.String()),
			zap.String("role", string(principal.Role)))

		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
	})
}

// RequirePrivileged rejects callers whose profile role is not admin,
// super_admin or owner. It must run after RequireAuth.
func (m *AuthMiddleware) RequirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		principal := GetPrincipalFromContext(ctx)
		if principal == nil {
			m.logger.Error("principal not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "")
			return
		}

		if !principal.IsPrivileged() {
			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("user_id", principal.ID.String()),
				zap.String("role", string(principal.Role)))
			_ = utils.WriteForbidden(w, services.GetErrorMessage(services.ErrForbidden))
			return
		}

		next.ServeHTTP(w, r)
	})
}
