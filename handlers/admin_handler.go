package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/vinodhsukumarvictor/Church-Bible-App/middleware"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/audit"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/identity"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/rolechange"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
	"go.uber.org/zap"
)

// Authorizer resolves a bearer token and requires a privileged role
type Authorizer interface {
	Configured() bool
	Authorize(ctx context.Context, token string) (*models.Principal, error)
}

// RoleChanger applies role changes
type RoleChanger interface {
	Configured() bool
	ChangeRole(ctx context.Context, cmd rolechange.Command) (*models.RoleChange, error)
}

// AuditLister reads pages of the admin audit log
type AuditLister interface {
	Configured() bool
	ListPage(ctx context.Context, req audit.PageRequest) (*models.AuditPage, error)
}

// AdminHandler handles the admin console endpoints
type AdminHandler struct {
	authz  Authorizer
	roles  RoleChanger
	audits AuditLister
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(authz Authorizer, roles RoleChanger, audits AuditLister, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		authz:  authz,
		roles:  roles,
		audits: audits,
		logger: logger,
	}
}

// HandleChangeRole handles POST /api/admin/changeRole.
// The rate limit runs before this handler; the request body is checked
// before the caller so malformed requests never reach the auth backend.
func (h *AdminHandler) HandleChangeRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req rolechange.Request
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			HandleServiceError(w, r, services.ErrMissingParameters, h.logger)
			return
		}
		h.logger.Debug("invalid change role body",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if !h.authz.Configured() || !h.roles.Configured() {
		HandleServiceError(w, r, services.ErrNotConfigured, h.logger)
		return
	}

	actor, err := h.authz.Authorize(ctx, identity.BearerToken(r.Header.Get("Authorization")))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	cmd, err := rolechange.NewCommand(actor, &req, requestID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	if _, err := h.roles.ChangeRole(ctx, cmd); err != nil {
		if services.IsPartialFailure(err) {
			_ = utils.WriteOK(w, utils.OKResponse{OK: true, Warning: services.GetErrorMessage(err)})
			return
		}
		HandleServiceError(w, r, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, utils.OKResponse{OK: true})
}

// HandleListAudit handles GET /api/admin/audit. The route is guarded by
// RequireAuth and RequirePrivileged.
func (h *AdminHandler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	req, err := audit.ParsePageRequest(query.Get("limit"), query.Get("after"))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	if !h.audits.Configured() {
		HandleServiceError(w, r, services.ErrNotConfigured, h.logger)
		return
	}

	page, err := h.audits.ListPage(ctx, req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	h.logger.Debug("audit page listed",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.Int("limit", req.Limit),
		zap.Int("rows", len(page.Data)),
		zap.Bool("has_more", page.HasMore))

	if err := utils.WriteOK(w, page); err != nil {
		h.logger.Error("failed to write audit page", zap.Error(err))
	}
}
