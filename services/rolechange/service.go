// Package rolechange updates a member's role and records the change in the
// admin audit log.
package rolechange

import (
	"context"

	"github.com/google/uuid"
	"github.com/vinodhsukumarvictor/Church-Bible-App/internal/observability"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services"
	"go.uber.org/zap"
)

// Request is the body of POST /api/admin/changeRole
type Request struct {
	TargetUserID string                 `json:"targetUserId" validate:"required,uuid"`
	NewRole      string                 `json:"newRole" validate:"required,max=64"`
	Reason       string                 `json:"reason,omitempty" validate:"max=1000"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// Command is a validated role change issued by an authorized actor
type Command struct {
	Actor        *models.Principal
	TargetUserID uuid.UUID
	NewRole      models.Role
	Reason       string
	Details      map[string]interface{}
	RequestID    string
}

// NewCommand builds a command from a validated request
func NewCommand(actor *models.Principal, req *Request, requestID string) (Command, error) {
	target, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		return Command{}, services.ErrMissingParameters
	}
	return Command{
		Actor:        actor,
		TargetUserID: target,
		NewRole:      models.Role(req.NewRole),
		Reason:       req.Reason,
		Details:      req.Details,
		RequestID:    requestID,
	}, nil
}

// Config holds configuration for the Service
type Config struct {
	// AtomicAudit runs the role update and the audit insert in one
	// transaction, so a failed audit write undoes the update
	AtomicAudit bool
}

// Service applies role changes
type Service struct {
	profiles repositories.ProfileRepository
	audits   repositories.AuditRepository
	txMgr    repositories.TransactionManager
	cfg      Config
	logger   *zap.Logger
}

// NewService creates a new role change service
func NewService(
	profiles repositories.ProfileRepository,
	audits repositories.AuditRepository,
	txMgr repositories.TransactionManager,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles: profiles,
		audits:   audits,
		txMgr:    txMgr,
		cfg:      cfg,
		logger:   logger,
	}
}

// Configured reports whether the service has a database behind it
func (s *Service) Configured() bool {
	if s == nil || s.profiles == nil || s.audits == nil {
		return false
	}
	return !s.cfg.AtomicAudit || s.txMgr != nil
}

// ChangeRole sets the target's role and writes the audit row.
//
// In the default mode a failed audit write does not undo the update: the
// change is returned together with an error of type partial_failure.
func (s *Service) ChangeRole(ctx context.Context, cmd Command) (*models.RoleChange, error) {
	if !s.Configured() {
		return nil, services.ErrNotConfigured
	}
	if !cmd.Actor.IsPrivileged() {
		return nil, services.ErrForbidden
	}

	if s.cfg.AtomicAudit {
		rc, err := services.RunInTx(ctx, s.txMgr, func(txCtx context.Context) (*models.RoleChange, error) {
			rc, err := s.apply(txCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := s.audits.Insert(txCtx, rc); err != nil {
				return nil, services.WrapInternal("failed to write audit log", err)
			}
			return rc, nil
		})
		if err != nil {
			if services.GetErrorType(err) == "" {
				err = services.WrapInternal("role change transaction failed", err)
			}
			return nil, err
		}
		s.logChange(rc)
		return rc, nil
	}

	rc, err := s.apply(ctx, cmd)
	if err != nil {
		return nil, err
	}

	if err := s.audits.Insert(ctx, rc); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("request_id", cmd.RequestID),
			zap.String("changed_by", cmd.Actor.ID.String()),
			zap.String("target_user", cmd.TargetUserID.String()),
			zap.Error(err),
		)
		observability.CaptureWarning(ctx, err, map[string]string{
			"component": "rolechange",
			"stage":     "audit_insert",
		})
		return rc, services.NewDomainError(services.ErrorTypePartialFailure, "audit log write failed", err)
	}

	s.logChange(rc)
	return rc, nil
}

// apply reads the old role and writes the new one. The returned change is
// ready to be inserted.
func (s *Service) apply(ctx context.Context, cmd Command) (*models.RoleChange, error) {
	oldRole, err := s.profiles.GetRole(ctx, cmd.TargetUserID)
	if err != nil {
		return nil, services.WrapInternal("failed to read target role", err)
	}

	if err := s.profiles.UpdateRole(ctx, cmd.TargetUserID, cmd.NewRole); err != nil {
		return nil, services.WrapInternal("failed to update role", err)
	}

	rc := models.NewRoleChange(cmd.Actor.ID, cmd.TargetUserID, oldRole, cmd.NewRole).
		WithReason(cmd.Reason)
	if details := mergeDetails(cmd.RequestID, cmd.Details); details != nil {
		rc.WithDetails(details)
	}
	return rc, nil
}

func (s *Service) logChange(rc *models.RoleChange) {
	fields := []zap.Field{
		zap.String("audit_id", rc.ID.String()),
		zap.String("new_role", rc.NewRole),
	}
	if rc.ChangedBy != nil {
		fields = append(fields, zap.String("changed_by", rc.ChangedBy.String()))
	}
	if rc.TargetUser != nil {
		fields = append(fields, zap.String("target_user", rc.TargetUser.String()))
	}
	s.logger.Info("role changed", fields...)
}

// mergeDetails puts request_id under the caller's details; a caller key of
// the same name wins
func mergeDetails(requestID string, details map[string]interface{}) map[string]interface{} {
	if requestID == "" && len(details) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(details)+1)
	if requestID != "" {
		merged["request_id"] = requestID
	}
	for k, v := range details {
		merged[k] = v
	}
	return merged
}
