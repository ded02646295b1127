package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"go.uber.org/zap"
)

// AuditRepository implements the repositories.AuditRepository interface
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) repositories.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

const auditColumns = `id, changed_by, target_user, old_role, new_role, reason, details, created_at`

// Insert inserts a new audit log entry. created_at comes from the database.
func (r *AuditRepository) Insert(ctx context.Context, rc *models.RoleChange) error {
	query := `
		INSERT INTO admin_audit_log (id, changed_by, target_user, old_role, new_role, reason, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		rc.ID,
		rc.ChangedBy,
		rc.TargetUser,
		rc.OldRole,
		rc.NewRole,
		rc.Reason,
		jsonParam(rc.Details),
	).Scan(&rc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	r.logger.Debug("audit log inserted", zap.String("id", rc.ID.String()), zap.String("new_role", rc.NewRole))
	return nil
}

// ListBefore retrieves audit rows newest first
func (r *AuditRepository) ListBefore(ctx context.Context, before *time.Time, limit int) ([]*models.RoleChange, error) {
	var (
		query string
		args  []interface{}
	)
	if before != nil {
		query = `SELECT ` + auditColumns + ` FROM admin_audit_log WHERE created_at < $1 ORDER BY created_at DESC LIMIT $2`
		args = []interface{}{*before, limit}
	} else {
		query = `SELECT ` + auditColumns + ` FROM admin_audit_log ORDER BY created_at DESC LIMIT $1`
		args = []interface{}{limit}
	}

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.RoleChange, 0, limit)
	for rows.Next() {
		var (
			rc                models.RoleChange
			changedBy, target uuid.NullUUID
			oldRole, reason   *string
			details           []byte
		)
		if err := rows.Scan(&rc.ID, &changedBy, &target, &oldRole, &rc.NewRole, &reason, &details, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if changedBy.Valid {
			rc.ChangedBy = &changedBy.UUID
		}
		if target.Valid {
			rc.TargetUser = &target.UUID
		}
		rc.OldRole = oldRole
		rc.Reason = reason
		if len(details) > 0 {
			rc.Details = json.RawMessage(details)
		}
		logs = append(logs, &rc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return logs, nil
}

// jsonParam sends JSONB as text; lib/pq would encode a []byte as bytea
func jsonParam(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
