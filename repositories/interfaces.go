package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
)

// TransactionManager manages database transactions. Repositories called with
// the context passed to fn run inside the transaction.
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// ProfileRepository reads and updates rows of the profiles table
type ProfileRepository interface {
	// GetRole returns the profile's role. A missing row or a null role
	// yields an empty role and no error.
	GetRole(ctx context.Context, id uuid.UUID) (models.Role, error)

	// UpdateRole sets the role column. Updating a missing row is not an error.
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error

	// GetByIDs fetches id, full_name and email for the given ids
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Profile, error)
}

// AuditRepository handles admin_audit_log rows. Rows are append-only: there is
// no update or delete.
type AuditRepository interface {
	// Insert writes a role change and fills CreatedAt from the database clock
	Insert(ctx context.Context, rc *models.RoleChange) error

	// ListBefore returns up to limit rows ordered by created_at DESC.
	// When before is non-nil only rows with created_at strictly older are returned.
	ListBefore(ctx context.Context, before *time.Time, limit int) ([]*models.RoleChange, error)
}

// PushSubscriptionRepository handles push_subscriptions rows
type PushSubscriptionRepository interface {
	// Upsert inserts or refreshes the keys of a (user_id, endpoint) subscription
	Upsert(ctx context.Context, sub *models.PushSubscription) error

	// List returns every subscription, or only the user's when userID is non-nil
	List(ctx context.Context, userID *uuid.UUID) ([]*models.PushSubscription, error)

	// DeleteByEndpoints removes subscriptions by endpoint and returns the number removed
	DeleteByEndpoints(ctx context.Context, endpoints []string) (int64, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Profiles          ProfileRepository
	AuditLogs         AuditRepository
	PushSubscriptions PushSubscriptionRepository
}
