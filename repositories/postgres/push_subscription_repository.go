package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"go.uber.org/zap"
)

// PushSubscriptionRepository implements the repositories.PushSubscriptionRepository interface
type PushSubscriptionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPushSubscriptionRepository creates a new push subscription repository
func NewPushSubscriptionRepository(db *DB, logger *zap.Logger) repositories.PushSubscriptionRepository {
	return &PushSubscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores a subscription, refreshing its keys when it already exists
func (r *PushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, endpoint)
		DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth
	`

	_, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth)
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}

	r.logger.Debug("push subscription saved", zap.Bool("anonymous", sub.UserID == nil))
	return nil
}

// List retrieves subscriptions, optionally restricted to one user
func (r *PushSubscriptionRepository) List(ctx context.Context, userID *uuid.UUID) ([]*models.PushSubscription, error) {
	query := `SELECT user_id, endpoint, p256dh, auth FROM push_subscriptions`
	var args []interface{}
	if userID != nil {
		query += ` WHERE user_id = $1`
		args = append(args, *userID)
	}

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.PushSubscription
	for rows.Next() {
		sub := &models.PushSubscription{}
		var uid uuid.NullUUID
		if err := rows.Scan(&uid, &sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		if uid.Valid {
			sub.UserID = &uid.UUID
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push subscriptions: %w", err)
	}

	return subs, nil
}

// DeleteByEndpoints removes subscriptions whose endpoint is in endpoints
func (r *PushSubscriptionRepository) DeleteByEndpoints(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}

	query := `DELETE FROM push_subscriptions WHERE endpoint = ANY($1)`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, pq.Array(endpoints))
	if err != nil {
		return 0, fmt.Errorf("failed to delete push subscriptions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n, nil
}
