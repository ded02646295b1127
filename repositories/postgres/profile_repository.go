package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vinodhsukumarvictor/Church-Bible-App/models"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"go.uber.org/zap"
)

// ProfileRepository implements the repositories.ProfileRepository interface
type ProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB, logger *zap.Logger) repositories.ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetRole retrieves the role of a profile. Inside a transaction the row is
// locked until commit so that the old role recorded in the audit log is the
// one actually replaced.
func (r *ProfileRepository) GetRole(ctx context.Context, id uuid.UUID) (models.Role, error) {
	query := `SELECT role FROM profiles WHERE id = $1`
	if InTransaction(ctx) {
		query += ` FOR UPDATE`
	}

	var role sql.NullString
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get profile role: %w", err)
	}

	return models.Role(role.String), nil
}

// UpdateRole updates the role of a profile
func (r *ProfileRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	query := `UPDATE profiles SET role = $2 WHERE id = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, string(role))
	if err != nil {
		return fmt.Errorf("failed to update profile role: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		r.logger.Debug("role update matched no profile", zap.String("id", id.String()))
	}
	return nil
}

// GetByIDs retrieves display fields for a set of profiles
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT id, full_name, email FROM profiles WHERE id = ANY($1)`

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, pq.Array(strIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p := &models.Profile{}
		var fullName, email sql.NullString
		if err := rows.Scan(&p.ID, &fullName, &email); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		p.FullName = nullStringPtr(fullName)
		p.Email = nullStringPtr(email)
		profiles = append(profiles, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

func nullStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
