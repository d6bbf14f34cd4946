package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-outpass-api/internal/models"
)

const userColumns = `id, email, full_name, role, society_id,
is_flagged, flag_type, flag_reason, flagged_by, flagged_at,
active, created_at, updated_at`

// UserRepository reads subjects and writes flag state. Registration and
// membership management live in the identity service; this API only consumes
// them.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository constructs the repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID loads a user.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// ListBulkSelectable returns active students of a society that carry no flag
// of any type. Flagged students never appear in the candidate list.
func (r *UserRepository) ListBulkSelectable(ctx context.Context, societyID string) ([]models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users
WHERE role = $1 AND active = TRUE AND is_flagged = FALSE AND ($2 = '' OR society_id = $2)
ORDER BY full_name ASC`, userColumns)
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, models.RoleStudent, societyID); err != nil {
		return nil, fmt.Errorf("list selectable students: %w", err)
	}
	return users, nil
}

// SetFlag marks a student. Re-flagging overwrites the previous flag, which
// keeps the toggle idempotent.
func (r *UserRepository) SetFlag(ctx context.Context, id string, flagType models.FlagType, reason, flaggedBy string, at time.Time) error {
	query := `UPDATE users
SET is_flagged = TRUE, flag_type = $2, flag_reason = $3, flagged_by = $4, flagged_at = $5, updated_at = $5
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, flagType, reason, flaggedBy, at.UTC())
	if err != nil {
		return fmt.Errorf("set flag: %w", err)
	}
	return requireOneRow(res, "set flag")
}

// ClearFlag removes any flag. Clearing an unflagged student is a no-op write.
func (r *UserRepository) ClearFlag(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users
SET is_flagged = FALSE, flag_type = NULL, flag_reason = NULL, flagged_by = NULL, flagged_at = NULL, updated_at = $2
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at.UTC())
	if err != nil {
		return fmt.Errorf("clear flag: %w", err)
	}
	return requireOneRow(res, "clear flag")
}
