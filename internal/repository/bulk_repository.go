package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-outpass-api/internal/models"
)

const bulkColumns = `id, society_id, created_by, reason, start_date, end_date, exit_time, return_time,
document_url, status, decided_by, decided_at, created_at, updated_at`

// BulkRepository handles persistence for bulk pass requests and their fan-out
// rows. Parent and children always move inside one transaction.
type BulkRepository struct {
	db *sqlx.DB
}

// NewBulkRepository constructs the repository.
func NewBulkRepository(db *sqlx.DB) *BulkRepository {
	return &BulkRepository{db: db}
}

// CreateWithChildren inserts the batch and every child in a single
// transaction: either all rows land or none do.
func (r *BulkRepository) CreateWithChildren(ctx context.Context, bulk *models.BulkPassRequest, children []models.PassRequest) error {
	now := time.Now().UTC()
	if bulk.ID == "" {
		bulk.ID = uuid.NewString()
	}
	if bulk.CreatedAt.IsZero() {
		bulk.CreatedAt = now
	}
	bulk.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	parentQuery := `INSERT INTO bulk_pass_requests (id, society_id, created_by, reason, start_date, end_date,
exit_time, return_time, document_url, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := tx.ExecContext(ctx, parentQuery,
		bulk.ID, bulk.SocietyID, bulk.CreatedBy, bulk.Reason, bulk.StartDate, bulk.EndDate,
		bulk.ExitTime, bulk.ReturnTime, bulk.DocumentURL, bulk.Status, bulk.CreatedAt, bulk.UpdatedAt); err != nil {
		return fmt.Errorf("insert bulk request: %w", err)
	}

	childQuery := `INSERT INTO pass_requests (id, student_id, society_id, reason, date, exit_time, return_time,
status, activation_status, bulk_request_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for i := range children {
		child := &children[i]
		if child.ID == "" {
			child.ID = uuid.NewString()
		}
		child.BulkRequestID = &bulk.ID
		child.CreatedAt = now
		child.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, childQuery,
			child.ID, child.StudentID, child.SocietyID, child.Reason, child.Date, child.ExitTime, child.ReturnTime,
			child.Status, child.ActivationStatus, child.BulkRequestID, child.CreatedAt, child.UpdatedAt); err != nil {
			return fmt.Errorf("insert bulk child for student %s: %w", child.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create: %w", err)
	}
	committed = true
	return nil
}

// GetByID loads one bulk request.
func (r *BulkRepository) GetByID(ctx context.Context, id string) (*models.BulkPassRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM bulk_pass_requests WHERE id = $1", bulkColumns)
	var bulk models.BulkPassRequest
	if err := r.db.GetContext(ctx, &bulk, query, id); err != nil {
		return nil, fmt.Errorf("get bulk request: %w", err)
	}
	return &bulk, nil
}

// ListChildren returns the fan-out rows for a batch.
func (r *BulkRepository) ListChildren(ctx context.Context, bulkID string) ([]models.PassRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM pass_requests WHERE bulk_request_id = $1 ORDER BY student_id ASC`, passColumns)
	var rows []models.PassRequest
	if err := r.db.SelectContext(ctx, &rows, query, bulkID); err != nil {
		return nil, fmt.Errorf("list bulk children: %w", err)
	}
	return rows, nil
}

// AdvanceWithChildren transitions the parent and every child in one
// transaction. When grants are supplied (final approval) each child receives
// its own token in the same write; a grant that matches no child aborts the
// whole transaction so parent and children can never diverge.
func (r *BulkRepository) AdvanceWithChildren(ctx context.Context, bulkID string, from, to models.PassStatus, decidedBy string, decidedAt time.Time, grants []models.TokenGrant) (*models.BulkPassRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk advance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	parentQuery := fmt.Sprintf(`UPDATE bulk_pass_requests
SET status = $3, decided_by = $4, decided_at = $5, updated_at = $5
WHERE id = $1 AND status = $2
RETURNING %s`, bulkColumns)
	var bulk models.BulkPassRequest
	if err := tx.GetContext(ctx, &bulk, parentQuery, bulkID, from, to, decidedBy, decidedAt.UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleStatus
		}
		return nil, fmt.Errorf("advance bulk request: %w", err)
	}

	if len(grants) == 0 {
		childQuery := `UPDATE pass_requests
SET status = $3, decided_by = $4, decided_at = $5, updated_at = $5
WHERE bulk_request_id = $1 AND status = $2`
		if _, err := tx.ExecContext(ctx, childQuery, bulkID, from, to, decidedBy, decidedAt.UTC()); err != nil {
			return nil, fmt.Errorf("advance bulk children: %w", err)
		}
	} else {
		childQuery := `UPDATE pass_requests
SET status = $3, token = $4, token_issued_at = $5, token_expires_at = $6,
    decided_by = $7, decided_at = $8, updated_at = $8
WHERE id = $1 AND bulk_request_id = $2 AND status = $9`
		for _, grant := range grants {
			res, err := tx.ExecContext(ctx, childQuery,
				grant.RequestID, bulkID, to, grant.Token, grant.IssuedAt.UTC(), grant.ExpiresAt.UTC(),
				decidedBy, decidedAt.UTC(), from)
			if err != nil {
				return nil, fmt.Errorf("grant token to bulk child %s: %w", grant.RequestID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return nil, fmt.Errorf("grant token to bulk child %s: %w", grant.RequestID, err)
			}
			if affected != 1 {
				return nil, ErrStaleStatus
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk advance: %w", err)
	}
	committed = true
	return &bulk, nil
}
