package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
)

// ErrStaleStatus is returned when a conditional transition matched no row,
// meaning the request moved on (or never held the expected status).
var ErrStaleStatus = errors.New("status changed since read")

const passColumns = `id, student_id, society_id, reason, date, exit_time, return_time,
status, activation_status, token, token_issued_at, token_expires_at,
verified_at, verified_by, check_in_at, is_late, late_minutes,
bulk_request_id, decided_by, decided_at, created_at, updated_at`

// PassRepository handles persistence for individual pass requests.
type PassRepository struct {
	db *sqlx.DB
}

// NewPassRepository constructs the repository.
func NewPassRepository(db *sqlx.DB) *PassRepository {
	return &PassRepository{db: db}
}

// Create inserts a new pass request.
func (r *PassRepository) Create(ctx context.Context, req *models.PassRequest) error {
	now := time.Now().UTC()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	query := `INSERT INTO pass_requests (id, student_id, society_id, reason, date, exit_time, return_time,
status, activation_status, bulk_request_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.StudentID, req.SocietyID, req.Reason, req.Date, req.ExitTime, req.ReturnTime,
		req.Status, req.ActivationStatus, req.BulkRequestID, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create pass request: %w", err)
	}
	return nil
}

// GetByID loads one pass request.
func (r *PassRepository) GetByID(ctx context.Context, id string) (*models.PassRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM pass_requests WHERE id = $1", passColumns)
	var req models.PassRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, fmt.Errorf("get pass request: %w", err)
	}
	return &req, nil
}

// List returns pass requests matching the filter, joined with the subject.
func (r *PassRepository) List(ctx context.Context, filter models.PassFilter) ([]dto.PassView, int, error) {
	base := `FROM pass_requests pr JOIN users u ON u.id = pr.student_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("pr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SocietyID != "" {
		where = append(where, fmt.Sprintf("pr.society_id = $%d", len(args)+1))
		args = append(args, filter.SocietyID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("pr.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("pr.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("pr.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"date":       "pr.date",
		"status":     "pr.status",
		"created_at": "pr.created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "pr.date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	cols := prefixColumns("pr")
	query := fmt.Sprintf(`SELECT %s, u.full_name AS student_name
%s WHERE %s
ORDER BY %s %s, pr.exit_time ASC
LIMIT %d OFFSET %d`, cols, base, whereClause, sortColumn, order, size, offset)

	var rows []dto.PassView
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list pass requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count pass requests: %w", err)
	}
	return rows, total, nil
}

// UpdateStatus performs a guarded transition: the write only lands when the
// row still holds the expected status, so racing approvers cannot both win.
func (r *PassRepository) UpdateStatus(ctx context.Context, id string, from, to models.PassStatus, decidedBy string, decidedAt time.Time) (*models.PassRequest, error) {
	query := fmt.Sprintf(`UPDATE pass_requests
SET status = $3, decided_by = $4, decided_at = $5, updated_at = $5
WHERE id = $1 AND status = $2
RETURNING %s`, passColumns)
	var req models.PassRequest
	err := r.db.GetContext(ctx, &req, query, id, from, to, decidedBy, decidedAt.UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleStatus
		}
		return nil, fmt.Errorf("update pass status: %w", err)
	}
	return &req, nil
}

// ApproveWithToken is the final-level approval: status flip and token mint
// land in one conditional write, so approval and issuance are atomic and a
// re-approval can never replace an already granted token.
func (r *PassRepository) ApproveWithToken(ctx context.Context, grant models.TokenGrant, decidedBy string, decidedAt time.Time) (*models.PassRequest, error) {
	query := fmt.Sprintf(`UPDATE pass_requests
SET status = $2, token = $3, token_issued_at = $4, token_expires_at = $5,
    decided_by = $6, decided_at = $7, updated_at = $7
WHERE id = $1 AND status = $8
RETURNING %s`, passColumns)
	var req models.PassRequest
	err := r.db.GetContext(ctx, &req, query,
		grant.RequestID, models.StatusApproved, grant.Token, grant.IssuedAt.UTC(), grant.ExpiresAt.UTC(),
		decidedBy, decidedAt.UTC(), models.StatusPendingFaculty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStaleStatus
		}
		return nil, fmt.Errorf("approve pass with token: %w", err)
	}
	return &req, nil
}

// MarkVerified stamps the first exit. The update-if-still-null write makes
// the stamp exactly-once under concurrent scans; losers of the race get the
// already stamped row back with stamped=false.
func (r *PassRepository) MarkVerified(ctx context.Context, id string, at time.Time, actorID string) (*models.PassRequest, bool, error) {
	query := fmt.Sprintf(`UPDATE pass_requests
SET verified_at = $2, verified_by = $3, updated_at = $2
WHERE id = $1 AND verified_at IS NULL
RETURNING %s`, passColumns)
	var req models.PassRequest
	err := r.db.GetContext(ctx, &req, query, id, at.UTC(), actorID)
	if err == nil {
		return &req, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark pass verified: %w", err)
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

// MarkActivated is the kiosk variant of MarkVerified: the same conditional
// first-exit stamp plus the activation marker.
func (r *PassRepository) MarkActivated(ctx context.Context, id string, at time.Time, studentID string) (*models.PassRequest, bool, error) {
	query := fmt.Sprintf(`UPDATE pass_requests
SET verified_at = $2, verified_by = $3, activation_status = $4, updated_at = $2
WHERE id = $1 AND verified_at IS NULL
RETURNING %s`, passColumns)
	var req models.PassRequest
	err := r.db.GetContext(ctx, &req, query, id, at.UTC(), studentID, models.ActivationActivated)
	if err == nil {
		return &req, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark pass activated: %w", err)
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

// MarkCheckedIn stamps the return exactly once, with lateness computed by the
// caller at write time.
func (r *PassRepository) MarkCheckedIn(ctx context.Context, id string, at time.Time, isLate bool, lateMinutes int) (*models.PassRequest, bool, error) {
	query := fmt.Sprintf(`UPDATE pass_requests
SET check_in_at = $2, is_late = $3, late_minutes = $4, updated_at = $2
WHERE id = $1 AND check_in_at IS NULL AND verified_at IS NOT NULL
RETURNING %s`, passColumns)
	var req models.PassRequest
	err := r.db.GetContext(ctx, &req, query, id, at.UTC(), isLate, lateMinutes)
	if err == nil {
		return &req, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("mark pass checked in: %w", err)
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, false, getErr
	}
	return current, false, nil
}

// FindReturnCandidate loads the student's open outing, if any: verified for
// exit and not yet checked in.
func (r *PassRepository) FindReturnCandidate(ctx context.Context, studentID string) (*models.PassRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM pass_requests
WHERE student_id = $1 AND verified_at IS NOT NULL AND check_in_at IS NULL
ORDER BY verified_at DESC
LIMIT 1`, passColumns)
	var req models.PassRequest
	if err := r.db.GetContext(ctx, &req, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find return candidate: %w", err)
	}
	return &req, nil
}

// ListExitCandidates returns the student's approved, unredeemed requests in
// deterministic (date, exit_time) order so the kiosk always picks the same
// one when several qualify.
func (r *PassRepository) ListExitCandidates(ctx context.Context, studentID string) ([]models.PassRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM pass_requests
WHERE student_id = $1 AND status = $2 AND verified_at IS NULL AND activation_status <> $3
ORDER BY date ASC, exit_time ASC`, passColumns)
	var rows []models.PassRequest
	if err := r.db.SelectContext(ctx, &rows, query, studentID, models.StatusApproved, models.ActivationPendingEB); err != nil {
		return nil, fmt.Errorf("list exit candidates: %w", err)
	}
	return rows, nil
}

func prefixColumns(prefix string) string {
	cols := strings.Split(passColumns, ",")
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = prefix + "." + strings.TrimSpace(col)
	}
	return strings.Join(out, ", ")
}
