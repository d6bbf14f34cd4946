package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-outpass-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var passRowColumns = []string{
	"id", "student_id", "society_id", "reason", "date", "exit_time", "return_time",
	"status", "activation_status", "token", "token_issued_at", "token_expires_at",
	"verified_at", "verified_by", "check_in_at", "is_late", "late_minutes",
	"bulk_request_id", "decided_by", "decided_at", "created_at", "updated_at",
}

func passRow(id string, status models.PassStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(passRowColumns).AddRow(
		id, "stu-1", "soc-1", "robotics meetup", now, "18:00", nil,
		status, models.ActivationNone, nil, nil, nil,
		nil, nil, nil, false, 0,
		nil, nil, nil, now, now)
}

func TestPassRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pass_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.PassRequest{
		StudentID: "stu-1",
		SocietyID: "soc-1",
		Reason:    "robotics meetup",
		Date:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		ExitTime:  "18:00",
		Status:    models.StatusPendingEB,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs("req-1", models.StatusPendingEB, models.StatusPendingPresident, "eb-1", at).
		WillReturnRows(passRow("req-1", models.StatusPendingPresident))

	updated, err := repo.UpdateStatus(context.Background(), "req-1", models.StatusPendingEB, models.StatusPendingPresident, "eb-1", at)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingPresident, updated.Status)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs("req-1", models.StatusPendingEB, models.StatusPendingPresident, "eb-2", at).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.UpdateStatus(context.Background(), "req-1", models.StatusPendingEB, models.StatusPendingPresident, "eb-2", at)
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryApproveWithToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	grant := models.TokenGrant{
		RequestID: "req-1",
		Token:     "SOCIETY_PASS.req-1.c3R1LTE.1736500000.1736560800.abcd",
		IssuedAt:  at,
		ExpiresAt: time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC),
	}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs(grant.RequestID, models.StatusApproved, grant.Token, grant.IssuedAt, grant.ExpiresAt,
			"fac-1", at, models.StatusPendingFaculty).
		WillReturnRows(passRow("req-1", models.StatusApproved))

	updated, err := repo.ApproveWithToken(context.Background(), grant, "fac-1", at)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, updated.Status)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.ApproveWithToken(context.Background(), grant, "fac-1", at)
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryMarkVerifiedFirstUse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	at := time.Date(2025, 1, 10, 18, 5, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs("req-1", at, "guard-1").
		WillReturnRows(passRow("req-1", models.StatusApproved))

	_, stamped, err := repo.MarkVerified(context.Background(), "req-1", at, "guard-1")
	require.NoError(t, err)
	require.True(t, stamped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryMarkVerifiedLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	at := time.Date(2025, 1, 10, 18, 5, 0, 0, time.UTC)

	// conditional write matches nothing, fallback read returns the row
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs("req-1", at, "guard-2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("req-1").
		WillReturnRows(passRow("req-1", models.StatusApproved))

	current, stamped, err := repo.MarkVerified(context.Background(), "req-1", at, "guard-2")
	require.NoError(t, err)
	require.False(t, stamped)
	require.Equal(t, "req-1", current.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryMarkCheckedInLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	at := time.Date(2025, 1, 10, 22, 47, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs("req-1", at, true, 47).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("req-1").
		WillReturnRows(passRow("req-1", models.StatusApproved))

	_, stamped, err := repo.MarkCheckedIn(context.Background(), "req-1", at, true, 47)
	require.NoError(t, err)
	require.False(t, stamped)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryFindReturnCandidateNone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("stu-1").
		WillReturnError(sql.ErrNoRows)

	candidate, err := repo.FindReturnCandidate(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Nil(t, candidate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPassRepositoryListExitCandidates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPassRepository(db)
	rows := passRow("req-1", models.StatusApproved)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("stu-1", models.StatusApproved, models.ActivationPendingEB).
		WillReturnRows(rows)

	candidates, err := repo.ListExitCandidates(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "req-1", candidates[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
