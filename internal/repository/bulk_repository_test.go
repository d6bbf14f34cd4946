package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-outpass-api/internal/models"
)

var bulkRowColumns = []string{
	"id", "society_id", "created_by", "reason", "start_date", "end_date", "exit_time", "return_time",
	"document_url", "status", "decided_by", "decided_at", "created_at", "updated_at",
}

func bulkRow(id string, status models.PassStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(bulkRowColumns).AddRow(
		id, "soc-1", "eb-1", "inter-college fest", now, nil, "08:00", nil,
		nil, status, nil, nil, now, now)
}

func TestBulkRepositoryCreateWithChildrenCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBulkRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bulk_pass_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pass_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pass_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	bulk := &models.BulkPassRequest{
		SocietyID: "soc-1",
		CreatedBy: "eb-1",
		Reason:    "inter-college fest",
		StartDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		ExitTime:  "08:00",
		Status:    models.StatusPendingPresident,
	}
	children := []models.PassRequest{
		{StudentID: "stu-1", SocietyID: "soc-1", Status: models.StatusPendingPresident},
		{StudentID: "stu-2", SocietyID: "soc-1", Status: models.StatusPendingPresident},
	}
	require.NoError(t, repo.CreateWithChildren(context.Background(), bulk, children))
	require.NotEmpty(t, bulk.ID)
	for _, child := range children {
		require.NotEmpty(t, child.ID)
		require.NotNil(t, child.BulkRequestID)
		require.Equal(t, bulk.ID, *child.BulkRequestID)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkRepositoryCreateWithChildrenRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBulkRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bulk_pass_requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pass_requests")).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	bulk := &models.BulkPassRequest{SocietyID: "soc-1", CreatedBy: "eb-1", Status: models.StatusPendingPresident}
	children := []models.PassRequest{{StudentID: "stu-1", Status: models.StatusPendingPresident}}
	require.Error(t, repo.CreateWithChildren(context.Background(), bulk, children))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkRepositoryAdvanceBlanket(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBulkRepository(db)
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bulk_pass_requests")).
		WithArgs("bulk-1", models.StatusPendingPresident, models.StatusPendingFaculty, "pres-1", at).
		WillReturnRows(bulkRow("bulk-1", models.StatusPendingFaculty))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pass_requests")).
		WithArgs("bulk-1", models.StatusPendingPresident, models.StatusPendingFaculty, "pres-1", at).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	bulk, err := repo.AdvanceWithChildren(context.Background(), "bulk-1",
		models.StatusPendingPresident, models.StatusPendingFaculty, "pres-1", at, nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingFaculty, bulk.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkRepositoryAdvanceStaleParent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBulkRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bulk_pass_requests")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.AdvanceWithChildren(context.Background(), "bulk-1",
		models.StatusPendingPresident, models.StatusPendingFaculty, "pres-1", time.Now(), nil)
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkRepositoryAdvanceWithGrants(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBulkRepository(db)
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	grants := []models.TokenGrant{
		{RequestID: "child-1", Token: "tok-1", IssuedAt: at, ExpiresAt: at.Add(17 * time.Hour)},
		{RequestID: "child-2", Token: "tok-2", IssuedAt: at, ExpiresAt: at.Add(17 * time.Hour)},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bulk_pass_requests")).
		WillReturnRows(bulkRow("bulk-1", models.StatusApproved))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pass_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pass_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bulk, err := repo.AdvanceWithChildren(context.Background(), "bulk-1",
		models.StatusPendingFaculty, models.StatusApproved, "fac-1", at, grants)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, bulk.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkRepositoryAdvanceGrantMismatchAborts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBulkRepository(db)
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	grants := []models.TokenGrant{
		{RequestID: "child-1", Token: "tok-1", IssuedAt: at, ExpiresAt: at.Add(17 * time.Hour)},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bulk_pass_requests")).
		WillReturnRows(bulkRow("bulk-1", models.StatusApproved))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pass_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.AdvanceWithChildren(context.Background(), "bulk-1",
		models.StatusPendingFaculty, models.StatusApproved, "fac-1", at, grants)
	require.ErrorIs(t, err, ErrStaleStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}
