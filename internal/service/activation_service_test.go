package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/notify"
)

type activationFixture struct {
	svc    *ActivationService
	passes *mockPassRepo
	audits *mockAuditRepo
	queue  *mockQueue
}

func newActivationFixture(now time.Time) *activationFixture {
	logger := zap.NewNop()
	metrics := NewMetricsService()
	passes := &mockPassRepo{}
	audits := &mockAuditRepo{}
	queue := &mockQueue{}
	late := NewLateReturnService(queue, metrics, time.Hour, logger)
	svc := NewActivationService(passes, audits, metrics, late, nil, clock.Fixed{At: now}, logger)
	return &activationFixture{svc: svc, passes: passes, audits: audits, queue: queue}
}

func approvedRequest(id, studentID string, date time.Time, exitTime string, returnTime *string) models.PassRequest {
	return models.PassRequest{
		ID: id, StudentID: studentID, SocietyID: "soc-1",
		Date: date, ExitTime: exitTime, ReturnTime: returnTime,
		Status: models.StatusApproved, ActivationStatus: models.ActivationNone,
	}
}

func studentKiosk() GateContext {
	return GateContext{ActorID: "stu-1", IPAddress: "10.0.0.9", UserAgent: "kiosk/2.1"}
}

func TestActivateExitInWindow(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	fix := newActivationFixture(time.Date(2025, 1, 10, 18, 10, 0, 0, time.UTC))
	fix.passes.put(approvedRequest("req-1", "stu-1", date, "18:00", nil))

	resp, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.NoError(t, err)
	assert.Equal(t, dto.ActivationActionExit, resp.Action)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, models.GateOutcomeActivatedExit, fix.audits.lastOutcome())

	stored := fix.passes.passes["req-1"]
	require.NotNil(t, stored.VerifiedAt)
	assert.Equal(t, models.ActivationActivated, stored.ActivationStatus)
}

func TestActivatePicksEarliestCandidate(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	fix := newActivationFixture(time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC))
	fix.passes.put(approvedRequest("req-late", "stu-1", date, "18:30", nil))
	fix.passes.put(approvedRequest("req-early", "stu-1", date, "17:00", nil))

	resp, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.NoError(t, err)
	assert.Equal(t, "req-early", resp.RequestID)
}

func TestActivateOutsideWindow(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	// scan at noon, window opens at 18:00
	fix := newActivationFixture(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	fix.passes.put(approvedRequest("req-1", "stu-1", date, "18:00", nil))

	_, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNoEligibleRequest)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ReasonOutsideWindow, appErr.Meta["reason"])
	assert.Equal(t, models.GateOutcomeRejected, fix.audits.lastOutcome())
}

func TestActivateNothingApproved(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	fix := newActivationFixture(time.Date(2025, 1, 10, 18, 10, 0, 0, time.UTC))
	pending := approvedRequest("req-1", "stu-1", date, "18:00", nil)
	pending.Status = models.StatusPendingFaculty
	fix.passes.put(pending)

	_, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNoEligibleRequest)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ReasonNothingApproved, appErr.Meta["reason"])
}

func TestActivateOvernightWindowStillOpenAfterMidnight(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	// exit 22:00, implicit return 02:00 next day; scan at 01:59 is in-window
	fix := newActivationFixture(time.Date(2025, 1, 11, 1, 59, 0, 0, time.UTC))
	fix.passes.put(approvedRequest("req-1", "stu-1", date, "22:00", nil))

	resp, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.NoError(t, err)
	assert.Equal(t, dto.ActivationActionExit, resp.Action)
}

func TestActivateOvernightWindowClosedAfterCurfew(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	fix := newActivationFixture(time.Date(2025, 1, 11, 2, 1, 0, 0, time.UTC))
	fix.passes.put(approvedRequest("req-1", "stu-1", date, "22:00", nil))

	_, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ReasonOutsideWindow, appErr.Meta["reason"])
}

func TestActivateReturnWinsOverExit(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	fix := newActivationFixture(time.Date(2025, 1, 10, 20, 0, 0, 0, time.UTC))

	out := approvedRequest("req-out", "stu-1", date, "17:00", nil)
	verifiedAt := time.Date(2025, 1, 10, 17, 5, 0, 0, time.UTC)
	out.VerifiedAt = &verifiedAt
	fix.passes.put(out)
	fix.passes.put(approvedRequest("req-next", "stu-1", date, "19:00", nil))

	resp, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.NoError(t, err)
	assert.Equal(t, dto.ActivationActionReturn, resp.Action)
	assert.Equal(t, "req-out", resp.RequestID)
	assert.Equal(t, models.GateOutcomeActivatedReturn, fix.audits.lastOutcome())

	// the approved exit candidate was not touched
	assert.Nil(t, fix.passes.passes["req-next"].VerifiedAt)
}

func TestActivateLateReturnEscalates(t *testing.T) {
	date := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	returnTime := "21:00"
	fix := newActivationFixture(time.Date(2025, 1, 10, 21, 45, 0, 0, time.UTC))

	out := approvedRequest("req-out", "stu-1", date, "17:00", &returnTime)
	verifiedAt := time.Date(2025, 1, 10, 17, 5, 0, 0, time.UTC)
	out.VerifiedAt = &verifiedAt
	fix.passes.put(out)

	resp, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{StudentID: "stu-1"}, studentKiosk())
	require.NoError(t, err)
	assert.Equal(t, dto.ActivationActionReturn, resp.Action)

	stored := fix.passes.passes["req-out"]
	assert.True(t, stored.IsLate)
	assert.Equal(t, 45, stored.LateMinutes)
	require.Len(t, fix.queue.notices, 1)
	assert.Equal(t, notify.AudienceEB, fix.queue.notices[0].Audience)
}

func TestActivateRequiresStudentID(t *testing.T) {
	fix := newActivationFixture(time.Now())

	_, err := fix.svc.Activate(context.Background(), dto.ActivateRequest{}, studentKiosk())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
