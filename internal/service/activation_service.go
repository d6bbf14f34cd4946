package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/internal/schedule"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
)

type kioskPassRepository interface {
	FindReturnCandidate(ctx context.Context, studentID string) (*models.PassRequest, error)
	ListExitCandidates(ctx context.Context, studentID string) ([]models.PassRequest, error)
	MarkActivated(ctx context.Context, id string, at time.Time, studentID string) (*models.PassRequest, bool, error)
	MarkCheckedIn(ctx context.Context, id string, at time.Time, isLate bool, lateMinutes int) (*models.PassRequest, bool, error)
}

// ActivationService runs the kiosk scan: one tokenless action per scan whose
// meaning depends on the student's current state. A student who is out gets
// the return leg; otherwise the kiosk looks for an in-window approved request
// to redeem for exit.
type ActivationService struct {
	passes    kioskPassRepository
	audits    auditRecorder
	metrics   *MetricsService
	late      *LateReturnService
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewActivationService constructs the kiosk activation service.
func NewActivationService(passes kioskPassRepository, audits auditRecorder, metrics *MetricsService, late *LateReturnService, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *ActivationService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivationService{
		passes:    passes,
		audits:    audits,
		metrics:   metrics,
		late:      late,
		validator: validate,
		clock:     clk,
		logger:    logger,
	}
}

// Activate resolves one kiosk scan. Return wins over exit: a student with an
// open outing is always checking in, never starting another. Exit candidates
// are tried in (date, exit_time) order and only an in-window one qualifies;
// the return leg has no window check.
func (s *ActivationService) Activate(ctx context.Context, req dto.ActivateRequest, gate GateContext) (*dto.ActivateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id required")
	}
	now := s.clock.Now()

	open, err := s.passes.FindReturnCandidate(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load open outing")
	}
	if open != nil {
		resp, done, err := s.activateReturn(ctx, open, now, gate)
		if err != nil || done {
			return resp, err
		}
		// Lost the check-in race; fall through and treat the scan as a
		// fresh exit attempt.
	}

	return s.activateExit(ctx, req.StudentID, now, gate)
}

func (s *ActivationService) activateReturn(ctx context.Context, open *models.PassRequest, now time.Time, gate GateContext) (*dto.ActivateResponse, bool, error) {
	expected, err := schedule.ExpectedReturn(*open.VerifiedAt, open.ReturnTime)
	if err != nil {
		return nil, true, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve expected return")
	}
	isLate, lateMinutes := schedule.Lateness(now, expected)

	pass, stamped, err := s.passes.MarkCheckedIn(ctx, open.ID, now, isLate, lateMinutes)
	if err != nil {
		return nil, true, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stamp check-in")
	}
	if !stamped {
		return nil, false, nil
	}

	s.auditKiosk(ctx, gate, pass.ID, models.GateOutcomeActivatedReturn, nil)
	s.metrics.RecordActivation(dto.ActivationActionReturn)
	s.metrics.RecordCheckIn(isLate)
	if isLate {
		s.late.HandleCheckIn(pass, lateMinutes, now)
	}
	s.logger.Info("kiosk return activated",
		zap.String("request_id", pass.ID),
		zap.String("student_id", pass.StudentID),
		zap.Bool("is_late", isLate),
		zap.Int("late_minutes", lateMinutes))

	message := "welcome back"
	if isLate {
		message = "welcome back, return recorded as late"
	}
	return &dto.ActivateResponse{
		Action:    dto.ActivationActionReturn,
		RequestID: pass.ID,
		Message:   message,
	}, true, nil
}

func (s *ActivationService) activateExit(ctx context.Context, studentID string, now time.Time, gate GateContext) (*dto.ActivateResponse, error) {
	candidates, err := s.passes.ListExitCandidates(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exit candidates")
	}
	if len(candidates) == 0 {
		return nil, s.rejectKiosk(ctx, gate, appErrors.ReasonNothingApproved, "no approved pass request")
	}

	sawInWindow := false
	for i := range candidates {
		candidate := &candidates[i]
		start, end, err := schedule.ResolveWindow(candidate.Date, candidate.ExitTime, candidate.ReturnTime)
		if err != nil {
			s.logger.Warn("skipping exit candidate with unresolvable window",
				zap.String("request_id", candidate.ID),
				zap.Error(err))
			continue
		}
		if !schedule.InWindow(now, start, end) {
			continue
		}
		sawInWindow = true

		pass, stamped, err := s.passes.MarkActivated(ctx, candidate.ID, now, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stamp activation")
		}
		if !stamped {
			// Raced with a gate scan on the same request; try the next one.
			continue
		}

		s.auditKiosk(ctx, gate, pass.ID, models.GateOutcomeActivatedExit, nil)
		s.metrics.RecordActivation(dto.ActivationActionExit)
		s.logger.Info("kiosk exit activated",
			zap.String("request_id", pass.ID),
			zap.String("student_id", studentID))
		return &dto.ActivateResponse{
			Action:    dto.ActivationActionExit,
			RequestID: pass.ID,
			Message:   "exit recorded, have a good trip",
		}, nil
	}

	if sawInWindow {
		return nil, s.rejectKiosk(ctx, gate, appErrors.ReasonNothingApproved, "no redeemable pass request")
	}
	return nil, s.rejectKiosk(ctx, gate, appErrors.ReasonOutsideWindow, "approved pass exists but current time is outside its window")
}

func (s *ActivationService) rejectKiosk(ctx context.Context, gate GateContext, reason, message string) error {
	appErr := appErrors.WithMeta(appErrors.Clone(appErrors.ErrNoEligibleRequest, message),
		map[string]interface{}{"reason": reason})
	code := appErr.Code
	s.auditKiosk(ctx, gate, "", models.GateOutcomeRejected, &code)
	return appErr
}

func (s *ActivationService) auditKiosk(ctx context.Context, gate GateContext, requestID, outcome string, errorCode *string) {
	entry := &models.GateAuditLog{
		ID:        uuid.NewString(),
		Outcome:   outcome,
		ErrorCode: errorCode,
		IPAddress: gate.IPAddress,
		UserAgent: gate.UserAgent,
		CreatedAt: s.clock.Now().UTC(),
	}
	if requestID != "" {
		id := requestID
		entry.RequestID = &id
	}
	if gate.ActorID != "" {
		actor := gate.ActorID
		entry.ActorID = &actor
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write kiosk audit log",
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}
