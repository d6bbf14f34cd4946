package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/internal/schedule"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/token"
)

type gatePassRepository interface {
	GetByID(ctx context.Context, id string) (*models.PassRequest, error)
	MarkVerified(ctx context.Context, id string, at time.Time, actorID string) (*models.PassRequest, bool, error)
	MarkCheckedIn(ctx context.Context, id string, at time.Time, isLate bool, lateMinutes int) (*models.PassRequest, bool, error)
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.GateAuditLog) error
}

// GateContext carries who and where a redemption attempt came from.
type GateContext struct {
	ActorID   string
	IPAddress string
	UserAgent string
}

// GateService redeems pass tokens at staffed checkpoints: first exit
// verification (idempotent on re-scan) and the return check-in.
type GateService struct {
	passes      gatePassRepository
	users       flagUserRepository
	audits      auditRecorder
	codec       *token.Codec
	cache       *CacheService
	metrics     *MetricsService
	late        *LateReturnService
	validator   *validator.Validate
	clock       clock.Clock
	snapshotTTL time.Duration
	logger      *zap.Logger
}

// NewGateService constructs the gate service.
func NewGateService(passes gatePassRepository, users flagUserRepository, audits auditRecorder, codec *token.Codec, cache *CacheService, metrics *MetricsService, late *LateReturnService, validate *validator.Validate, clk clock.Clock, snapshotTTL time.Duration, logger *zap.Logger) *GateService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if snapshotTTL <= 0 {
		snapshotTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GateService{
		passes:      passes,
		users:       users,
		audits:      audits,
		codec:       codec,
		cache:       cache,
		metrics:     metrics,
		late:        late,
		validator:   validate,
		clock:       clk,
		snapshotTTL: snapshotTTL,
		logger:      logger,
	}
}

// Verify redeems a token for exit. The first valid scan stamps verified_at;
// every later scan of the same token is an idempotent read returning the same
// subject with first_use=false. Signature and expiry fail before any store
// lookup.
func (s *GateService) Verify(ctx context.Context, req dto.VerifyRequest, gate GateContext) (*dto.VerifyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "token required")
	}
	now := s.clock.Now()
	fingerprint := token.Fingerprint(req.Token)

	claims, err := s.codec.Parse(req.Token, now)
	if err != nil {
		appErr := s.mapTokenErr(err)
		s.recordRejection(ctx, gate, fingerprint, nil, appErr)
		return nil, appErr
	}

	// Re-scans of an already redeemed token are pure reads; serve them from
	// the snapshot cache when possible.
	cacheKey := verifySnapshotKey(fingerprint)
	var cached dto.VerifyResponse
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		cached.FirstUse = false
		s.audit(ctx, gate, fingerprint, &claims.RequestID, models.GateOutcomeReVerified, nil)
		s.metrics.RecordVerification("re_verified")
		return &cached, nil
	}

	pass, err := s.loadForClaims(ctx, claims)
	if err != nil {
		appErr := appErrors.FromError(err)
		s.recordRejection(ctx, gate, fingerprint, &claims.RequestID, appErr)
		return nil, appErr
	}
	if pass.Status != models.StatusApproved {
		appErr := appErrors.Clone(appErrors.ErrNotApproved, fmt.Sprintf("pass request is %s", pass.Status))
		s.recordRejection(ctx, gate, fingerprint, &pass.ID, appErr)
		return nil, appErr
	}
	if pass.CheckInAt != nil {
		appErr := appErrors.ErrAlreadyReturned
		s.recordRejection(ctx, gate, fingerprint, &pass.ID, appErr)
		return nil, appErr
	}

	stamped := false
	pass, stamped, err = s.passes.MarkVerified(ctx, pass.ID, now, gate.ActorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stamp verification")
	}

	subject, err := s.snapshot(ctx, pass, claims.ExpiresAt)
	if err != nil {
		return nil, err
	}
	resp := &dto.VerifyResponse{Valid: true, Subject: subject, FirstUse: stamped}

	outcome := models.GateOutcomeVerified
	metricOutcome := "verified"
	if !stamped {
		outcome = models.GateOutcomeReVerified
		metricOutcome = "re_verified"
	}
	s.audit(ctx, gate, fingerprint, &pass.ID, outcome, nil)
	s.metrics.RecordVerification(metricOutcome)
	_ = s.cache.Set(ctx, cacheKey, resp, s.snapshotTTL)

	s.logger.Info("pass verified",
		zap.String("request_id", pass.ID),
		zap.String("student_id", pass.StudentID),
		zap.Bool("first_use", stamped))
	return resp, nil
}

// CheckIn redeems a token for the return leg. Returns have no window check:
// a verified outing can always be closed, however late. Lateness is computed
// against the stated (or implicit) return time and handed to the escalator.
func (s *GateService) CheckIn(ctx context.Context, req dto.CheckInRequest, gate GateContext) (*dto.CheckInResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "token required")
	}
	now := s.clock.Now()
	fingerprint := token.Fingerprint(req.Token)

	claims, err := s.codec.Parse(req.Token, now)
	if err != nil {
		appErr := s.mapTokenErr(err)
		s.recordRejection(ctx, gate, fingerprint, nil, appErr)
		return nil, appErr
	}

	pass, err := s.loadForClaims(ctx, claims)
	if err != nil {
		appErr := appErrors.FromError(err)
		s.recordRejection(ctx, gate, fingerprint, &claims.RequestID, appErr)
		return nil, appErr
	}
	if pass.VerifiedAt == nil {
		appErr := appErrors.ErrNotYetExited
		s.recordRejection(ctx, gate, fingerprint, &pass.ID, appErr)
		return nil, appErr
	}
	if pass.CheckInAt != nil {
		appErr := appErrors.ErrAlreadyReturned
		s.recordRejection(ctx, gate, fingerprint, &pass.ID, appErr)
		return nil, appErr
	}

	expected, err := schedule.ExpectedReturn(*pass.VerifiedAt, pass.ReturnTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve expected return")
	}
	isLate, lateMinutes := schedule.Lateness(now, expected)

	pass, stamped, err := s.passes.MarkCheckedIn(ctx, pass.ID, now, isLate, lateMinutes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stamp check-in")
	}
	if !stamped {
		appErr := appErrors.ErrAlreadyReturned
		s.recordRejection(ctx, gate, fingerprint, &pass.ID, appErr)
		return nil, appErr
	}

	s.audit(ctx, gate, fingerprint, &pass.ID, models.GateOutcomeCheckedIn, nil)
	s.metrics.RecordCheckIn(isLate)
	s.cache.Invalidate(ctx, verifySnapshotKey(fingerprint))
	if isLate {
		s.late.HandleCheckIn(pass, lateMinutes, now)
	}

	elapsed := 0
	if pass.VerifiedAt != nil {
		elapsed = int(now.Sub(*pass.VerifiedAt).Minutes())
	}
	subject, err := s.snapshot(ctx, pass, claims.ExpiresAt)
	if err != nil {
		return nil, err
	}
	s.logger.Info("pass checked in",
		zap.String("request_id", pass.ID),
		zap.String("student_id", pass.StudentID),
		zap.Bool("is_late", isLate),
		zap.Int("late_minutes", lateMinutes))
	return &dto.CheckInResponse{
		Subject:        subject,
		ElapsedMinutes: elapsed,
		IsLate:         isLate,
		LateMinutes:    lateMinutes,
	}, nil
}

func (s *GateService) loadForClaims(ctx context.Context, claims *token.Claims) (*models.PassRequest, error) {
	pass, err := s.passes.GetByID(ctx, claims.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Signature and expiry were already checked, so reporting absence
			// leaks nothing about other requests.
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pass request no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pass request")
	}
	if pass.StudentID != claims.StudentID {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "token subject does not match request")
	}
	return pass, nil
}

func (s *GateService) snapshot(ctx context.Context, pass *models.PassRequest, expiresAt time.Time) (dto.SubjectSnapshot, error) {
	start, end, err := schedule.ResolveWindow(pass.Date, pass.ExitTime, pass.ReturnTime)
	if err != nil {
		return dto.SubjectSnapshot{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve window")
	}
	name := pass.StudentID
	if user, lookupErr := s.users.FindByID(ctx, pass.StudentID); lookupErr == nil {
		name = user.FullName
	}
	snap := dto.SubjectSnapshot{
		RequestID:   pass.ID,
		StudentID:   pass.StudentID,
		StudentName: name,
		SocietyID:   pass.SocietyID,
		Status:      string(pass.Status),
		Date:        pass.Date.Format("2006-01-02"),
		WindowStart: start.Format(time.RFC3339),
		WindowEnd:   end.Format(time.RFC3339),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}
	if pass.VerifiedAt != nil {
		verified := pass.VerifiedAt.Format(time.RFC3339)
		snap.VerifiedAt = &verified
	}
	return snap, nil
}

func (s *GateService) mapTokenErr(err error) *appErrors.Error {
	var expired token.ErrTokenExpired
	if errors.As(err, &expired) {
		return appErrors.WithMeta(appErrors.ErrExpiredToken, map[string]interface{}{
			"expired_at": expired.ExpiredAt.Format(time.RFC3339),
		})
	}
	return appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
}

func (s *GateService) recordRejection(ctx context.Context, gate GateContext, fingerprint string, requestID *string, appErr *appErrors.Error) {
	code := appErr.Code
	s.audit(ctx, gate, fingerprint, requestID, models.GateOutcomeRejected, &code)
	s.metrics.RecordVerification("rejected")
}

func (s *GateService) audit(ctx context.Context, gate GateContext, fingerprint string, requestID *string, outcome string, errorCode *string) {
	entry := &models.GateAuditLog{
		ID:               uuid.NewString(),
		RequestID:        requestID,
		TokenFingerprint: &fingerprint,
		Outcome:          outcome,
		ErrorCode:        errorCode,
		IPAddress:        gate.IPAddress,
		UserAgent:        gate.UserAgent,
		CreatedAt:        s.clock.Now().UTC(),
	}
	if gate.ActorID != "" {
		actor := gate.ActorID
		entry.ActorID = &actor
	}
	if err := s.audits.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write gate audit log",
			zap.String("outcome", outcome),
			zap.Error(err))
	}
}

func verifySnapshotKey(fingerprint string) string {
	return "gate:verify:" + fingerprint
}
