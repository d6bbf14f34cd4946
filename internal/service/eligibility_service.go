package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
)

type flagUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListBulkSelectable(ctx context.Context, societyID string) ([]models.User, error)
	SetFlag(ctx context.Context, id string, flagType models.FlagType, reason, flaggedBy string, at time.Time) error
	ClearFlag(ctx context.Context, id string, at time.Time) error
}

// EligibilityService gates pass issuance and bulk selection on flag state.
type EligibilityService struct {
	repo      flagUserRepository
	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewEligibilityService constructs the eligibility service.
func NewEligibilityService(repo flagUserRepository, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *EligibilityService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EligibilityService{repo: repo, validator: validate, clock: clk, logger: logger}
	_ = svc.validator.RegisterValidation("flag_type", func(fl validator.FieldLevel) bool {
		return models.FlagType(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// IsBulkSelectable reports whether the student may appear in a bulk
// candidate list. Any flag type blocks selection.
func (s *EligibilityService) IsBulkSelectable(user *models.User) bool {
	return user != nil && !user.IsFlagged
}

// CheckSubmit blocks new individual submissions for hard-flagged students.
// Soft flags only affect bulk selection.
func (s *EligibilityService) CheckSubmit(ctx context.Context, studentID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if user.HardFlagged() {
		return nil, appErrors.Clone(appErrors.ErrFlagged, "student is hard-flagged and cannot submit pass requests")
	}
	return user, nil
}

// ListSelectable returns the students an EB may include in a bulk request.
func (s *EligibilityService) ListSelectable(ctx context.Context, societyID string) ([]models.User, error) {
	users, err := s.repo.ListBulkSelectable(ctx, societyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selectable students")
	}
	return users, nil
}

// SetFlag marks a student. EB actors may only impose soft flags; hard flags
// are reserved for faculty and admin.
func (s *EligibilityService) SetFlag(ctx context.Context, studentID string, req dto.SetFlagRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid flag payload")
	}
	flagType := models.FlagType(strings.ToUpper(req.Type))
	if flagType == models.FlagHard && actor.Role != models.RoleFaculty && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "hard flags require faculty authority")
	}
	if err := s.repo.SetFlag(ctx, studentID, flagType, req.Reason, actor.UserID, s.clock.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set flag")
	}
	s.logger.Info("student flagged",
		zap.String("student_id", studentID),
		zap.String("flag_type", string(flagType)),
		zap.String("flagged_by", actor.UserID))
	return nil
}

// ClearFlag removes any flag from the student. Clearing twice is a no-op.
func (s *EligibilityService) ClearFlag(ctx context.Context, studentID string, actor *models.JWTClaims) error {
	if err := s.repo.ClearFlag(ctx, studentID, s.clock.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear flag")
	}
	s.logger.Info("student flag cleared",
		zap.String("student_id", studentID),
		zap.String("cleared_by", actor.UserID))
	return nil
}
