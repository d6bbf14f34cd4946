package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	"github.com/noah-isme/campus-outpass-api/internal/repository"
	"github.com/noah-isme/campus-outpass-api/internal/schedule"
	"github.com/noah-isme/campus-outpass-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/export"
)

type passRepository interface {
	Create(ctx context.Context, req *models.PassRequest) error
	GetByID(ctx context.Context, id string) (*models.PassRequest, error)
	List(ctx context.Context, filter models.PassFilter) ([]dto.PassView, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.PassStatus, decidedBy string, decidedAt time.Time) (*models.PassRequest, error)
	ApproveWithToken(ctx context.Context, grant models.TokenGrant, decidedBy string, decidedAt time.Time) (*models.PassRequest, error)
}

type bulkRepository interface {
	CreateWithChildren(ctx context.Context, bulk *models.BulkPassRequest, children []models.PassRequest) error
	GetByID(ctx context.Context, id string) (*models.BulkPassRequest, error)
	ListChildren(ctx context.Context, bulkID string) ([]models.PassRequest, error)
	AdvanceWithChildren(ctx context.Context, bulkID string, from, to models.PassStatus, decidedBy string, decidedAt time.Time, grants []models.TokenGrant) (*models.BulkPassRequest, error)
}

type grantMinter interface {
	Mint(req *models.PassRequest) (models.TokenGrant, error)
}

// LifecycleService owns the approval state machine: creation, per-level
// advance, and bulk fan-out/fan-in.
type LifecycleService struct {
	passRepo    passRepository
	bulkRepo    bulkRepository
	users       flagUserRepository
	eligibility *EligibilityService
	issuer      grantMinter
	validator   *validator.Validate
	clock       clock.Clock
	logger      *zap.Logger
}

// NewLifecycleService constructs the lifecycle service.
func NewLifecycleService(passRepo passRepository, bulkRepo bulkRepository, users flagUserRepository, eligibility *EligibilityService, issuer grantMinter, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *LifecycleService {
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LifecycleService{
		passRepo:    passRepo,
		bulkRepo:    bulkRepo,
		users:       users,
		eligibility: eligibility,
		issuer:      issuer,
		validator:   validate,
		clock:       clk,
		logger:      logger,
	}
	_ = svc.validator.RegisterValidation("pass_status", func(fl validator.FieldLevel) bool {
		return models.PassStatus(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = svc.validator.RegisterValidation("approval_level", func(fl validator.FieldLevel) bool {
		return models.ApprovalLevel(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = svc.validator.RegisterValidation("pass_decision", func(fl validator.FieldLevel) bool {
		return models.Decision(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// Submit creates an individual pass request awaiting EB review.
func (s *LifecycleService) Submit(ctx context.Context, studentID string, req dto.SubmitPassRequest) (*models.PassRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pass payload")
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	if _, _, err := schedule.ResolveWindow(date, req.ExitTime, req.ReturnTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid authorization window")
	}
	if _, err := s.eligibility.CheckSubmit(ctx, studentID); err != nil {
		return nil, err
	}

	pass := &models.PassRequest{
		StudentID:        studentID,
		SocietyID:        req.SocietyID,
		Reason:           req.Reason,
		Date:             date,
		ExitTime:         req.ExitTime,
		ReturnTime:       req.ReturnTime,
		Status:           models.StatusPendingEB,
		ActivationStatus: models.ActivationNone,
	}
	if err := s.passRepo.Create(ctx, pass); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pass request")
	}
	s.logger.Info("pass submitted",
		zap.String("request_id", pass.ID),
		zap.String("student_id", studentID),
		zap.String("society_id", req.SocietyID))
	return pass, nil
}

// Advance applies one approver's decision. The status guard lives in the
// conditional write, so a stale approver (wrong level, double submit, racing
// decision) gets a state conflict instead of a double apply. Final approval
// and token issuance are one write.
func (s *LifecycleService) Advance(ctx context.Context, requestID string, req dto.DecisionRequest, actorID string) (*models.PassRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	level := models.ApprovalLevel(strings.ToUpper(req.Level))
	decision := models.Decision(strings.ToUpper(req.Decision))
	expected := level.PendingStatus()
	now := s.clock.Now()

	if decision == models.DecisionReject {
		pass, err := s.passRepo.UpdateStatus(ctx, requestID, expected, models.StatusRejected, actorID, now)
		if err != nil {
			return nil, s.mapAdvanceErr(ctx, requestID, level, err)
		}
		s.logger.Info("pass rejected",
			zap.String("request_id", requestID),
			zap.String("level", string(level)),
			zap.String("actor_id", actorID))
		return pass, nil
	}

	if level == models.LevelFaculty {
		current, err := s.passRepo.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "pass request not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pass request")
		}
		if current.Status != expected {
			return nil, s.stateConflict(level, current.Status)
		}
		grant, err := s.issuer.Mint(current)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint pass token")
		}
		pass, err := s.passRepo.ApproveWithToken(ctx, grant, actorID, now)
		if err != nil {
			return nil, s.mapAdvanceErr(ctx, requestID, level, err)
		}
		s.logger.Info("pass approved and token issued",
			zap.String("request_id", requestID),
			zap.String("actor_id", actorID),
			zap.Time("expires_at", grant.ExpiresAt))
		return pass, nil
	}

	pass, err := s.passRepo.UpdateStatus(ctx, requestID, expected, level.ApprovedStatus(), actorID, now)
	if err != nil {
		return nil, s.mapAdvanceErr(ctx, requestID, level, err)
	}
	s.logger.Info("pass advanced",
		zap.String("request_id", requestID),
		zap.String("level", string(level)),
		zap.String("next_status", string(pass.Status)))
	return pass, nil
}

// SubmitBulk creates the batch and one child per student in a single atomic
// write. Flagged students of any type are rejected up front: they never
// belong in a bulk selection.
func (s *LifecycleService) SubmitBulk(ctx context.Context, req dto.SubmitBulkRequest, actor *models.JWTClaims) (*dto.BulkView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	startDate, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start_date format, expected YYYY-MM-DD")
	}
	var endDate *time.Time
	if req.EndDate != nil && *req.EndDate != "" {
		parsed, err := schedule.ParseDate(*req.EndDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end_date format, expected YYYY-MM-DD")
		}
		if parsed.Before(startDate) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "end_date precedes start_date")
		}
		endDate = &parsed
	}
	if _, _, err := schedule.ResolveWindow(startDate, req.ExitTime, req.ReturnTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid authorization window")
	}

	seen := make(map[string]struct{}, len(req.StudentIDs))
	for _, studentID := range req.StudentIDs {
		if _, ok := seen[studentID]; ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate student %s in batch", studentID))
		}
		seen[studentID] = struct{}{}
		user, err := s.users.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s not found", studentID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		if !s.eligibility.IsBulkSelectable(user) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is flagged and cannot be included", studentID))
		}
	}

	// The EB submitting the batch is its first-line approval, so the whole
	// batch enters the chain awaiting the president.
	bulk := &models.BulkPassRequest{
		SocietyID:   req.SocietyID,
		CreatedBy:   actor.UserID,
		Reason:      req.Reason,
		StartDate:   startDate,
		EndDate:     endDate,
		ExitTime:    req.ExitTime,
		ReturnTime:  req.ReturnTime,
		DocumentURL: req.DocumentURL,
		Status:      models.StatusPendingPresident,
	}
	children := make([]models.PassRequest, len(req.StudentIDs))
	for i, studentID := range req.StudentIDs {
		children[i] = models.PassRequest{
			StudentID:        studentID,
			SocietyID:        req.SocietyID,
			Reason:           req.Reason,
			Date:             startDate,
			ExitTime:         req.ExitTime,
			ReturnTime:       req.ReturnTime,
			Status:           models.StatusPendingPresident,
			ActivationStatus: models.ActivationNone,
		}
	}
	if err := s.bulkRepo.CreateWithChildren(ctx, bulk, children); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bulk request")
	}
	s.logger.Info("bulk request submitted",
		zap.String("bulk_request_id", bulk.ID),
		zap.String("society_id", req.SocietyID),
		zap.Int("students", len(children)))
	return &dto.BulkView{BulkPassRequest: *bulk, Children: children}, nil
}

// AdvanceBulk applies one decision to the batch and every child together.
// The level is implied by the batch's current status; final approval mints a
// token per child inside the same transaction.
func (s *LifecycleService) AdvanceBulk(ctx context.Context, bulkID string, req dto.BulkDecisionRequest, actorID string) (*dto.BulkView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	decision := models.Decision(strings.ToUpper(req.Decision))

	bulk, err := s.bulkRepo.GetByID(ctx, bulkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bulk request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulk request")
	}
	level, ok := models.LevelForStatus(bulk.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrState, fmt.Sprintf("bulk request already finalised as %s", bulk.Status))
	}

	from := bulk.Status
	to := models.StatusRejected
	var grants []models.TokenGrant
	if decision == models.DecisionApprove {
		to = level.ApprovedStatus()
		if to == models.StatusApproved {
			children, err := s.bulkRepo.ListChildren(ctx, bulkID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulk children")
			}
			grants = make([]models.TokenGrant, 0, len(children))
			for i := range children {
				if children[i].Status != from {
					continue
				}
				grant, err := s.issuer.Mint(&children[i])
				if err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint pass token")
				}
				grants = append(grants, grant)
			}
		}
	}

	updated, err := s.bulkRepo.AdvanceWithChildren(ctx, bulkID, from, to, actorID, s.clock.Now(), grants)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrState, "bulk request changed status, refresh and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance bulk request")
	}
	children, err := s.bulkRepo.ListChildren(ctx, bulkID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulk children")
	}
	s.logger.Info("bulk request advanced",
		zap.String("bulk_request_id", bulkID),
		zap.String("decision", string(decision)),
		zap.String("status", string(updated.Status)),
		zap.String("actor_id", actorID))
	return &dto.BulkView{BulkPassRequest: *updated, Children: children}, nil
}

// Get loads one pass request, scoped so students only see their own.
func (s *LifecycleService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PassRequest, error) {
	pass, err := s.passRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pass request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pass request")
	}
	if actor != nil && actor.Role == models.RoleStudent && pass.StudentID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return pass, nil
}

// List returns pass requests matching the query. Students are always scoped
// to their own rows.
func (s *LifecycleService) List(ctx context.Context, query dto.PassQuery, actor *models.JWTClaims) ([]dto.PassView, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	filter := models.PassFilter{
		StudentID: query.StudentID,
		SocietyID: query.SocietyID,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Status != nil {
		st := models.PassStatus(strings.ToUpper(*query.Status))
		filter.Status = &st
	}
	if actor != nil && actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	rows, total, err := s.passRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pass requests")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// ListPending returns the approver queue for a level.
func (s *LifecycleService) ListPending(ctx context.Context, query dto.PendingQueueQuery) ([]dto.PassView, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid queue filter")
	}
	level := models.ApprovalLevel(strings.ToUpper(query.Level))
	status := level.PendingStatus()
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 {
		size = 50
	}
	rows, total, err := s.passRepo.List(ctx, models.PassFilter{
		SocietyID: query.SocietyID,
		Status:    &status,
		Page:      page,
		PageSize:  size,
		SortBy:    "created_at",
		SortOrder: "ASC",
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// GetBulk loads a batch with its fan-out rows.
func (s *LifecycleService) GetBulk(ctx context.Context, id string) (*dto.BulkView, error) {
	bulk, err := s.bulkRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bulk request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulk request")
	}
	children, err := s.bulkRepo.ListChildren(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulk children")
	}
	return &dto.BulkView{BulkPassRequest: *bulk, Children: children}, nil
}

// BulkSheet assembles the printable roster for an approved batch.
func (s *LifecycleService) BulkSheet(ctx context.Context, id string) (export.Sheet, error) {
	view, err := s.GetBulk(ctx, id)
	if err != nil {
		return export.Sheet{}, err
	}
	if view.Status != models.StatusApproved {
		return export.Sheet{}, appErrors.Clone(appErrors.ErrNotApproved, "bulk request is not approved")
	}
	rows := make([]map[string]string, 0, len(view.Children))
	for i := range view.Children {
		child := &view.Children[i]
		name := child.StudentID
		if user, err := s.users.FindByID(ctx, child.StudentID); err == nil {
			name = user.FullName
		}
		returnTime := schedule.DefaultReturn()
		if child.ReturnTime != nil && *child.ReturnTime != "" {
			returnTime = *child.ReturnTime
		}
		row := map[string]string{
			"Student":  name,
			"Date":     child.Date.Format("2006-01-02"),
			"Exit":     child.ExitTime,
			"Return":   returnTime,
			"Pass Ref": shortRef(child),
		}
		rows = append(rows, row)
	}
	subtitle := []string{
		fmt.Sprintf("Society %s - %s", view.SocietyID, view.Reason),
		fmt.Sprintf("From %s", view.StartDate.Format("2006-01-02")),
	}
	if view.EndDate != nil {
		subtitle[1] = fmt.Sprintf("From %s to %s", view.StartDate.Format("2006-01-02"), view.EndDate.Format("2006-01-02"))
	}
	return export.Sheet{
		Title:    "Gate Pass Sheet",
		Subtitle: subtitle,
		Headers:  []string{"Student", "Date", "Exit", "Return", "Pass Ref"},
		Rows:     rows,
	}, nil
}

func (s *LifecycleService) mapAdvanceErr(ctx context.Context, requestID string, level models.ApprovalLevel, err error) error {
	if errors.Is(err, repository.ErrStaleStatus) {
		current, getErr := s.passRepo.GetByID(ctx, requestID)
		if getErr != nil {
			if errors.Is(getErr, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "pass request not found")
			}
			return appErrors.Clone(appErrors.ErrState, "pass request changed status, refresh and retry")
		}
		return s.stateConflict(level, current.Status)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance pass request")
}

func (s *LifecycleService) stateConflict(level models.ApprovalLevel, current models.PassStatus) error {
	return appErrors.Clone(appErrors.ErrState,
		fmt.Sprintf("request is %s, not awaiting %s decision", current, level))
}

func shortRef(req *models.PassRequest) string {
	if req.Token == nil {
		return ""
	}
	ref := *req.Token
	if idx := strings.LastIndex(ref, "."); idx >= 0 && len(ref) > idx+9 {
		return ref[idx+1 : idx+9]
	}
	return ""
}
