package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/response"
)

type lifecycleService interface {
	Submit(ctx context.Context, studentID string, req dto.SubmitPassRequest) (*models.PassRequest, error)
	Advance(ctx context.Context, requestID string, req dto.DecisionRequest, actorID string) (*models.PassRequest, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PassRequest, error)
	List(ctx context.Context, query dto.PassQuery, actor *models.JWTClaims) ([]dto.PassView, *models.Pagination, error)
	ListPending(ctx context.Context, query dto.PendingQueueQuery) ([]dto.PassView, *models.Pagination, error)
}

// PassHandler exposes the individual pass-request lifecycle.
type PassHandler struct {
	service lifecycleService
}

// NewPassHandler constructs the handler.
func NewPassHandler(service lifecycleService) *PassHandler {
	return &PassHandler{service: service}
}

// Submit godoc
// @Summary Submit an individual pass request
// @Tags Passes
// @Accept json
// @Produce json
// @Param payload body dto.SubmitPassRequest true "Pass request"
// @Success 201 {object} response.Envelope
// @Router /passes [post]
func (h *PassHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitPassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid pass payload"))
		return
	}
	pass, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pass)
}

// Decide godoc
// @Summary Apply an approver decision to a pass request
// @Tags Passes
// @Accept json
// @Produce json
// @Param id path string true "Pass request id"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /passes/{id}/decision [post]
func (h *PassHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	pass, err := h.service.Advance(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pass, nil)
}

// Get godoc
// @Summary Fetch one pass request
// @Tags Passes
// @Produce json
// @Param id path string true "Pass request id"
// @Success 200 {object} response.Envelope
// @Router /passes/{id} [get]
func (h *PassHandler) Get(c *gin.Context) {
	pass, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pass, nil)
}

// List godoc
// @Summary List pass requests
// @Tags Passes
// @Produce json
// @Param status query string false "Status filter"
// @Param society_id query string false "Society filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /passes [get]
func (h *PassHandler) List(c *gin.Context) {
	query := dto.PassQuery{
		StudentID: c.Query("student_id"),
		SocietyID: c.Query("society_id"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "page_size", 50),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if status := c.Query("status"); status != "" {
		query.Status = &status
	}
	rows, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Pending godoc
// @Summary List the approval queue for a level
// @Tags Passes
// @Produce json
// @Param level query string true "Approval level (EB, PRESIDENT, FACULTY)"
// @Param society_id query string false "Society filter"
// @Success 200 {object} response.Envelope
// @Router /passes/pending [get]
func (h *PassHandler) Pending(c *gin.Context) {
	query := dto.PendingQueueQuery{
		Level:     c.Query("level"),
		SocietyID: c.Query("society_id"),
		Page:      intQuery(c, "page", 1),
		PageSize:  intQuery(c, "page_size", 50),
	}
	rows, pagination, err := h.service.ListPending(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
