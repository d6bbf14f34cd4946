package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/export"
	"github.com/noah-isme/campus-outpass-api/pkg/response"
)

type bulkLifecycleService interface {
	SubmitBulk(ctx context.Context, req dto.SubmitBulkRequest, actor *models.JWTClaims) (*dto.BulkView, error)
	AdvanceBulk(ctx context.Context, bulkID string, req dto.BulkDecisionRequest, actorID string) (*dto.BulkView, error)
	GetBulk(ctx context.Context, id string) (*dto.BulkView, error)
	BulkSheet(ctx context.Context, id string) (export.Sheet, error)
}

type selectableLister interface {
	ListSelectable(ctx context.Context, societyID string) ([]models.User, error)
}

type sheetRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

// BulkHandler exposes EB-sponsored batch submissions.
type BulkHandler struct {
	service      bulkLifecycleService
	eligibility  selectableLister
	csvRenderer  sheetRenderer
	pdfRenderer  sheetRenderer
	sheetEnabled bool
}

// NewBulkHandler constructs the handler.
func NewBulkHandler(service bulkLifecycleService, eligibility selectableLister, csvRenderer, pdfRenderer sheetRenderer, sheetEnabled bool) *BulkHandler {
	return &BulkHandler{
		service:      service,
		eligibility:  eligibility,
		csvRenderer:  csvRenderer,
		pdfRenderer:  pdfRenderer,
		sheetEnabled: sheetEnabled,
	}
}

// Submit godoc
// @Summary Submit a bulk pass request for many students
// @Tags Bulk Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitBulkRequest true "Bulk request"
// @Success 201 {object} response.Envelope
// @Router /bulk-requests [post]
func (h *BulkHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk payload"))
		return
	}
	view, err := h.service.SubmitBulk(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Decide godoc
// @Summary Apply one decision to a whole batch
// @Tags Bulk Requests
// @Accept json
// @Produce json
// @Param id path string true "Bulk request id"
// @Param payload body dto.BulkDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /bulk-requests/{id}/decision [post]
func (h *BulkHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	view, err := h.service.AdvanceBulk(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Get godoc
// @Summary Fetch a bulk request with its fan-out rows
// @Tags Bulk Requests
// @Produce json
// @Param id path string true "Bulk request id"
// @Success 200 {object} response.Envelope
// @Router /bulk-requests/{id} [get]
func (h *BulkHandler) Get(c *gin.Context) {
	view, err := h.service.GetBulk(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Selectable godoc
// @Summary List students selectable for a bulk request
// @Tags Bulk Requests
// @Produce json
// @Param society_id query string false "Society filter"
// @Success 200 {object} response.Envelope
// @Router /bulk-requests/selectable [get]
func (h *BulkHandler) Selectable(c *gin.Context) {
	users, err := h.eligibility.ListSelectable(c.Request.Context(), c.Query("society_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Sheet godoc
// @Summary Download the printable gate-pass sheet for an approved batch
// @Tags Bulk Requests
// @Produce application/pdf
// @Param id path string true "Bulk request id"
// @Param format query string false "csv or pdf (default pdf)"
// @Success 200 {file} binary
// @Router /bulk-requests/{id}/sheet [get]
func (h *BulkHandler) Sheet(c *gin.Context) {
	if !h.sheetEnabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "pass sheets are disabled"))
		return
	}
	sheet, err := h.service.BulkSheet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "pdf")
	switch format {
	case "csv":
		payload, err := h.csvRenderer.Render(sheet)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render sheet"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=pass-sheet-%s.csv", c.Param("id")))
		c.Data(http.StatusOK, "text/csv", payload)
	case "pdf":
		payload, err := h.pdfRenderer.Render(sheet)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render sheet"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=pass-sheet-%s.pdf", c.Param("id")))
		c.Data(http.StatusOK, "application/pdf", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}
