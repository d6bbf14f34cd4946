package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/models"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/response"
)

type flagService interface {
	SetFlag(ctx context.Context, studentID string, req dto.SetFlagRequest, actor *models.JWTClaims) error
	ClearFlag(ctx context.Context, studentID string, actor *models.JWTClaims) error
}

// FlagHandler manages student eligibility flags.
type FlagHandler struct {
	service flagService
}

// NewFlagHandler constructs the handler.
func NewFlagHandler(service flagService) *FlagHandler {
	return &FlagHandler{service: service}
}

// Set godoc
// @Summary Flag a student
// @Tags Flags
// @Accept json
// @Produce json
// @Param id path string true "Student id"
// @Param payload body dto.SetFlagRequest true "Flag"
// @Success 204
// @Router /users/{id}/flag [post]
func (h *FlagHandler) Set(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SetFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid flag payload"))
		return
	}
	if err := h.service.SetFlag(c.Request.Context(), c.Param("id"), req, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clear godoc
// @Summary Remove a student's flag
// @Tags Flags
// @Produce json
// @Param id path string true "Student id"
// @Success 204
// @Router /users/{id}/flag [delete]
func (h *FlagHandler) Clear(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.ClearFlag(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
