package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-outpass-api/internal/dto"
	"github.com/noah-isme/campus-outpass-api/internal/service"
	appErrors "github.com/noah-isme/campus-outpass-api/pkg/errors"
	"github.com/noah-isme/campus-outpass-api/pkg/response"
)

type gateService interface {
	Verify(ctx context.Context, req dto.VerifyRequest, gate service.GateContext) (*dto.VerifyResponse, error)
	CheckIn(ctx context.Context, req dto.CheckInRequest, gate service.GateContext) (*dto.CheckInResponse, error)
}

type activationService interface {
	Activate(ctx context.Context, req dto.ActivateRequest, gate service.GateContext) (*dto.ActivateResponse, error)
}

// GateHandler exposes guard and kiosk redemption endpoints.
type GateHandler struct {
	gate       gateService
	activation activationService
}

// NewGateHandler constructs the handler.
func NewGateHandler(gate gateService, activation activationService) *GateHandler {
	return &GateHandler{gate: gate, activation: activation}
}

// Verify godoc
// @Summary Verify a pass token at the gate
// @Tags Gate
// @Accept json
// @Produce json
// @Param payload body dto.VerifyRequest true "Scanned token"
// @Success 200 {object} response.Envelope
// @Router /gate/verify [post]
func (h *GateHandler) Verify(c *gin.Context) {
	var req dto.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	resp, err := h.gate.Verify(c.Request.Context(), req, gateContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// CheckIn godoc
// @Summary Record a return at the gate
// @Tags Gate
// @Accept json
// @Produce json
// @Param payload body dto.CheckInRequest true "Scanned token"
// @Success 200 {object} response.Envelope
// @Router /gate/check-in [post]
func (h *GateHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	resp, err := h.gate.CheckIn(c.Request.Context(), req, gateContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Activate godoc
// @Summary Resolve a kiosk self-service scan
// @Tags Kiosk
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /kiosk/activate [post]
func (h *GateHandler) Activate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := dto.ActivateRequest{StudentID: claims.UserID}
	resp, err := h.activation.Activate(c.Request.Context(), req, gateContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
