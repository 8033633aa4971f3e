// Package handler exposes the follow-up prompt endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadqual_backend/internal/followup/service"
	"leadqual_backend/internal/followup/transport"
	"leadqual_backend/platform/httpkit"
	"leadqual_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for follow-up prompts.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new follow-up handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the follow-up routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:leadId", h.Evaluate)
	rg.POST("/:leadId/snooze", h.Snooze)
	rg.POST("/:leadId/dismiss", h.Dismiss)
}

// Evaluate handles GET /followup/:leadId.
func (h *Handler) Evaluate(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	result, err := h.svc.Evaluate(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Snooze handles POST /followup/:leadId/snooze.
func (h *Handler) Snooze(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	var req transport.SnoozeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Snooze(c.Request.Context(), leadID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// Dismiss handles POST /followup/:leadId/dismiss.
func (h *Handler) Dismiss(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	if err := h.svc.Dismiss(c.Request.Context(), leadID); httpkit.HandleError(c, err) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
