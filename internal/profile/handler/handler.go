// Package handler exposes the profile read model, response edits and edit
// history over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadqual_backend/internal/profile/service"
	"leadqual_backend/internal/profile/transport"
	"leadqual_backend/platform/httpkit"
	"leadqual_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for lead profiles.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new profile handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the profile routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:leadId", h.Get)
	rg.PUT("/:leadId/responses", h.EditResponse)
	rg.GET("/:leadId/history", h.EditHistory)
}

// Get handles GET /profiles/:leadId.
func (h *Handler) Get(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// EditResponse handles PUT /profiles/:leadId/responses.
func (h *Handler) EditResponse(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	var req transport.EditResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.EditResponse(c.Request.Context(), leadID, identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

// EditHistory handles GET /profiles/:leadId/history.
func (h *Handler) EditHistory(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	result, err := h.svc.EditHistory(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
