// Package followup provides the follow-up scheduler bounded context module:
// prompt evaluation, snoozing and dismissal.
package followup

import (
	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	"leadqual_backend/internal/followup/handler"
	"leadqual_backend/internal/followup/service"
	apphttp "leadqual_backend/internal/http"
	"leadqual_backend/internal/scheduler"
	"leadqual_backend/platform/config"
	"leadqual_backend/platform/logger"
	"leadqual_backend/platform/validator"
)

// Module is the follow-up bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the follow-up module. The snooze scheduler may be nil
// when the worker deployment is disabled; the time check in Evaluate keeps
// snooze windows correct without it.
func NewModule(
	cat *catalog.Catalog,
	profiles service.ProfileReader,
	snoozes scheduler.SnoozeScheduler,
	eventBus events.Bus,
	val *validator.Validator,
	cfg config.QuestionnaireConfig,
	log *logger.Logger,
) *Module {
	svc := service.New(cat, profiles, snoozes, eventBus, log, cfg)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followup"
}

// Service returns the follow-up service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the follow-up routes next to the questionnaire on
// the rate-limited public group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Public.Group("/followup")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
