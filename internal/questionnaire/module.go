// Package questionnaire provides the questionnaire bounded context module:
// the interactive session flow, draft persistence and session history.
package questionnaire

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	apphttp "leadqual_backend/internal/http"
	"leadqual_backend/internal/questionnaire/draft"
	"leadqual_backend/internal/questionnaire/handler"
	"leadqual_backend/internal/questionnaire/repository"
	"leadqual_backend/internal/questionnaire/service"
	"leadqual_backend/platform/config"
	"leadqual_backend/platform/logger"
	"leadqual_backend/platform/validator"
)

// Module is the questionnaire bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the questionnaire module. The profile writer comes from
// the profile module; the draft store is shared infrastructure owned by the
// composition root.
func NewModule(
	pool *pgxpool.Pool,
	cat *catalog.Catalog,
	drafts draft.Store,
	profiles service.ProfileWriter,
	eventBus events.Bus,
	val *validator.Validator,
	cfg config.QuestionnaireConfig,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(cat, repo, drafts, profiles, eventBus, log, cfg)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "questionnaire"
}

// Service returns the session service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the session routes. Sessions are driven by the
// public widget, so they live under the rate-limited public group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Public.Group("/questionnaire")
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
