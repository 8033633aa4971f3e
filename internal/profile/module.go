// Package profile provides the lead profile bounded context module: the
// accumulated response maps, derived scoring metrics and the edit flow.
package profile

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"leadqual_backend/internal/catalog"
	"leadqual_backend/internal/events"
	apphttp "leadqual_backend/internal/http"
	"leadqual_backend/internal/profile/handler"
	"leadqual_backend/internal/profile/repository"
	"leadqual_backend/internal/profile/service"
	"leadqual_backend/platform/httpkit"
	"leadqual_backend/platform/logger"
	"leadqual_backend/platform/validator"
)

// Module is the profile bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule wires the profile module.
func NewModule(pool *pgxpool.Pool, cat *catalog.Catalog, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cat, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "profile"
}

// Service returns the profile service for external use. The questionnaire
// module uses it as its completion sink and the follow-up module reads
// snapshots through it.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the profile routes. Profiles are sales-facing, so
// they require authentication and the agent role.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/profiles", httpkit.RequireRole("agent"))
	m.handler.RegisterRoutes(group)
}

// Compile-time check that Module implements http.Module.
var _ apphttp.Module = (*Module)(nil)
