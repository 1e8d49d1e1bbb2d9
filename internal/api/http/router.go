package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workforce-auth/internal/api/http/handlers"
	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	APIPrefix string
	Health    *handlers.HealthHandler
	Tokens    *handlers.TokenHandler
	Users     *handlers.UsersHandler
	Guard     *auth.AccessGuard
}

var managers = []domain.Position{domain.PositionAdmin, domain.PositionCEO, domain.PositionManager}

var (
	anyActiveUser = auth.NewPolicy(auth.RequireActive())

	readUser = auth.NewPolicy(
		auth.WithRoles(managers...),
		auth.AllowSelf(handlers.UserIDParam),
		auth.RequireActive(),
		auth.AllowServiceCaller(),
	)

	changeUserStatus = auth.NewPolicy(
		auth.WithRoles(managers...),
		auth.TargetParam(handlers.UserIDParam),
		auth.RequireActive(),
		auth.AllowServiceCaller(),
	)
)

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group(cfg.APIPrefix)
	api.Post("/token_user", cfg.Tokens.IssueUserToken)
	api.Post("/token_service", cfg.Tokens.IssueServiceToken)

	users := api.Group("/users")
	users.Get("/me", cfg.Guard.Guard(anyActiveUser, cfg.Users.Me))
	users.Get("/:"+handlers.UserIDParam, cfg.Guard.Guard(readUser, cfg.Users.Get))
	users.Patch("/:"+handlers.UserIDParam+"/status", cfg.Guard.Guard(changeUserStatus, cfg.Users.UpdateStatus))
}
