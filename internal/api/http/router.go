package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/laggis/Discord-Ticket-bot/internal/api/http/handlers"
	"github.com/laggis/Discord-Ticket-bot/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Gatherer       prometheus.Gatherer
	StaffRoleIDs   []string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	if cfg.Admin == nil || cfg.AuthMiddleware == nil {
		return
	}
	admin := app.Group("/admin", cfg.AuthMiddleware.Handle)

	tickets := admin.Group("/tickets")
	tickets.Get("/:id", auth.RequireStaff(cfg.StaffRoleIDs), cfg.Admin.GetTicket)
	tickets.Post("/:id/close", cfg.Admin.CloseTicket)

	bans := admin.Group("/bans", auth.RequireBan())
	bans.Get("/:user_id", cfg.Admin.GetBan)
	bans.Post("", cfg.Admin.CreateBan)
	bans.Delete("/:user_id", cfg.Admin.DeleteBan)
}
