// Package router registers HTTP routes on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/venue-directory/internal/handler"
	"github.com/iliyamo/venue-directory/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterSync registers the scheduler trigger. Both GET and POST are
// accepted since hosted cron services differ in what they send.
func RegisterSync(e *echo.Echo, h *handler.SyncHandler, cronSecret string) {
	g := e.Group("/api/cron", middleware.CronSecret(cronSecret))
	g.Match([]string{"GET", "POST"}, "/sync", h.SyncAll)
	g.Match([]string{"GET", "POST"}, "/sync-events", h.SyncEvents)
	g.Match([]string{"GET", "POST"}, "/sync-movies", h.SyncMovies)
}

// RegisterAdmin registers run history, audit and moderation routes behind
// an ADMIN JWT.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin))
	g.GET("/sync-runs", h.ListSyncRuns)
	g.GET("/audit/orphans", h.Orphans)
	g.GET("/audit/report", h.AuditReport)
	g.PATCH("/events/:id/status", h.SetStatus)
	g.PATCH("/events/:id/visibility", h.SetVisibility)
}

// RegisterPublic registers the listing endpoints. mw typically carries
// the rate limiter and the response cache.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)
	g.GET("/events", p.ListEvents)
	g.GET("/movies", p.ListMovies)
}
