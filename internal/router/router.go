package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/timeslot-reservation/internal/handler"
	"github.com/iliyamo/timeslot-reservation/internal/middleware"
	"github.com/iliyamo/timeslot-reservation/internal/utils"
)

// RegisterRoutes registers routes that do not touch the booking data.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated booking endpoints.  The slot
// listing goes through cache; writes go through limit.
func RegisterPublic(e *echo.Echo, h *handler.BookingHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/slots", h.Slots, cache)
	g.POST("/reservations", h.Create, limit)
	g.DELETE("/reservations", h.Cancel, limit)
}

// RegisterAdmin registers /v1/admin.  Login is rate limited and open; the
// rest requires an ADMIN access token.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/v1/admin/login", h.Login, limit)

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.GET("/reservations", h.List)
	g.POST("/reservations", h.Add)
	// static segment wins over :id in echo's router
	g.POST("/reservations/reset-used", h.ResetUsed)
	g.DELETE("/reservations/:id", h.Delete)
	g.POST("/reservations/:id/toggle-used", h.ToggleUsed)
	g.GET("/open-time", h.OpenTime)
	g.PUT("/open-time", h.SetOpenTime)
}
