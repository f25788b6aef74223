package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/BintangGalang/TiketLoka/internal/handler"
	"github.com/BintangGalang/TiketLoka/internal/middleware"
	"github.com/BintangGalang/TiketLoka/internal/model"
)

// RegisterAdmin registers ADMIN-scoped endpoints under /admin.
// All routes require a valid JWT and the ADMIN role.  scanLimit may be nil.
func RegisterAdmin(e *echo.Echo, b *handler.BookingHandler, t *handler.TicketHandler, jwtSecret string, scanLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	g.GET("/bookings", b.AdminIndex)
	g.POST("/tickets/scan", t.Scan, with(nil, scanLimit)...)
}
