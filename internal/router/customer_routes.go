package router

import (
	"github.com/labstack/echo/v4"

	"github.com/BintangGalang/TiketLoka/internal/handler"
	"github.com/BintangGalang/TiketLoka/internal/middleware"
	"github.com/BintangGalang/TiketLoka/internal/model"
)

// RegisterCustomer registers the buyer endpoints.  All routes require a
// valid JWT; admins may use them as well, and Show lets an admin read any
// booking.  checkoutLimit may be nil; it runs after authentication so
// buckets are keyed per user.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, c *handler.CartHandler, r *handler.ReviewHandler,
	jwtSecret string, checkoutLimit echo.MiddlewareFunc) {
	// Route-level middleware; a root group would turn every unknown path
	// into a 401.
	auth := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	}

	// ---- Cart ----
	e.GET("/cart", c.List, auth...)
	e.POST("/cart", c.Add, auth...)
	e.DELETE("/cart/:id", c.Remove, auth...)

	// ---- Bookings ----
	limited := with(auth, checkoutLimit)
	e.POST("/checkout", b.Checkout, limited...)
	e.POST("/buy-now", b.BuyNow, limited...)
	e.GET("/my-bookings", b.MyBookings, auth...)
	e.GET("/bookings/:booking_code", b.Show, auth...)
	e.GET("/bookings/:booking_code/pdf", b.PDF, auth...)
	e.GET("/bookings/:booking_code/qr.png", b.BookingQR, auth...)
	e.GET("/bookings/:booking_code/tickets/:ticket_code/qr.png", b.TicketQR, auth...)

	// ---- Reviews ----
	e.POST("/reviews", r.Store, auth...)
}
