package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/BintangGalang/TiketLoka/internal/handler"
	"github.com/BintangGalang/TiketLoka/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// carry no business data.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the token endpoints under /auth and the profile
// endpoint at /me.  Logout accepts either a refresh token in the body or a
// bearer token, so it only parses the JWT optionally.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	e.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the guest catalog.  cache may be nil; when set
// it wraps the read-only GETs.
func RegisterPublic(e *echo.Echo, d *handler.DestinationHandler, r *handler.ReviewHandler, cache *middleware.ResponseCache) {
	g := e.Group("/destinations", cache.Middleware())
	g.GET("", d.Index)
	g.GET("/:id", d.Show)
	g.GET("/:id/reviews", r.Index)
}

// Handlers groups everything Setup mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Destinations *handler.DestinationHandler
	Reviews      *handler.ReviewHandler
	Bookings     *handler.BookingHandler
	Carts        *handler.CartHandler
	Tickets      *handler.TicketHandler
}

// Options holds the optional middleware Setup applies.  Zero values
// disable the corresponding feature.
type Options struct {
	Cache *middleware.ResponseCache
	// CheckoutLimit guards /checkout and /buy-now.
	CheckoutLimit echo.MiddlewareFunc
	// ScanLimit guards /admin/tickets/scan.
	ScanLimit echo.MiddlewareFunc
}

// Setup mounts the full route table.
func Setup(e *echo.Echo, h Handlers, jwtSecret string, opts Options) {
	RegisterRoutes(e)
	RegisterAuth(e, h.Auth, jwtSecret)
	RegisterPublic(e, h.Destinations, h.Reviews, opts.Cache)
	RegisterCustomer(e, h.Bookings, h.Carts, h.Reviews, jwtSecret, opts.CheckoutLimit)
	RegisterAdmin(e, h.Bookings, h.Tickets, jwtSecret, opts.ScanLimit)
}

// with appends the non-nil middleware to base without modifying it.
func with(base []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := append([]echo.MiddlewareFunc(nil), base...)
	for _, m := range extra {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}
