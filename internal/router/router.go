package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/handler"
	"github.com/iliyamo/lab-computer-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health
// check, used by load balancers and monitoring to verify the service
// is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while the profile endpoint lives under /v1 behind JWT.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session: register,
	// login, refresh, logout.  Logout takes the refresh token in the
	// body; possession of the token is the credential.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	// The profile endpoint requires a valid access token.  Both roles
	// may call it.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("STUDENT", "ADMIN"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers unauthenticated browse endpoints.  Guests
// can explore labs, their computers and per-computer availability
// before creating an account.  The optional cache middleware is
// applied to the catalog routes only; availability is a live snapshot
// and must not be served stale.
func RegisterPublic(e *echo.Echo, cat *handler.CatalogHandler, rel *handler.ReleaseHandler, cache echo.MiddlewareFunc) {
	var mws []echo.MiddlewareFunc
	if cache != nil {
		mws = append(mws, cache)
	}
	e.GET("/v1/labs", cat.ListLabs, mws...)
	e.GET("/v1/labs/:id/computers", cat.ListComputers, mws...)
	e.GET("/v1/computers/:id", cat.GetComputer, mws...)

	// Claimable released days for a computer, optionally bounded with
	// ?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD.
	e.GET("/v1/computers/:id/availability", rel.Availability)
}
