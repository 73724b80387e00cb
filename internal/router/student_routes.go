package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/handler"
	"github.com/iliyamo/lab-computer-booking/internal/middleware"
)

// RegisterStudent registers the authenticated booking and release
// endpoints under /v1.  All routes require a valid JWT; both STUDENT
// and ADMIN tokens are accepted since admins also hold bookings of
// their own.  Students can request bookings, inspect and cancel them,
// release days from an approved booking, rescind a release and claim a
// day another student released.
func RegisterStudent(e *echo.Echo, b *handler.BookingHandler, r *handler.ReleaseHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("STUDENT", "ADMIN"),
	)

	g.POST("/bookings", b.Create)
	g.GET("/my-bookings", b.ListMine)
	g.GET("/bookings/:id", b.Get)
	g.DELETE("/bookings/:id", b.Cancel)

	g.POST("/releases", r.Create)
	g.GET("/releases", r.ListMine)
	g.PATCH("/releases/:id/cancel", r.Cancel)
	g.POST("/releases/book", r.Book)
}
