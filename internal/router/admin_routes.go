package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/handler"
	"github.com/iliyamo/lab-computer-booking/internal/middleware"
)

// RegisterAdmin registers admin-scoped endpoints under /v1/admin.  All
// routes require a valid JWT and the ADMIN role.  Admins decide
// pending bookings, manage the lab/computer catalog and see the full
// release ledger including claimant identity.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, r *handler.ReleaseHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)

	g.GET("/bookings", a.ListBookings)
	g.PATCH("/bookings/:id/approve", a.ApproveBooking)
	g.PATCH("/bookings/:id/reject", a.RejectBooking)

	g.GET("/releases", r.ListAll)

	g.POST("/labs", a.CreateLab)
	g.PATCH("/labs/:id", a.UpdateLab)
	g.POST("/computers", a.CreateComputer)
	g.PATCH("/computers/:id", a.UpdateComputer)
}
