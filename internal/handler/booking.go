package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/model"
	"github.com/iliyamo/lab-computer-booking/internal/release"
	"github.com/iliyamo/lab-computer-booking/internal/repository"
)

// BookingHandler serves the student-facing booking lifecycle:
// requesting a booking, listing and inspecting own bookings, and
// cancelling them.  Approval lives in AdminHandler; releasing days
// lives in ReleaseHandler.
type BookingHandler struct {
	Bookings  *repository.BookingRepo
	Computers *repository.ComputerRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *repository.BookingRepo, computers *repository.ComputerRepo) *BookingHandler {
	if bookings == nil || computers == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Computers: computers}
}

type createBookingReq struct {
	ComputerID  uint64 `json:"computer_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ProjectName string `json:"project_name"`
	Supervisor  string `json:"supervisor"`
}

// isValidClock reports whether s is a well-formed HH:MM time of day.
func isValidClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// Create handles POST /v1/bookings.  The booking is created PENDING
// and waits for an admin decision.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.ProjectName = strings.TrimSpace(req.ProjectName)
	req.Supervisor = strings.TrimSpace(req.Supervisor)
	switch {
	case req.ComputerID == 0:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "computer_id is required"})
	case !release.IsValidDate(req.StartDate) || !release.IsValidDate(req.EndDate):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date/end_date must be YYYY-MM-DD"})
	case req.StartDate > req.EndDate:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must not be after end_date"})
	case !isValidClock(req.StartTime) || !isValidClock(req.EndTime):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time/end_time must be HH:MM"})
	case req.ProjectName == "":
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "project_name is required"})
	}

	ctx := c.Request().Context()
	comp, err := h.Computers.GetByID(ctx, req.ComputerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "computer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !comp.IsActive {
		return c.JSON(http.StatusConflict, echo.Map{"error": "computer is not available for booking"})
	}

	b := model.Booking{
		UserID:      userID,
		ComputerID:  req.ComputerID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      model.BookingStatusPending,
		ProjectName: req.ProjectName,
		Supervisor:  req.Supervisor,
	}
	if err := h.Bookings.Create(ctx, &b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create booking"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": b})
}

// ListMine handles GET /v1/my-bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/bookings/:id.  A booking is visible to its
// owner and to admins.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch booking"})
	}
	if b.UserID != userID && getRole(c) != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// Cancel handles DELETE /v1/bookings/:id.  Only the owner can cancel,
// only while PENDING or APPROVED, and not while days are released.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	err = h.Bookings.CancelOwn(c.Request().Context(), id, userID)
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking cannot be cancelled in its current state"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel booking"})
	}
}
