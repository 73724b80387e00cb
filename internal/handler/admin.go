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
	"github.com/iliyamo/lab-computer-booking/internal/queue"
	"github.com/iliyamo/lab-computer-booking/internal/repository"
	queue_publisher "github.com/iliyamo/lab-computer-booking/internal/service"
)

// AdminHandler serves booking decisions and catalog management.  All
// routes using it are behind RequireRole(ADMIN).
type AdminHandler struct {
	Bookings  *repository.BookingRepo
	Labs      *repository.LabRepo
	Computers *repository.ComputerRepo
	Publisher *queue_publisher.Publisher
}

// NewAdminHandler constructs an AdminHandler.  publisher may be nil;
// decision notifications are then skipped.
func NewAdminHandler(bookings *repository.BookingRepo, labs *repository.LabRepo, computers *repository.ComputerRepo, publisher *queue_publisher.Publisher) *AdminHandler {
	if bookings == nil || labs == nil || computers == nil {
		panic("nil repository passed to NewAdminHandler")
	}
	return &AdminHandler{Bookings: bookings, Labs: labs, Computers: computers, Publisher: publisher}
}

// ListBookings handles GET /v1/admin/bookings?status=.  Without a
// status filter every booking is returned.
func (h *AdminHandler) ListBookings(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	items, err := h.Bookings.ListByStatus(c.Request().Context(), status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ApproveBooking handles PATCH /v1/admin/bookings/:id/approve.
func (h *AdminHandler) ApproveBooking(c echo.Context) error {
	return h.decide(c, model.BookingStatusApproved, queue.BookingApproved)
}

// RejectBooking handles PATCH /v1/admin/bookings/:id/reject.
func (h *AdminHandler) RejectBooking(c echo.Context) error {
	return h.decide(c, model.BookingStatusRejected, queue.BookingRejected)
}

func (h *AdminHandler) decide(c echo.Context, status, eventType string) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.SetDecision(ctx, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not pending"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update booking"})
	}

	// Best effort; a broker outage must not fail the decision.
	if h.Publisher != nil {
		_ = h.Publisher.PublishBookingStatus(ctx, queue.BookingStatusEvent{
			Type:       eventType,
			BookingID:  b.ID,
			UserID:     b.UserID,
			ComputerID: b.ComputerID,
			StartDate:  b.StartDate,
			EndDate:    b.EndDate,
			Status:     b.Status,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// ----- catalog management -----

type labReq struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// CreateLab handles POST /v1/admin/labs.
func (h *AdminHandler) CreateLab(c echo.Context) error {
	var req labReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if req.Name == "" || req.Location == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and location are required"})
	}
	lab := model.Lab{Name: req.Name, Location: req.Location}
	if err := h.Labs.Create(c.Request().Context(), &lab); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "lab name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create lab"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"lab": lab})
}

// UpdateLab handles PATCH /v1/admin/labs/:id.
func (h *AdminHandler) UpdateLab(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lab id"})
	}
	var req labReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if req.Name == "" || req.Location == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and location are required"})
	}
	if err := h.Labs.Update(c.Request().Context(), id, req.Name, req.Location); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lab not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update lab"})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}

type computerReq struct {
	LabID       uint64  `json:"lab_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// CreateComputer handles POST /v1/admin/computers.
func (h *AdminHandler) CreateComputer(c echo.Context) error {
	var req computerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.LabID == 0 || req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "lab_id and name are required"})
	}
	ctx := c.Request().Context()
	if _, err := h.Labs.GetByID(ctx, req.LabID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lab not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	comp := model.Computer{LabID: req.LabID, Name: req.Name, Description: req.Description, IsActive: active}
	if err := h.Computers.Create(ctx, &comp); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "computer name already exists in this lab"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create computer"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"computer": comp})
}

// UpdateComputer handles PATCH /v1/admin/computers/:id.
func (h *AdminHandler) UpdateComputer(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid computer id"})
	}
	var req computerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	if err := h.Computers.Update(c.Request().Context(), id, req.Name, req.Description, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "computer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update computer"})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}
