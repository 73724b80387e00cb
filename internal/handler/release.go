package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/release"
)

// ReleaseHandler exposes the release core over HTTP: creating and
// cancelling releases, browsing availability and claiming a released
// day.  All business rules live in release.Service; this layer only
// binds requests and maps errors to status codes.
type ReleaseHandler struct {
	Svc *release.Service
}

// NewReleaseHandler constructs a ReleaseHandler.
func NewReleaseHandler(svc *release.Service) *ReleaseHandler {
	if svc == nil {
		panic("nil service passed to NewReleaseHandler")
	}
	return &ReleaseHandler{Svc: svc}
}

type createReleaseReq struct {
	BookingID   uint64   `json:"booking_id"`
	Dates       []string `json:"release_dates"`
	Reason      string   `json:"reason"`
	UserMessage string   `json:"user_message"`
	ReleaseType string   `json:"release_type"`
	IsEmergency bool     `json:"is_emergency"`
}

// Create handles POST /v1/releases.
func (h *ReleaseHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReleaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	}
	detail, err := h.Svc.CreateRelease(c.Request().Context(), release.CreateReleaseInput{
		BookingID:   req.BookingID,
		UserID:      userID,
		Dates:       req.Dates,
		Reason:      req.Reason,
		UserMessage: req.UserMessage,
		ReleaseType: req.ReleaseType,
		IsEmergency: req.IsEmergency,
	})
	if err != nil {
		return releaseError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"release": detail, "derived_status": detail.DerivedStatus()})
}

// Cancel handles PATCH /v1/releases/:id/cancel.
func (h *ReleaseHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid release id"})
	}
	detail, err := h.Svc.CancelRelease(c.Request().Context(), id, userID, getRole(c))
	if err != nil {
		return releaseError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"release": detail})
}

type claimReq struct {
	BookingID uint64 `json:"original_booking_id"` // the booking whose day is claimed
	Date      string `json:"date"`
	Reason    string `json:"reason"`
}

// Book handles POST /v1/releases/book.  On success the response body
// carries the new temporary booking.
func (h *ReleaseHandler) Book(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req claimReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "original_booking_id is required"})
	}
	temp, err := h.Svc.ClaimReleasedDate(c.Request().Context(), req.BookingID, req.Date, userID, req.Reason)
	if err != nil {
		return releaseError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": temp})
}

// Availability handles GET /v1/computers/:id/availability with
// optional ?start_date=&end_date= bounds.  Public: anyone may browse
// claimable released days.
func (h *ReleaseHandler) Availability(c echo.Context) error {
	computerID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || computerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid computer id"})
	}
	slots, err := h.Svc.ListAvailableSlots(c.Request().Context(), computerID, c.QueryParam("start_date"), c.QueryParam("end_date"))
	if err != nil {
		return releaseError(c, err)
	}
	if slots == nil {
		slots = []release.AvailableSlot{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": slots})
}

// ListMine handles GET /v1/releases.
func (h *ReleaseHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Svc.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load releases"})
	}
	if items == nil {
		items = []release.UserRelease{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListAll handles GET /v1/admin/releases.  Routed behind
// RequireRole(ADMIN).
func (h *ReleaseHandler) ListAll(c echo.Context) error {
	items, err := h.Svc.ListAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load releases"})
	}
	if items == nil {
		items = []release.AdminRelease{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// releaseError maps service errors to HTTP responses.  Structured
// validation errors carry the offending dates back to the client.
func releaseError(c echo.Context, err error) error {
	var ve *release.ValidationError
	var oor *release.OutOfRangeError
	var dup *release.DuplicateReleaseError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Msg})
	case errors.As(err, &oor):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":         "some dates are outside the booking range",
			"invalid_dates": oor.InvalidDates,
		})
	case errors.As(err, &dup):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":           "some dates are already released",
			"duplicate_dates": dup.DuplicateDates,
		})
	case errors.Is(err, release.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, release.ErrReleaseNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "release not found"})
	case errors.Is(err, release.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, release.ErrBookingNotApproved):
		return c.JSON(http.StatusConflict, echo.Map{"error": "only approved bookings can release dates"})
	case errors.Is(err, release.ErrAlreadyCancelled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "release is already cancelled"})
	case errors.Is(err, release.ErrHasBookedDates):
		return c.JSON(http.StatusConflict, echo.Map{"error": "release has booked dates and cannot be cancelled"})
	case errors.Is(err, release.ErrNoActiveReleases):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking has no active releases"})
	case errors.Is(err, release.ErrDateUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": release.ErrDateUnavailable.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
