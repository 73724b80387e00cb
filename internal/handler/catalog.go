package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-computer-booking/internal/repository"
)

// CatalogHandler serves the public browse endpoints for labs and
// computers.  No authentication required; responses are cacheable.
type CatalogHandler struct {
	Labs      *repository.LabRepo
	Computers *repository.ComputerRepo
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(labs *repository.LabRepo, computers *repository.ComputerRepo) *CatalogHandler {
	if labs == nil || computers == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{Labs: labs, Computers: computers}
}

// ListLabs handles GET /v1/labs.
func (h *CatalogHandler) ListLabs(c echo.Context) error {
	items, err := h.Labs.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load labs"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListComputers handles GET /v1/labs/:id/computers.  Only active
// computers are listed on the public surface.
func (h *CatalogHandler) ListComputers(c echo.Context) error {
	labID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || labID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid lab id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Labs.GetByID(ctx, labID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "lab not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items, err := h.Computers.ListByLab(ctx, labID, true)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load computers"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetComputer handles GET /v1/computers/:id.
func (h *CatalogHandler) GetComputer(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid computer id"})
	}
	comp, err := h.Computers.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "computer not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"computer": comp})
}
