package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/timeslot-reservation/internal/model"
	"github.com/iliyamo/timeslot-reservation/internal/service"
)

// Booker is the public booking flow.
type Booker interface {
	Book(ctx context.Context, name, label string) (*model.Reservation, error)
	Cancel(ctx context.Context, name, label string) error
	Slots(ctx context.Context) (service.SlotListing, error)
}

// BookingHandler serves the public endpoints.
type BookingHandler struct {
	Svc         Booker
	Cache       Purger
	CachePrefix string
}

func NewBookingHandler(svc Booker, cache Purger, prefix string) *BookingHandler {
	return &BookingHandler{Svc: svc, Cache: cache, CachePrefix: prefix}
}

// Slots handles GET /v1/slots.
func (h *BookingHandler) Slots(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	list, err := h.Svc.Slots(ctx)
	if err != nil {
		return writeError(c, err, "failed to load slots")
	}
	return c.JSON(http.StatusOK, list)
}

// Create handles POST /v1/reservations with {"name", "timeslot"}.  A refused
// booking answers 409 with the rejection reason, except for an invalid slot
// (400) and a closed gate (403).
func (h *BookingHandler) Create(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Svc.Book(ctx, req.Name, req.Timeslot)
	if err != nil {
		return writeError(c, err, "failed to create reservation")
	}
	purge(c, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusCreated, echo.Map{"reservation": res})
}

// Cancel handles DELETE /v1/reservations with {"name", "timeslot"}.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Svc.Cancel(ctx, req.Name, req.Timeslot); err != nil {
		return writeError(c, err, "failed to cancel reservation")
	}
	purge(c, h.Cache, h.CachePrefix)
	return c.NoContent(http.StatusNoContent)
}
