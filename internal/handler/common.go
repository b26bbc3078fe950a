// Package handler holds the Echo HTTP handlers.  Handlers depend on small
// interfaces so tests can drive them without a database.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/timeslot-reservation/internal/booking"
	"github.com/iliyamo/timeslot-reservation/internal/repository"
	"github.com/iliyamo/timeslot-reservation/internal/service"
)

// requestTimeout bounds the database work of a single request.
const requestTimeout = 5 * time.Second

// Purger drops cached slot listings after a write.
type Purger interface {
	Purge(ctx context.Context, prefix string) error
}

// slotRequest is the body of the reservation endpoints.
type slotRequest struct {
	Name     string `json:"name" query:"name" form:"name"`
	Timeslot string `json:"timeslot" query:"timeslot" form:"timeslot"`
}

// statusFor maps a rejection reason to its HTTP status.
func statusFor(r booking.Reason) int {
	switch r {
	case booking.ParseError:
		return http.StatusBadRequest
	case booking.NotYetOpen:
		return http.StatusForbidden
	}
	return http.StatusConflict
}

// writeError renders err as {"error": ...} with a matching status.
// Unexpected errors are logged and hidden behind fallback.
func writeError(c echo.Context, err error, fallback string) error {
	if reason := service.ReasonOf(err); reason != "" {
		return c.JSON(statusFor(reason), echo.Map{"error": string(reason), "message": reason.Message()})
	}
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	c.Logger().Errorf("%s: %v", fallback, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
}

// purge invalidates the slot listing cache.  A failure only costs freshness
// until the cache TTL runs out.
func purge(c echo.Context, p Purger, prefix string) {
	if p == nil {
		return
	}
	if err := p.Purge(context.WithoutCancel(c.Request().Context()), prefix); err != nil {
		c.Logger().Warnf("cache purge %q: %v", prefix, err)
	}
}

func paramID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
