package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/timeslot-reservation/internal/model"
	"github.com/iliyamo/timeslot-reservation/internal/service"
	"github.com/iliyamo/timeslot-reservation/internal/utils"
)

// Admin is the administrator use case set.
type Admin interface {
	List(ctx context.Context) ([]model.Reservation, error)
	Add(ctx context.Context, name, label string) (*model.Reservation, error)
	Delete(ctx context.Context, id uint64) error
	ToggleUsed(ctx context.Context, id uint64) (*model.Reservation, error)
	ResetUsed(ctx context.Context) (int64, error)
	OpenTime(ctx context.Context) (service.OpenTimeView, error)
	SetOpenTime(ctx context.Context, raw string) (service.OpenTimeView, error)
	Login(password string) (utils.AccessToken, error)
}

// AdminHandler serves /v1/admin.  Every route except Login sits behind
// JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	Svc         Admin
	Cache       Purger
	CachePrefix string
}

func NewAdminHandler(svc Admin, cache Purger, prefix string) *AdminHandler {
	return &AdminHandler{Svc: svc, Cache: cache, CachePrefix: prefix}
}

type loginReq struct {
	Password string `json:"password" form:"password"`
}

type openTimeReq struct {
	OpenTime string `json:"open_time" form:"open_time"`
}

// Login handles POST /v1/admin/login.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password required"})
	}
	access, err := h.Svc.Login(req.Password)
	if err != nil {
		return writeError(c, err, "issue access failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"access": access})
}

// List handles GET /v1/admin/reservations.
func (h *AdminHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	items, err := h.Svc.List(ctx)
	if err != nil {
		return writeError(c, err, "failed to list reservations")
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Add handles POST /v1/admin/reservations.  The booking rules apply but the
// open time does not.
func (h *AdminHandler) Add(c echo.Context) error {
	var req slotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Svc.Add(ctx, req.Name, req.Timeslot)
	if err != nil {
		return writeError(c, err, "failed to create reservation")
	}
	purge(c, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusCreated, echo.Map{"reservation": res})
}

// Delete handles DELETE /v1/admin/reservations/:id.
func (h *AdminHandler) Delete(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	if err := h.Svc.Delete(ctx, id); err != nil {
		return writeError(c, err, "failed to delete reservation")
	}
	purge(c, h.Cache, h.CachePrefix)
	return c.NoContent(http.StatusNoContent)
}

// ToggleUsed handles POST /v1/admin/reservations/:id/toggle-used.
func (h *AdminHandler) ToggleUsed(c echo.Context) error {
	id, ok := paramID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	res, err := h.Svc.ToggleUsed(ctx, id)
	if err != nil {
		return writeError(c, err, "failed to update reservation")
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation": res})
}

// ResetUsed handles POST /v1/admin/reservations/reset-used.
func (h *AdminHandler) ResetUsed(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	n, err := h.Svc.ResetUsed(ctx)
	if err != nil {
		return writeError(c, err, "failed to reset used flags")
	}
	return c.JSON(http.StatusOK, echo.Map{"reset": n})
}

// OpenTime handles GET /v1/admin/open-time.
func (h *AdminHandler) OpenTime(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	v, err := h.Svc.OpenTime(ctx)
	if err != nil {
		return writeError(c, err, "failed to read open time")
	}
	return c.JSON(http.StatusOK, v)
}

// SetOpenTime handles PUT /v1/admin/open-time.  An empty open_time removes
// the gate.
func (h *AdminHandler) SetOpenTime(c echo.Context) error {
	var req openTimeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	v, err := h.Svc.SetOpenTime(ctx, req.OpenTime)
	if err != nil {
		return writeError(c, err, "failed to save open time")
	}
	purge(c, h.Cache, h.CachePrefix)
	return c.JSON(http.StatusOK, v)
}
