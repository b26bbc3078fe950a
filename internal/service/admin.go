package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/timeslot-reservation/internal/booking"
	"github.com/iliyamo/timeslot-reservation/internal/model"
	"github.com/iliyamo/timeslot-reservation/internal/queue"
	"github.com/iliyamo/timeslot-reservation/internal/utils"
)

// AdminService backs the administrator endpoints.  It shares the booking
// rules with BookingService but is not subject to the open time gate.
type AdminService struct {
	Booking      *BookingService
	PasswordHash string // bcrypt hash of ADMIN_PASSWORD
	JWTSecret    string
	AccessTTLMin int
}

// OpenTimeView describes the gate for the admin screen.
type OpenTimeView struct {
	Raw  string     `json:"open_time"`
	At   *time.Time `json:"at,omitempty"`
	Open bool       `json:"open"`
}

// List returns every reservation in display order.
func (a *AdminService) List(ctx context.Context) ([]model.Reservation, error) {
	return a.Booking.Reservations.ListAll(ctx)
}

// Add books label for name on an administrator's behalf.
func (a *AdminService) Add(ctx context.Context, name, label string) (*model.Reservation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return a.Booking.reserve(ctx, name, label)
}

// Delete removes one reservation by id.
func (a *AdminService) Delete(ctx context.Context, id uint64) error {
	r, err := a.Booking.Reservations.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := a.Booking.Reservations.DeleteByID(ctx, id); err != nil {
		return err
	}
	a.Booking.publish(ctx, queue.EventCancelled, *r)
	return nil
}

// ToggleUsed flips the used flag and returns the updated row.
func (a *AdminService) ToggleUsed(ctx context.Context, id uint64) (*model.Reservation, error) {
	if err := a.Booking.Reservations.ToggleUsed(ctx, id); err != nil {
		return nil, err
	}
	return a.Booking.Reservations.GetByID(ctx, id)
}

// ResetUsed clears every used flag.
func (a *AdminService) ResetUsed(ctx context.Context) (int64, error) {
	return a.Booking.Reservations.ResetUsed(ctx)
}

// OpenTime reports the stored open time and whether the gate is open now.
func (a *AdminService) OpenTime(ctx context.Context) (OpenTimeView, error) {
	raw, open, err := a.Booking.gate(ctx)
	if err != nil {
		return OpenTimeView{}, err
	}
	v := OpenTimeView{Raw: raw, Open: open}
	if t, ok := booking.ParseOpenTime(raw, a.Booking.Location); ok {
		v.At = &t
	}
	return v, nil
}

// SetOpenTime stores a new open time.  An empty value removes the gate.
// Accepted values are normalized to "YYYY-MM-DD HH:MM".
func (a *AdminService) SetOpenTime(ctx context.Context, raw string) (OpenTimeView, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		t, ok := booking.ParseOpenTime(raw, a.Booking.Location)
		if !ok {
			return OpenTimeView{}, fmt.Errorf("%w: open time must look like 2025-05-25 09:00", ErrInvalidInput)
		}
		raw = t.Format(booking.LabelLayout)
	}
	if err := a.Booking.Settings.Set(ctx, model.SettingOpenTime, raw); err != nil {
		return OpenTimeView{}, err
	}
	log.Infof("admin: open time set to %q", raw)
	return a.OpenTime(ctx)
}

// Login checks the shared administrator password and issues an access
// token with the ADMIN role.
func (a *AdminService) Login(password string) (utils.AccessToken, error) {
	if a.PasswordHash == "" || !utils.VerifyPassword(a.PasswordHash, password) {
		return utils.AccessToken{}, ErrUnauthorized
	}
	return utils.NewAccessToken(a.JWTSecret, utils.AdminSubject, utils.RoleAdmin, a.AccessTTLMin)
}

// LoadSettings reads the persisted settings once at startup and logs them.
func (a *AdminService) LoadSettings(ctx context.Context) error {
	raw, err := a.Booking.Settings.Get(ctx, model.SettingOpenTime)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if _, ok := booking.ParseOpenTime(raw, a.Booking.Location); raw != "" && !ok {
		log.Warnf("settings: ignoring unparseable open_time %q", raw)
		return nil
	}
	if raw == "" {
		log.Infof("settings: no open_time configured, bookings are open")
		return nil
	}
	log.Infof("settings: open_time=%q (%s)", raw, a.Booking.Location)
	return nil
}
