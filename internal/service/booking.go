// Package service runs the reservation use cases: it loads the rows the
// booking rules need, applies them inside a transaction and publishes an
// event once the change is committed.
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
	"github.com/iliyamo/timeslot-reservation/internal/repository"
)

// maxAttempts bounds how often a booking transaction is retried after
// InnoDB picks it as a deadlock victim.
const maxAttempts = 3

// publishTimeout caps how long a request waits on the broker.
const publishTimeout = 3 * time.Second

// BookingService implements the public booking flow.
type BookingService struct {
	Reservations *repository.ReservationRepo
	Settings     *repository.SettingRepo
	Publisher    Publisher
	Schedule     booking.Schedule
	Location     *time.Location   // zone of the stored open time
	Now          func() time.Time // clock, replaced in tests
}

// NewBookingService wires a service over the default schedule.
func NewBookingService(res *repository.ReservationRepo, set *repository.SettingRepo, pub Publisher, loc *time.Location) *BookingService {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &BookingService{
		Reservations: res,
		Settings:     set,
		Publisher:    pub,
		Schedule:     booking.DefaultSchedule(),
		Location:     loc,
		Now:          time.Now,
	}
}

// SlotListing is the body of GET /v1/slots.
type SlotListing struct {
	Items    []booking.SlotView `json:"items"`
	OpenTime string             `json:"open_time"`
	Open     bool               `json:"open"`
}

// Book reserves label for name.  Rule violations come back as a
// *RejectedError; NotYetOpen is checked before anything is read.
func (s *BookingService) Book(ctx context.Context, name, label string) (*model.Reservation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	_, open, err := s.gate(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, rejected(booking.NotYetOpen)
	}
	return s.reserve(ctx, name, label)
}

// Cancel removes name's reservations under label.  It returns
// repository.ErrNotFound when there is nothing to cancel.
func (s *BookingService) Cancel(ctx context.Context, name, label string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	canon, err := s.canonical(label)
	if err != nil {
		return err
	}
	if _, err := s.Reservations.DeleteByNameAndLabel(ctx, name, canon); err != nil {
		return err
	}
	s.publish(ctx, queue.EventCancelled, model.Reservation{Name: name, SlotLabel: canon})
	return nil
}

// Slots lists every offered slot with its per zone counts and the state of
// the open time gate.
func (s *BookingService) Slots(ctx context.Context) (SlotListing, error) {
	counts, err := s.Reservations.CountsByLabel(ctx)
	if err != nil {
		return SlotListing{}, err
	}
	bases := s.Schedule.Slots()
	items := make([]booking.SlotView, 0, len(bases))
	for _, base := range bases {
		in := counts[s.Schedule.Format(booking.Label{Base: base, Zone: booking.ZoneInside})]
		out := counts[s.Schedule.Format(booking.Label{Base: base, Zone: booking.ZoneOutside})]
		items = append(items, s.Schedule.SummarizeSlot(base, in, out))
	}
	raw, open, err := s.gate(ctx)
	if err != nil {
		return SlotListing{}, err
	}
	return SlotListing{Items: items, OpenTime: raw, Open: open}, nil
}

// gate returns the stored open time and whether bookings are accepted now.
func (s *BookingService) gate(ctx context.Context) (raw string, open bool, err error) {
	raw, err = s.Settings.Get(ctx, model.SettingOpenTime)
	if err != nil {
		return "", false, err
	}
	cutoff, _ := booking.ParseOpenTime(raw, s.Location)
	return raw, booking.IsOpen(cutoff, s.now()), nil
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// canonical maps label to its stored form.  Unknown slots are a parse
// error, the same as a malformed label.
func (s *BookingService) canonical(label string) (string, error) {
	canon, err := s.Schedule.Canonical(label)
	if err != nil {
		return "", rejected(booking.ParseError)
	}
	return canon, nil
}

// reserve applies the booking rules without the open time gate.
func (s *BookingService) reserve(ctx context.Context, name, label string) (*model.Reservation, error) {
	canon, err := s.canonical(label)
	if err != nil {
		return nil, err
	}
	var res *model.Reservation
	for attempt := 1; ; attempt++ {
		res, err = s.reserveTx(ctx, name, canon)
		if err == nil || attempt >= maxAttempts || !repository.IsRetryable(err) {
			break
		}
		log.Warnf("booking: retrying %q for %q (attempt %d): %v", canon, name, attempt, err)
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.EventCreated, *res)
	return res, nil
}

// reserveTx reads the caller's bookings and the slot count with locking
// reads, evaluates and inserts, all in one transaction.
func (s *BookingService) reserveTx(ctx context.Context, name, label string) (*model.Reservation, error) {
	tx, err := s.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := s.Reservations.LabelsByNameTx(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	count, err := s.Reservations.CountByLabelTx(ctx, tx, label)
	if err != nil {
		return nil, err
	}
	d := s.Schedule.Evaluate(name, label, existing, count)
	if !d.Accepted() {
		return nil, rejected(d.Reason)
	}
	if err := s.Reservations.CreateTx(ctx, tx, d.Reservation); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return d.Reservation, nil
}

// publish emits an event after a committed change.  Broker failures are
// logged and never undo the change.
func (s *BookingService) publish(ctx context.Context, typ string, r model.Reservation) {
	if s.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Publisher.Publish(ctx, queue.NewReservationEvent(typ, r)); err != nil {
		log.Warnf("booking: publish %s for %q failed: %v", typ, r.SlotLabel, err)
	}
}
