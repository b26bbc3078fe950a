package booking

import (
	"github.com/iliyamo/timeslot-reservation/internal/model"
)

// Reason explains why a booking was rejected.  The empty Reason means the
// booking was accepted.
type Reason string

const (
	MorningInsideNotAllowed Reason = "morning_inside_not_allowed"
	ZoneAlreadyBooked       Reason = "zone_already_booked"
	SlotFull                Reason = "slot_full"
	ParseError              Reason = "parse_error"
	NotYetOpen              Reason = "not_yet_open"
)

// Message is the user facing text for a rejection.
func (r Reason) Message() string {
	switch r {
	case MorningInsideNotAllowed:
		return "morning slots can only be booked outside"
	case ZoneAlreadyBooked:
		return "you already hold a reservation in this zone"
	case SlotFull:
		return "this time slot is fully booked"
	case NotYetOpen:
		return "reservations are not open yet"
	case ParseError:
		return "invalid time slot"
	}
	return ""
}

// Decision is the outcome of Evaluate.  Reservation is only set when the
// booking was accepted and is ready to be inserted.
type Decision struct {
	Reason      Reason
	Reservation *model.Reservation
}

// Accepted reports whether the booking may be persisted.
func (d Decision) Accepted() bool { return d.Reason == "" && d.Reservation != nil }

// OrderInSlot is the sequence number assigned on acceptance, zero otherwise.
func (d Decision) OrderInSlot() int {
	if d.Reservation == nil {
		return 0
	}
	return d.Reservation.OrderInSlot
}

func reject(r Reason) Decision { return Decision{Reason: r} }

// Evaluate runs the default schedule's rules.  See Schedule.Evaluate.
func Evaluate(identity, slotLabel string, existing []string, count int) Decision {
	return DefaultSchedule().Evaluate(identity, slotLabel, existing, count)
}

// Evaluate decides whether identity may book slotLabel.  existing holds every
// label already booked under identity and count the number of rows stored
// under exactly slotLabel.  The checks run in a fixed order: label parsing,
// the morning inside guard, one booking per zone per identity, then
// capacity.  The caller owns the atomicity of count and insert.
func (s Schedule) Evaluate(identity, slotLabel string, existing []string, count int) Decision {
	l, err := ParseLabel(slotLabel)
	if err != nil {
		return reject(ParseError)
	}
	if l.Zone == ZoneInside && s.IsMorning(l.Base) {
		return reject(MorningInsideNotAllowed)
	}
	for _, prev := range existing {
		if ZoneOf(prev) == l.Zone {
			return reject(ZoneAlreadyBooked)
		}
	}
	ceiling := s.Capacity
	if ceiling <= 0 {
		ceiling = ZoneCapacity
	}
	if count >= ceiling {
		return reject(SlotFull)
	}
	return Decision{Reservation: &model.Reservation{
		Name:        identity,
		SlotLabel:   slotLabel,
		OrderInSlot: count + 1,
		Used:        false,
	}}
}
