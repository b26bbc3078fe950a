package booking

import (
	"errors"
	"time"
)

// ErrUnknownSlot is returned by Canonical for a well formed label whose
// base time is not one of the schedule's slots.
var ErrUnknownSlot = errors.New("slot not offered")

// ZoneCapacity is the maximum number of reservations for one exact slot label.
const ZoneCapacity = 3

// Schedule describes the fixed set of offered slots and the split between
// the morning (outside only) and afternoon (inside + outside) regimes.
type Schedule struct {
	Start      time.Time     // first slot
	Step       time.Duration // distance between slots
	Steps      int           // number of increments enumerated from Start
	BreakStart time.Time     // exclusion window, inclusive
	BreakEnd   time.Time     // exclusion window, exclusive
	SplitAt    time.Time     // first afternoon instant
	Capacity   int           // per zone ceiling
}

// DefaultSchedule is the event day: 10:00 onwards in 5 minute steps with
// the 11:00-12:30 lunch break removed.
func DefaultSchedule() Schedule {
	day := func(h, m int) time.Time { return time.Date(2025, 5, 25, h, m, 0, 0, time.UTC) }
	return Schedule{
		Start:      day(10, 0),
		Step:       5 * time.Minute,
		Steps:      100,
		BreakStart: day(11, 0),
		BreakEnd:   day(12, 30),
		SplitAt:    day(12, 30),
		Capacity:   ZoneCapacity,
	}
}

// Slots enumerates the offered base times in increasing order.
func (s Schedule) Slots() []time.Time {
	out := make([]time.Time, 0, s.Steps)
	for i := 0; i < s.Steps; i++ {
		t := s.Start.Add(time.Duration(i) * s.Step)
		if !t.Before(s.BreakStart) && t.Before(s.BreakEnd) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// GenerateSlots returns the default schedule's base times formatted with
// LabelLayout.
func GenerateSlots() []string {
	slots := DefaultSchedule().Slots()
	out := make([]string, len(slots))
	for i, t := range slots {
		out[i] = t.Format(LabelLayout)
	}
	return out
}

// IsMorning reports whether t falls in the outside-only regime.
func (s Schedule) IsMorning(t time.Time) bool { return t.Before(s.SplitAt) }

// Offers reports whether base is one of the enumerated slots.
func (s Schedule) Offers(base time.Time) bool {
	if base.Before(s.Start) || s.Step <= 0 {
		return false
	}
	d := base.Sub(s.Start)
	if d%s.Step != 0 || int(d/s.Step) >= s.Steps {
		return false
	}
	return base.Before(s.BreakStart) || !base.Before(s.BreakEnd)
}

// Format renders a Label in its canonical legacy form.  Morning labels carry
// no marker; afternoon labels always carry their zone marker.
func (s Schedule) Format(l Label) string {
	base := l.Base.Format(LabelLayout)
	switch {
	case l.Zone == ZoneInside:
		return base + " " + InsideMarker
	case s.IsMorning(l.Base):
		return base
	default:
		return base + " " + OutsideMarker
	}
}

// Canonical parses raw and re-renders it with Format, so "14:00" and
// "14:00 (밖)" address the same stored rows.
func (s Schedule) Canonical(raw string) (string, error) {
	l, err := ParseLabel(raw)
	if err != nil {
		return "", err
	}
	if !s.Offers(l.Base) {
		return "", ErrUnknownSlot
	}
	return s.Format(l), nil
}
