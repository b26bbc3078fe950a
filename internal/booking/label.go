// Package booking holds the slot/zone eligibility rules and the capacity
// accounting for reservations.  Everything here is pure: callers fetch the
// relevant rows from storage and pass a snapshot in.
package booking

import (
	"errors"
	"strings"
	"time"
)

// Zone is the booking area of a slot.  Morning slots only have Outside.
type Zone int

const (
	ZoneOutside Zone = iota
	ZoneInside
)

// Legacy label markers.  Stored labels carry these as a trailing token.
const (
	InsideMarker  = "(안)"
	OutsideMarker = "(밖)"
)

// LabelLayout is the time prefix of every slot label.
const LabelLayout = "2006-01-02 15:04"

// ErrMalformedLabel is returned when a label does not start with a
// "YYYY-MM-DD HH:MM" base time.
var ErrMalformedLabel = errors.New("malformed slot label")

func (z Zone) String() string {
	if z == ZoneInside {
		return "inside"
	}
	return "outside"
}

// Label is the structured form of a slot label.
type Label struct {
	Base time.Time
	Zone Zone
}

// ZoneOf classifies a raw label by its markers.  A label carrying neither
// marker counts as outside.
func ZoneOf(raw string) Zone {
	if strings.Contains(raw, InsideMarker) {
		return ZoneInside
	}
	return ZoneOutside
}

// ParseLabel converts a legacy label ("2025-05-25 14:00 (안)") into a Label.
// Only the first two whitespace separated tokens form the base time.
func ParseLabel(raw string) (Label, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return Label{}, ErrMalformedLabel
	}
	base, err := time.Parse(LabelLayout, fields[0]+" "+fields[1])
	if err != nil {
		return Label{}, ErrMalformedLabel
	}
	return Label{Base: base, Zone: ZoneOf(raw)}, nil
}
