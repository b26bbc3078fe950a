package booking

import (
	"strings"
	"time"
)

// openTimeLayouts are the accepted stored forms of the open time setting.
// The second one is what an HTML datetime-local input submits.
var openTimeLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04"}

// ParseOpenTime parses a stored open time in loc.  ok is false for an empty
// or unparseable value, which leaves the gate open.
func ParseOpenTime(raw string, loc *time.Location) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range openTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsOpen reports whether bookings are accepted at now.  A zero cutoff means
// no gate is configured.
func IsOpen(cutoff, now time.Time) bool {
	return cutoff.IsZero() || !now.Before(cutoff)
}
