package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlotsSkipsLunchBreak(t *testing.T) {
	s := DefaultSchedule()
	slots := s.Slots()

	// 100 increments minus the 18 that fall in [11:00, 12:30).
	require.Len(t, slots, 82)
	assert.Equal(t, "2025-05-25 10:00", slots[0].Format(LabelLayout))
	assert.Equal(t, "2025-05-25 10:55", slots[11].Format(LabelLayout))
	assert.Equal(t, "2025-05-25 12:30", slots[12].Format(LabelLayout))
	assert.Equal(t, "2025-05-25 18:15", slots[len(slots)-1].Format(LabelLayout))

	seen := map[time.Time]bool{}
	for i, ts := range slots {
		assert.False(t, !ts.Before(s.BreakStart) && ts.Before(s.BreakEnd), "slot %s inside break", ts)
		assert.False(t, seen[ts], "duplicate slot %s", ts)
		seen[ts] = true
		if i > 0 {
			assert.True(t, ts.After(slots[i-1]))
		}
	}

	for i := 0; i < s.Steps; i++ {
		ts := s.Start.Add(time.Duration(i) * s.Step)
		inBreak := !ts.Before(s.BreakStart) && ts.Before(s.BreakEnd)
		assert.Equal(t, !inBreak, seen[ts], "increment %s", ts)
	}
}

func TestGenerateSlotsIsRestartable(t *testing.T) {
	assert.Equal(t, GenerateSlots(), GenerateSlots())
}

func TestScheduleOffers(t *testing.T) {
	s := DefaultSchedule()
	parse := func(v string) time.Time {
		ts, err := time.Parse(LabelLayout, v)
		require.NoError(t, err)
		return ts
	}
	assert.True(t, s.Offers(parse("2025-05-25 10:00")))
	assert.True(t, s.Offers(parse("2025-05-25 12:30")))
	assert.True(t, s.Offers(parse("2025-05-25 18:15")))
	assert.False(t, s.Offers(parse("2025-05-25 11:00")))
	assert.False(t, s.Offers(parse("2025-05-25 12:25")))
	assert.False(t, s.Offers(parse("2025-05-25 18:20")))
	assert.False(t, s.Offers(parse("2025-05-25 09:55")))
	assert.False(t, s.Offers(parse("2025-05-25 10:02")))
}

func TestScheduleFormatAndCanonical(t *testing.T) {
	s := DefaultSchedule()
	testCases := []struct {
		raw  string
		want string
	}{
		{"2025-05-25 10:05", "2025-05-25 10:05"},
		{"2025-05-25 10:05 (밖)", "2025-05-25 10:05"},
		{"2025-05-25 10:05 (안)", "2025-05-25 10:05 (안)"},
		{"2025-05-25 14:00", "2025-05-25 14:00 (밖)"},
		{"2025-05-25 14:00 (밖)", "2025-05-25 14:00 (밖)"},
		{"  2025-05-25   14:00   (안) ", "2025-05-25 14:00 (안)"},
	}
	for _, tc := range testCases {
		got, err := s.Canonical(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	_, err := s.Canonical("25/05/2025 10:05")
	assert.ErrorIs(t, err, ErrMalformedLabel)

	_, err = s.Canonical("2025-05-25 11:30 (밖)")
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestParseLabelZones(t *testing.T) {
	l, err := ParseLabel("2025-05-25 14:00 (안)")
	require.NoError(t, err)
	assert.Equal(t, ZoneInside, l.Zone)
	assert.Equal(t, "inside", l.Zone.String())

	l, err = ParseLabel("2025-05-25 14:00")
	require.NoError(t, err)
	assert.Equal(t, ZoneOutside, l.Zone)
	assert.Equal(t, "outside", l.Zone.String())

	assert.Equal(t, ZoneOutside, ZoneOf("2025-05-25 14:00 (밖)"))
	assert.Equal(t, ZoneInside, ZoneOf("2025-05-25 14:00 (안)"))
}
