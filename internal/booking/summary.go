package booking

import "time"

// Summary is the display state of a counter against a ceiling.
type Summary struct {
	Reserved  int  `json:"reserved"`
	Remaining int  `json:"remaining"`
	Full      bool `json:"full"`
}

// Summarize compares reserved against ceiling.  Remaining never goes
// below zero.
func Summarize(reserved, ceiling int) Summary {
	remaining := ceiling - reserved
	if remaining < 0 {
		remaining = 0
	}
	return Summary{Reserved: reserved, Remaining: remaining, Full: reserved >= ceiling}
}

// SlotView is one row of the public slot listing.
//
// Inside and Outside use the per zone ceiling, the one enforced at booking
// time.  Total uses the combined display ceiling (one zone in the morning,
// two in the afternoon) and is informational only: a slot whose Total is
// not full can still reject a booking because the requested zone is full.
type SlotView struct {
	Time    string  `json:"time"`
	Label   string  `json:"label"`
	Morning bool    `json:"morning"`
	Inside  Summary `json:"in"`
	Outside Summary `json:"out"`
	Total   Summary `json:"total"`
}

// SummarizeSlot builds the view for base from the per zone row counts.
// Morning slots ignore in.
func (s Schedule) SummarizeSlot(base time.Time, in, out int) SlotView {
	ceiling := s.Capacity
	if ceiling <= 0 {
		ceiling = ZoneCapacity
	}
	v := SlotView{
		Time:    base.Format(LabelLayout),
		Label:   base.Format(LabelLayout),
		Morning: s.IsMorning(base),
		Outside: Summarize(out, ceiling),
	}
	if v.Morning {
		v.Inside = Summary{}
		v.Total = Summarize(out, ceiling)
		return v
	}
	v.Inside = Summarize(in, ceiling)
	v.Total = Summarize(in+out, 2*ceiling)
	return v
}
