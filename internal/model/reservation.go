package model

import "time"

// Reservation records one person's booking of one zone within one
// time slot.  The zone is encoded in SlotLabel as a trailing marker.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – free text identity of the person; not unique.
//  SlotLabel   – "YYYY-MM-DD HH:MM" with an optional zone marker.
//  OrderInSlot – 1-based position inside the exact SlotLabel, assigned
//                once at insertion and never compacted.
//  Used        – set by administrators when the reservation is honoured.
//  CreatedAt   – insertion timestamp.
type Reservation struct {
    ID          uint64    `json:"id"`            // reservations.id
    Name        string    `json:"name"`          // reservations.name
    SlotLabel   string    `json:"timeslot"`      // reservations.timeslot
    OrderInSlot int       `json:"order_in_slot"` // reservations.order_in_slot
    Used        bool      `json:"used"`          // reservations.used
    CreatedAt   time.Time `json:"created_at"`    // reservations.created_at
}
