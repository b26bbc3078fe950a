// Package queue defines the reservation events exchanged over RabbitMQ and
// the consumer that records them.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/timeslot-reservation/internal/model"
)

// QueueName is the durable queue both the publisher and consumer declare.
const QueueName = "reservation.events"

// Event types.
const (
	EventCreated   = "reservation.created"
	EventCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation row is committed or
// removed.  It carries enough for downstream consumers to log or notify
// without querying the database.
type ReservationEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	ReservationID uint64    `json:"reservation_id,omitempty"`
	Name          string    `json:"name"`
	SlotLabel     string    `json:"timeslot"`
	OrderInSlot   int       `json:"order_in_slot,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewReservationEvent stamps r with a fresh id and the current UTC time.
func NewReservationEvent(typ string, r model.Reservation) ReservationEvent {
	return ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          typ,
		ReservationID: r.ID,
		Name:          r.Name,
		SlotLabel:     r.SlotLabel,
		OrderInSlot:   r.OrderInSlot,
		OccurredAt:    time.Now().UTC(),
	}
}
