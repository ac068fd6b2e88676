// Package notify publishes fire-and-forget booking lifecycle events for the
// notification dispatcher. Delivery failures are logged and never roll back
// the booking they describe.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeCreated     = "created"
	TypeConfirmed   = "confirmed"
	TypeCancelled   = "cancelled"
	TypeRescheduled = "rescheduled"
	TypeExpired     = "expired"
)

type Event struct {
	BookingID  uuid.UUID `json:"booking_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events. Used when AMQP_URL is unset and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
