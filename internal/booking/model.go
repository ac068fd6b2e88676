package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// State transitions:
//
//	pending   → confirmed | cancelled
//	confirmed → completed | cancelled
//	cancelled, completed are terminal
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Booking is the authoritative record of a reserved interval. Bookings are
// never deleted: they only move through the status machine. Version is the
// optimistic-concurrency counter; every successful write bumps it, and every
// mutating call must present the version it last read.
type Booking struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	StartTime      time.Time
	DurationMins   int
	Status         Status
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time // pending-hold deadline, nil once confirmed
}

func (b *Booking) EndTime() time.Time {
	return b.StartTime.Add(time.Duration(b.DurationMins) * time.Minute)
}

// Overlaps reports whether [start, end) intersects this booking's interval.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.EndTime())
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

// Actor is the caller identity as asserted by the upstream identity provider.
// The scheduler trusts it verbatim; verifying credentials is the gateway's job.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// CanMutate reports whether the actor may change a booking: the owning
// patient, the booking's practitioner, or an admin.
func (a Actor) CanMutate(b *Booking) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RolePatient:
		return a.ID == b.PatientID
	case RolePractitioner:
		return a.ID == b.PractitionerID
	}
	return false
}

// CanRead follows the same ownership rule as CanMutate.
func (a Actor) CanRead(b *Booking) bool {
	return a.CanMutate(b)
}
