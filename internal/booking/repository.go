package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrSlotTaken means the requested interval overlaps an active booking.
	// Recoverable: the caller should re-query availability and retry.
	ErrSlotTaken = errors.New("interval already has an active booking")

	// ErrVersionMismatch means the stored version no longer matches the one
	// the caller presented. Recoverable: re-fetch and retry with the current
	// version.
	ErrVersionMismatch = errors.New("booking version mismatch")

	ErrInvalidTransition = errors.New("invalid booking status transition")
)

// Repository is the booking ledger's persistence contract. Reserve and
// Reschedule are the only interval-claiming writes; both are conditional and
// commit only when the no-overlap invariant holds at commit time.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// ListActiveInRange returns pending and confirmed bookings for the
	// practitioner that overlap [from, to), ordered by start time.
	ListActiveInRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Booking, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Booking, error)

	// Reserve atomically inserts a pending booking if no active booking for
	// the practitioner overlaps [start, start+duration). Returns ErrSlotTaken
	// when one does. Of two concurrent overlapping reserves, whichever
	// transaction commits first wins.
	Reserve(ctx context.Context, practitionerID, patientID uuid.UUID, start time.Time, durationMins int, expiresAt *time.Time) (*Booking, error)

	// UpdateStatus transitions a booking iff the stored version still equals
	// expectedVersion, bumping the version. ErrVersionMismatch otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, expectedVersion int64) (*Booking, error)

	// Reschedule cancels the old booking and reserves the new interval in one
	// transaction: on ErrSlotTaken or ErrVersionMismatch nothing changes.
	// Returns the replacement booking.
	Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, newDurationMins int, expectedVersion int64, holdFor time.Duration) (*Booking, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Booking, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
