package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded in-memory ledger with the same
// conditional-write semantics as PgRepository. Used by tests and local
// development without Postgres.
type MemoryRepository struct {
	mu       sync.Mutex
	patients map[uuid.UUID]Patient
	bookings map[uuid.UUID]*Booking
	events   []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[uuid.UUID]Patient),
		bookings: make(map[uuid.UUID]*Booking),
	}
}

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

// Events returns a copy of the event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *MemoryRepository) getLocked(id uuid.UUID) (*Booking, error) {
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) ListActiveInRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Booking
	for _, b := range r.bookings {
		if b.PractitionerID != practitionerID {
			continue
		}
		if b.Status != StatusPending && b.Status != StatusConfirmed {
			continue
		}
		if b.Overlaps(from, to) {
			result = append(result, *b)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, nil
}

func (r *MemoryRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Booking
	for _, b := range r.bookings {
		if b.PatientID == patientID {
			result = append(result, *b)
		}
	}
	return pageByStartDesc(result, limit, offset), nil
}

func (r *MemoryRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Booking
	for _, b := range r.bookings {
		if b.PractitionerID == practitionerID {
			result = append(result, *b)
		}
	}
	return pageByStartDesc(result, limit, offset), nil
}

func pageByStartDesc(result []Booking, limit, offset int) []Booking {
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.After(result[j].StartTime) })
	if offset >= len(result) {
		return nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result
}

func (r *MemoryRepository) Reserve(ctx context.Context, practitionerID, patientID uuid.UUID, start time.Time, durationMins int, expiresAt *time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := start.Add(time.Duration(durationMins) * time.Minute)
	if r.hasActiveOverlapLocked(practitionerID, start, end, uuid.Nil) {
		return nil, ErrSlotTaken
	}

	now := time.Now()
	b := &Booking{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		PatientID:      patientID,
		StartTime:      start,
		DurationMins:   durationMins,
		Status:         StatusPending,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      expiresAt,
	}
	r.bookings[b.ID] = b

	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, expectedVersion int64) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Version != expectedVersion {
		return nil, fmt.Errorf("booking %s: expected version %d, current %d: %w",
			id, expectedVersion, b.Version, ErrVersionMismatch)
	}

	b.Status = to
	b.Version++
	b.UpdatedAt = time.Now()
	if to != StatusPending {
		b.ExpiresAt = nil
	}

	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, newDurationMins int, expectedVersion int64, holdFor time.Duration) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if old.Version != expectedVersion {
		return nil, fmt.Errorf("booking %s: expected version %d, current %d: %w",
			id, expectedVersion, old.Version, ErrVersionMismatch)
	}
	if old.Status.Terminal() {
		return nil, fmt.Errorf("booking %s is %s: %w", id, old.Status, ErrInvalidTransition)
	}

	// All checks before any mutation, so a conflict leaves the old booking
	// untouched, mirroring the transactional rollback in PgRepository.
	newEnd := newStart.Add(time.Duration(newDurationMins) * time.Minute)
	if r.hasActiveOverlapLocked(old.PractitionerID, newStart, newEnd, old.ID) {
		return nil, ErrSlotTaken
	}

	now := time.Now()
	old.Status = StatusCancelled
	old.Version++
	old.UpdatedAt = now
	old.ExpiresAt = nil

	expiresAt := now.Add(holdFor)
	fresh := &Booking{
		ID:             uuid.New(),
		PractitionerID: old.PractitionerID,
		PatientID:      old.PatientID,
		StartTime:      newStart,
		DurationMins:   newDurationMins,
		Status:         StatusPending,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      &expiresAt,
	}
	r.bookings[fresh.ID] = fresh

	cp := *fresh
	return &cp, nil
}

func (r *MemoryRepository) hasActiveOverlapLocked(practitionerID uuid.UUID, start, end time.Time, exclude uuid.UUID) bool {
	for _, b := range r.bookings {
		if b.ID == exclude || b.PractitionerID != practitionerID {
			continue
		}
		if b.Status != StatusPending && b.Status != StatusConfirmed {
			continue
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Booking
	for _, b := range r.bookings {
		if b.Status == StatusPending && b.ExpiresAt != nil && b.ExpiresAt.Before(now) {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
