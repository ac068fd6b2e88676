package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
	"github.com/Sudhaanshuu/Arogyam/internal/config"
	"github.com/Sudhaanshuu/Arogyam/internal/metrics"
	"github.com/Sudhaanshuu/Arogyam/internal/notify"
	"github.com/Sudhaanshuu/Arogyam/internal/redisclient"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingConfirmed   = "BOOKING_CONFIRMED"
	EventBookingCancelled   = "BOOKING_CANCELLED"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"
	EventBookingExpired     = "BOOKING_EXPIRED"
)

var (
	ErrForbidden         = errors.New("caller may not act on this booking")
	ErrInvalidDuration   = errors.New("duration out of bounds")
	ErrOffGrid           = errors.New("start time does not fall on an offered slot")
	ErrHoldExpired       = errors.New("pending booking hold has expired")
	ErrScheduleContended = errors.New("practitioner schedule is being modified, please retry")
)

// Service is the scheduler's public surface: availability queries plus the
// booking lifecycle. The ledger (Repository) is the only mutable shared
// state; everything else here is pure computation over immutable data.
type Service struct {
	repo     Repository
	cal      *calendar.Calendar
	locker   redisclient.Locker
	notifier notify.Notifier
	metrics  *metrics.Collector
	log      *zap.Logger
	cfg      config.Config
}

func NewService(
	repo Repository,
	cal *calendar.Calendar,
	locker redisclient.Locker,
	notifier notify.Notifier,
	collector *metrics.Collector,
	log *zap.Logger,
	cfg config.Config,
) *Service {
	return &Service{
		repo:     repo,
		cal:      cal,
		locker:   locker,
		notifier: notifier,
		metrics:  collector,
		log:      log,
		cfg:      cfg,
	}
}

// QueryAvailability returns the practitioner's still-free slots of the given
// duration on the given date, chronologically ordered. Read-only: abandoning
// the call has no side effects.
func (s *Service) QueryAvailability(ctx context.Context, practitionerID uuid.UUID, date string, durationMins int) ([]calendar.Slot, error) {
	if err := s.validateDuration(durationMins); err != nil {
		return nil, err
	}

	intervals, err := s.cal.OpenIntervals(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(durationMins) * time.Minute
	slots := calendar.GenerateSlots(practitionerID, intervals, duration)
	if len(slots) == 0 {
		return nil, nil
	}

	from := intervals[0].Start
	to := intervals[len(intervals)-1].End
	active, err := s.repo.ListActiveInRange(ctx, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}

	var free []calendar.Slot
	for _, slot := range slots {
		if !overlapsAny(active, slot.Start, slot.End) {
			free = append(free, slot)
		}
	}

	return free, nil
}

// BookSlot reserves a slot for a patient. The start must lie on the slot grid
// the practitioner currently offers; the reserve itself is a conditional
// write, so a slot that was free at query time but got taken in between comes
// back as ErrSlotTaken rather than a double booking.
func (s *Service) BookSlot(ctx context.Context, actor Actor, practitionerID, patientID uuid.UUID, start time.Time, durationMins int) (*Booking, error) {
	if actor.Role == RolePatient && actor.ID != patientID {
		return nil, ErrForbidden
	}
	if err := s.validateDuration(durationMins); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	p, err := s.cal.Practitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	if err := s.ensureOnGrid(ctx, p, start, durationMins); err != nil {
		return nil, err
	}

	var created *Booking

	err = s.locker.WithPractitionerLock(ctx, practitionerID, func(lockCtx context.Context) error {
		end := start.Add(time.Duration(durationMins) * time.Minute)
		active, err := s.repo.ListActiveInRange(lockCtx, practitionerID, start, end)
		if err != nil {
			return fmt.Errorf("conflict pre-check: %w", err)
		}
		if overlapsAny(active, start, end) {
			return ErrSlotTaken
		}

		expiresAt := time.Now().Add(s.cfg.BookingHoldTTL)
		b, err := s.repo.Reserve(lockCtx, practitionerID, patientID, start, durationMins, &expiresAt)
		if err != nil {
			return err
		}

		created = b

		s.logEvent(lockCtx, b.ID, EventBookingCreated, map[string]any{
			"practitioner_id": practitionerID.String(),
			"patient_id":      patientID.String(),
			"start_time":      start,
			"duration_mins":   durationMins,
			"expires_at":      expiresAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countOutcome("reserve", "contention")
			return nil, ErrScheduleContended
		}
		if errors.Is(err, ErrSlotTaken) {
			s.countOutcome("reserve", "conflict")
		} else {
			s.countOutcome("reserve", "error")
		}
		return nil, err
	}

	s.countOutcome("reserve", "success")
	s.dispatch(ctx, created.ID, notify.TypeCreated)

	return created, nil
}

// ConfirmBooking moves a pending booking to confirmed. The expectedVersion
// must match the version the caller last read; a mismatch means someone else
// mutated the booking and the caller should re-fetch and retry.
func (s *Service) ConfirmBooking(ctx context.Context, actor Actor, id uuid.UUID, expectedVersion int64) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanMutate(b) {
		return nil, ErrForbidden
	}

	if b.Status == StatusPending && b.ExpiresAt != nil && b.ExpiresAt.Before(time.Now()) {
		// Hold lapsed before the worker swept it. Release the interval now.
		if _, updErr := s.repo.UpdateStatus(ctx, b.ID, StatusCancelled, b.Version); updErr != nil &&
			!errors.Is(updErr, ErrVersionMismatch) && !errors.Is(updErr, ErrBookingNotFound) {
			s.log.Warn("failed to release expired hold during confirm",
				zap.String("booking_id", b.ID.String()), zap.Error(updErr))
		}
		s.logEvent(ctx, b.ID, EventBookingExpired, map[string]any{"reason": "confirm_after_expiry"})
		s.dispatch(ctx, b.ID, notify.TypeExpired)
		return nil, ErrHoldExpired
	}

	if !b.Status.CanTransitionTo(StatusConfirmed) {
		return nil, fmt.Errorf("booking %s is %s: %w", id, b.Status, ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, expectedVersion)
	if err != nil {
		s.countOutcome("confirm", outcomeFor(err))
		return nil, err
	}

	s.countOutcome("confirm", "success")
	s.logEvent(ctx, updated.ID, EventBookingConfirmed, map[string]any{})
	s.dispatch(ctx, updated.ID, notify.TypeConfirmed)

	return updated, nil
}

// CancelBooking transitions any non-terminal booking to cancelled, freeing
// its interval immediately. Cancelling an already-cancelled booking with the
// current version is a no-op success, not an error.
func (s *Service) CancelBooking(ctx context.Context, actor Actor, id uuid.UUID, expectedVersion int64) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanMutate(b) {
		return nil, ErrForbidden
	}

	if b.Status == StatusCancelled {
		if b.Version == expectedVersion {
			return b, nil
		}
		return nil, fmt.Errorf("booking %s: expected version %d, current %d: %w",
			id, expectedVersion, b.Version, ErrVersionMismatch)
	}
	if b.Status == StatusCompleted {
		return nil, fmt.Errorf("booking %s is completed: %w", id, ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusCancelled, expectedVersion)
	if err != nil {
		s.countOutcome("cancel", outcomeFor(err))
		return nil, err
	}

	s.countOutcome("cancel", "success")
	s.logEvent(ctx, updated.ID, EventBookingCancelled, map[string]any{})
	s.dispatch(ctx, updated.ID, notify.TypeCancelled)

	return updated, nil
}

// RescheduleBooking cancels the old interval and reserves the new one in a
// single atomic unit. On conflict the original booking is untouched; the
// patient is never left without a booking. The replacement starts a fresh
// pending hold and must be confirmed again.
func (s *Service) RescheduleBooking(ctx context.Context, actor Actor, id uuid.UUID, newStart time.Time, newDurationMins int, expectedVersion int64) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanMutate(b) {
		return nil, ErrForbidden
	}
	if err := s.validateDuration(newDurationMins); err != nil {
		return nil, err
	}

	p, err := s.cal.Practitioner(ctx, b.PractitionerID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureOnGrid(ctx, p, newStart, newDurationMins); err != nil {
		return nil, err
	}

	var fresh *Booking

	err = s.locker.WithPractitionerLock(ctx, b.PractitionerID, func(lockCtx context.Context) error {
		moved, err := s.repo.Reschedule(lockCtx, id, newStart, newDurationMins, expectedVersion, s.cfg.BookingHoldTTL)
		if err != nil {
			return err
		}
		fresh = moved

		s.logEvent(lockCtx, moved.ID, EventBookingRescheduled, map[string]any{
			"previous_booking_id": id.String(),
			"start_time":          newStart,
			"duration_mins":       newDurationMins,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.countOutcome("reschedule", "contention")
			return nil, ErrScheduleContended
		}
		s.countOutcome("reschedule", outcomeFor(err))
		return nil, err
	}

	s.countOutcome("reschedule", "success")
	s.dispatch(ctx, fresh.ID, notify.TypeRescheduled)

	return fresh, nil
}

// GetBooking retrieves one booking, visible only to its patient, its
// practitioner, or an admin.
func (s *Service) GetBooking(ctx context.Context, actor Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanRead(b) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) ListBookingsByPatient(ctx context.Context, actor Actor, patientID uuid.UUID, limit, offset int) ([]Booking, error) {
	if actor.Role == RolePatient && actor.ID != patientID {
		return nil, ErrForbidden
	}

	limit, offset = clampPage(limit, offset)
	result, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings by patient: %w", err)
	}
	return result, nil
}

func (s *Service) ListBookingsByPractitioner(ctx context.Context, actor Actor, practitionerID uuid.UUID, limit, offset int) ([]Booking, error) {
	if actor.Role == RolePatient {
		return nil, ErrForbidden
	}
	if actor.Role == RolePractitioner && actor.ID != practitionerID {
		return nil, ErrForbidden
	}

	limit, offset = clampPage(limit, offset)
	result, err := s.repo.ListByPractitioner(ctx, practitionerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list bookings by practitioner: %w", err)
	}
	return result, nil
}

// ExpirePendingHolds releases pending bookings whose hold TTL elapsed. Called
// periodically by the expiry worker.
func (s *Service) ExpirePendingHolds(ctx context.Context) error {
	now := time.Now()
	stale, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired pending bookings: %w", err)
	}

	for _, b := range stale {
		_, err := s.repo.UpdateStatus(ctx, b.ID, StatusCancelled, b.Version)
		if err != nil {
			// someone confirmed or cancelled it between the sweep and now
			if !errors.Is(err, ErrVersionMismatch) && !errors.Is(err, ErrBookingNotFound) {
				s.log.Warn("failed to expire booking",
					zap.String("booking_id", b.ID.String()), zap.Error(err))
			}
			continue
		}

		s.metrics.ExpiredHoldsTotal.Inc()
		s.logEvent(ctx, b.ID, EventBookingExpired, map[string]any{"reason": "worker"})
		s.dispatch(ctx, b.ID, notify.TypeExpired)
	}

	return nil
}

// internals

func (s *Service) validateDuration(mins int) error {
	if mins < s.cfg.MinDurationMins || mins > s.cfg.MaxDurationMins || mins%5 != 0 {
		return fmt.Errorf("duration %d minutes (allowed %d-%d in steps of 5): %w",
			mins, s.cfg.MinDurationMins, s.cfg.MaxDurationMins, ErrInvalidDuration)
	}
	return nil
}

// ensureOnGrid rejects start times the slot generator would never offer for
// that practitioner on that date, before any ledger write happens.
func (s *Service) ensureOnGrid(ctx context.Context, p *calendar.Practitioner, start time.Time, durationMins int) error {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fmt.Errorf("practitioner %s has invalid timezone %q: %w", p.ID, p.Timezone, err)
	}

	date := start.In(loc).Format(calendar.DateLayout)
	intervals, err := s.cal.OpenIntervals(ctx, p.ID, date)
	if err != nil {
		return err
	}

	duration := time.Duration(durationMins) * time.Minute
	for _, slot := range calendar.GenerateSlots(p.ID, intervals, duration) {
		if slot.Start.Equal(start) {
			return nil
		}
	}

	return ErrOffGrid
}

func overlapsAny(bookings []Booking, start, end time.Time) bool {
	for i := range bookings {
		if bookings[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrSlotTaken):
		return "conflict"
	case errors.Is(err, ErrVersionMismatch):
		return "version_mismatch"
	default:
		return "error"
	}
}

func (s *Service) countOutcome(operation, outcome string) {
	s.metrics.BookingsTotal.WithLabelValues(operation, outcome).Inc()
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload",
			zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	bID := bookingID
	ev := EventLog{
		EventType: eventType,
		BookingID: &bID,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert booking event",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID.String()),
			zap.Error(err))
	}
}

// dispatch hands the event to the notification dispatcher. Fire-and-forget:
// a failed publish is logged and counted, never propagated.
func (s *Service) dispatch(ctx context.Context, bookingID uuid.UUID, eventType string) {
	ev := notify.Event{
		BookingID:  bookingID,
		Type:       eventType,
		OccurredAt: time.Now(),
	}

	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.metrics.NotifyFailuresTotal.Inc()
		s.log.Warn("notification publish failed",
			zap.String("booking_id", bookingID.String()),
			zap.String("type", eventType),
			zap.Error(err))
	}
}
