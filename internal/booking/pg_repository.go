package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingCols = `id, practitioner_id, patient_id, start_time, duration_mins, status, version, created_at, updated_at, expires_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var expiresAt *time.Time

	err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&b.PatientID,
		&b.StartTime,
		&b.DurationMins,
		&b.Status,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.ExpiresAt = expiresAt
	return &b, nil
}

// lockPractitioner takes a transaction-scoped advisory lock so that interval
// checks and inserts for one practitioner serialize inside the database,
// independent of any out-of-band locking.
func lockPractitioner(ctx context.Context, tx pgx.Tx, practitionerID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))
	`, practitionerID); err != nil {
		return fmt.Errorf("practitioner advisory lock: %w", err)
	}
	return nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListActiveInRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE practitioner_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND start_time + make_interval(mins => duration_mins) > $2
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE patient_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE practitioner_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`, practitionerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Reserve(ctx context.Context, practitionerID, patientID uuid.UUID, start time.Time, durationMins int, expiresAt *time.Time) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockPractitioner(ctx, tx, practitionerID); err != nil {
		return nil, err
	}

	id := uuid.New()
	end := start.Add(time.Duration(durationMins) * time.Minute)

	// Only pending and confirmed bookings block an interval. Completed is
	// terminal like cancelled: a visit already happened there, and the slot
	// lies in the past anyway.
	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (`+bookingCols+`)
		SELECT $1, $2, $3, $4, $5, 'pending', 1, now(), now(), $6
		WHERE NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE practitioner_id = $2
			  AND status IN ('pending', 'confirmed')
			  AND start_time < $7
			  AND start_time + make_interval(mins => duration_mins) > $4
		)
		RETURNING `+bookingCols+`
	`, id, practitionerID, patientID, start, durationMins, expiresAt, end)

	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// the conditional insert matched an overlap, nothing was written
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}

	return b, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, expectedVersion int64) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    version = version + 1,
		    updated_at = now(),
		    expires_at = CASE WHEN $2 = 'pending' THEN expires_at ELSE NULL END
		WHERE id = $1
		  AND version = $3
		RETURNING `+bookingCols+`
	`, id, to, expectedVersion)

	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrBookingNotFound) {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	// No row matched: tell the caller whether the booking is gone or stale.
	current, getErr := r.GetBookingByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("booking %s: expected version %d, current %d: %w",
		id, expectedVersion, current.Version, ErrVersionMismatch)
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, newStart time.Time, newDurationMins int, expectedVersion int64, holdFor time.Duration) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	if err := lockPractitioner(ctx, tx, old.PractitionerID); err != nil {
		return nil, err
	}

	// Re-read under the lock; the row may have moved since the first look.
	old, err = scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return nil, err
	}

	if old.Version != expectedVersion {
		return nil, fmt.Errorf("booking %s: expected version %d, current %d: %w",
			id, expectedVersion, old.Version, ErrVersionMismatch)
	}
	if old.Status.Terminal() {
		return nil, fmt.Errorf("booking %s is %s: %w", id, old.Status, ErrInvalidTransition)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled',
		    version = version + 1,
		    updated_at = now(),
		    expires_at = NULL
		WHERE id = $1
	`, id); err != nil {
		return nil, fmt.Errorf("cancel old booking: %w", err)
	}

	newID := uuid.New()
	newEnd := newStart.Add(time.Duration(newDurationMins) * time.Minute)
	expiresAt := time.Now().Add(holdFor)

	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (`+bookingCols+`)
		SELECT $1, $2, $3, $4, $5, 'pending', 1, now(), now(), $6
		WHERE NOT EXISTS (
			SELECT 1 FROM bookings
			WHERE practitioner_id = $2
			  AND status IN ('pending', 'confirmed')
			  AND start_time < $7
			  AND start_time + make_interval(mins => duration_mins) > $4
		)
		RETURNING `+bookingCols+`
	`, newID, old.PractitionerID, old.PatientID, newStart, newDurationMins, expiresAt, newEnd)

	fresh, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// conflict on the new interval: the rollback leaves the old
			// booking exactly as it was
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert rescheduled booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reschedule: %w", err)
	}

	return fresh, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_events (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
