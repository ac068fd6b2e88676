package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.Timezone,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

// Interface methods

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, timezone, active, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) ListPractitioners(ctx context.Context, specialty string, limit, offset int) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, timezone, active, created_at, updated_at
		FROM practitioners
		WHERE active
		  AND ($1 = '' OR specialty = $1)
		ORDER BY name
		LIMIT $2 OFFSET $3
	`, specialty, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListWeeklyRules(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, weekday, start_time, end_time
		FROM weekly_rules
		WHERE practitioner_id = $1
		ORDER BY weekday, start_time
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyRule
	for rows.Next() {
		var wr WeeklyRule
		var weekday int
		if err := rows.Scan(&wr.ID, &wr.PractitionerID, &weekday, &wr.StartTime, &wr.EndTime); err != nil {
			return nil, err
		}
		wr.Weekday = time.Weekday(weekday)
		result = append(result, wr)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListExceptionsForDate(ctx context.Context, practitionerID uuid.UUID, date string) ([]DateException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, date, start_time, end_time, reason
		FROM schedule_exceptions
		WHERE practitioner_id = $1
		  AND date = $2::date
		ORDER BY start_time NULLS FIRST
	`, practitionerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DateException
	for rows.Next() {
		var ex DateException
		if err := rows.Scan(&ex.ID, &ex.PractitionerID, &ex.Date, &ex.StartTime, &ex.EndTime, &ex.Reason); err != nil {
			return nil, err
		}
		result = append(result, ex)
	}

	return result, rows.Err()
}

func (r *PgRepository) ReplaceWeeklyRules(ctx context.Context, practitionerID uuid.UUID, rules []WeeklyRule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace weekly rules: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM weekly_rules WHERE practitioner_id = $1
	`, practitionerID); err != nil {
		return fmt.Errorf("clear weekly rules: %w", err)
	}

	for _, wr := range rules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_rules (practitioner_id, weekday, start_time, end_time)
			VALUES ($1, $2, $3, $4)
		`, practitionerID, int(wr.Weekday), wr.StartTime, wr.EndTime); err != nil {
			return fmt.Errorf("insert weekly rule: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) CreateException(ctx context.Context, ex DateException) (*DateException, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_exceptions (practitioner_id, date, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, practitioner_id, date, start_time, end_time, reason
	`, ex.PractitionerID, ex.Date, ex.StartTime, ex.EndTime, ex.Reason)

	var out DateException
	if err := row.Scan(&out.ID, &out.PractitionerID, &out.Date, &out.StartTime, &out.EndTime, &out.Reason); err != nil {
		return nil, err
	}
	return &out, nil
}
