package calendar

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPractitionerNotFound = errors.New("practitioner not found")
)

// Repository contains the schedule-template DB interactions needed by the calendar.
type Repository interface {
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	ListPractitioners(ctx context.Context, specialty string, limit, offset int) ([]Practitioner, error)

	ListWeeklyRules(ctx context.Context, practitionerID uuid.UUID) ([]WeeklyRule, error)
	ListExceptionsForDate(ctx context.Context, practitionerID uuid.UUID, date string) ([]DateException, error)

	// Template updates
	ReplaceWeeklyRules(ctx context.Context, practitionerID uuid.UUID, rules []WeeklyRule) error
	CreateException(ctx context.Context, ex DateException) (*DateException, error)
}
