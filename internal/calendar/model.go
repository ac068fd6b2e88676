package calendar

import (
	"time"

	"github.com/google/uuid"
)

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Timezone  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyRule is one recurring open interval in the practitioner's working-hours
// template. Times are local to the practitioner's time zone, "HH:MM".
type WeeklyRule struct {
	ID             int64
	PractitionerID uuid.UUID
	Weekday        time.Weekday
	StartTime      string
	EndTime        string
}

// DateException overrides the weekly template for a single date. Any exception
// rows for a date fully replace the template for that date: a row with nil
// times marks the day closed, rows with times define the day's open intervals.
type DateException struct {
	ID             int64
	PractitionerID uuid.UUID
	Date           time.Time
	StartTime      *string
	EndTime        *string
	Reason         string
}

// Interval is a concrete open [Start, End) window, in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a candidate bookable interval. Slots are ephemeral: recomputed for
// every availability query, never persisted.
type Slot struct {
	PractitionerID uuid.UUID
	Start          time.Time
	End            time.Time
}
