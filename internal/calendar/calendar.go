package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// Calendar derives concrete open intervals from stored weekly templates and
// date exceptions. It is read-only: availability is recomputed on every call,
// never cached or persisted.
type Calendar struct {
	repo Repository
}

func NewCalendar(repo Repository) *Calendar {
	return &Calendar{repo: repo}
}

// Practitioner resolves a practitioner record, ErrPractitionerNotFound on
// unknown ids.
func (c *Calendar) Practitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	return c.repo.GetPractitionerByID(ctx, id)
}

// OpenIntervals returns the ordered, non-overlapping open windows for one
// practitioner on one calendar date, in UTC. Exception rows for the date fully
// replace the weekly template: a closure yields no intervals, an extension
// yields exactly the intervals the exception spells out.
func (c *Calendar) OpenIntervals(ctx context.Context, practitionerID uuid.UUID, date string) ([]Interval, error) {
	p, err := c.repo.GetPractitionerByID(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("practitioner %s has invalid timezone %q: %w", p.ID, p.Timezone, err)
	}

	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	exceptions, err := c.repo.ListExceptionsForDate(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("load exceptions: %w", err)
	}

	var intervals []Interval

	if len(exceptions) > 0 {
		for _, ex := range exceptions {
			if ex.StartTime == nil || ex.EndTime == nil {
				// closure marker
				continue
			}
			iv, err := intervalOn(day, *ex.StartTime, *ex.EndTime, loc)
			if err != nil {
				return nil, fmt.Errorf("exception %d: %w", ex.ID, err)
			}
			intervals = append(intervals, iv)
		}
		return mergeIntervals(intervals), nil
	}

	rules, err := c.repo.ListWeeklyRules(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("load weekly rules: %w", err)
	}

	for _, r := range rules {
		if r.Weekday != day.Weekday() {
			continue
		}
		iv, err := intervalOn(day, r.StartTime, r.EndTime, loc)
		if err != nil {
			return nil, fmt.Errorf("weekly rule %d: %w", r.ID, err)
		}
		intervals = append(intervals, iv)
	}

	return mergeIntervals(intervals), nil
}

// intervalOn anchors a local HH:MM pair on the given day and converts to UTC.
func intervalOn(day time.Time, startHHMM, endHHMM string, loc *time.Location) (Interval, error) {
	sh, sm, err := parseHHMM(startHHMM)
	if err != nil {
		return Interval{}, err
	}
	eh, em, err := parseHHMM(endHHMM)
	if err != nil {
		return Interval{}, err
	}

	year, month, dayNum := day.Date()
	start := time.Date(year, month, dayNum, sh, sm, 0, 0, loc)
	end := time.Date(year, month, dayNum, eh, em, 0, 0, loc)

	if !end.After(start) {
		return Interval{}, fmt.Errorf("end %q must be after start %q", endHHMM, startHHMM)
	}

	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

func parseHHMM(s string) (hour, minute int, err error) {
	if len(s) < 5 {
		return 0, 0, fmt.Errorf("invalid time string: %q", s)
	}
	// tolerate "09:00:00" from a time column
	t, err := time.Parse("15:04", s[:5])
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// mergeIntervals sorts intervals and coalesces any that touch or overlap.
func mergeIntervals(intervals []Interval) []Interval {
	if len(intervals) <= 1 {
		return intervals
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].Start.Before(intervals[j].Start)
	})

	merged := []Interval{intervals[0]}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}

	return merged
}
