package calendar

import (
	"time"

	"github.com/google/uuid"
)

// GenerateSlots chops open intervals into back-to-back slots of the requested
// duration. Slots start at the interval start, never cross an interval
// boundary, and a trailing remainder shorter than the duration is dropped.
// Deterministic: same inputs, same slots.
func GenerateSlots(practitionerID uuid.UUID, intervals []Interval, duration time.Duration) []Slot {
	if duration <= 0 {
		return nil
	}

	var slots []Slot
	for _, iv := range intervals {
		for s := iv.Start; !s.Add(duration).After(iv.End); s = s.Add(duration) {
			slots = append(slots, Slot{
				PractitionerID: practitionerID,
				Start:          s,
				End:            s.Add(duration),
			})
		}
	}

	return slots
}
