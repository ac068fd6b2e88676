package calendar

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func utc(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func TestGenerateSlots(t *testing.T) {
	pid := uuid.New()

	t.Run("one hour at thirty minutes yields exactly two slots", func(t *testing.T) {
		intervals := []Interval{{Start: utc(9, 0), End: utc(10, 0)}}

		slots := GenerateSlots(pid, intervals, 30*time.Minute)

		assert.Len(t, slots, 2)
		assert.Equal(t, utc(9, 0), slots[0].Start)
		assert.Equal(t, utc(9, 30), slots[0].End)
		assert.Equal(t, utc(9, 30), slots[1].Start)
		assert.Equal(t, utc(10, 0), slots[1].End)
	})

	t.Run("remainder shorter than the duration is dropped", func(t *testing.T) {
		intervals := []Interval{{Start: utc(9, 0), End: utc(10, 10)}}

		slots := GenerateSlots(pid, intervals, 30*time.Minute)

		assert.Len(t, slots, 2)
		assert.Equal(t, utc(10, 0), slots[len(slots)-1].End)
	})

	t.Run("slots never cross interval boundaries", func(t *testing.T) {
		intervals := []Interval{
			{Start: utc(9, 0), End: utc(9, 45)},
			{Start: utc(10, 0), End: utc(10, 45)},
		}

		slots := GenerateSlots(pid, intervals, 30*time.Minute)

		assert.Len(t, slots, 2)
		for _, s := range slots {
			inside := (!s.Start.Before(intervals[0].Start) && !s.End.After(intervals[0].End)) ||
				(!s.Start.Before(intervals[1].Start) && !s.End.After(intervals[1].End))
			assert.True(t, inside, "slot %v-%v leaks across an interval boundary", s.Start, s.End)
		}
	})

	t.Run("interval shorter than the duration yields nothing", func(t *testing.T) {
		intervals := []Interval{{Start: utc(9, 0), End: utc(9, 20)}}

		assert.Empty(t, GenerateSlots(pid, intervals, 30*time.Minute))
	})

	t.Run("slots are back to back and chronological", func(t *testing.T) {
		intervals := []Interval{{Start: utc(9, 0), End: utc(12, 0)}}

		slots := GenerateSlots(pid, intervals, 45*time.Minute)

		assert.Len(t, slots, 4)
		for i := 1; i < len(slots); i++ {
			assert.Equal(t, slots[i-1].End, slots[i].Start)
		}
	})

	t.Run("non-positive duration yields nothing", func(t *testing.T) {
		intervals := []Interval{{Start: utc(9, 0), End: utc(10, 0)}}

		assert.Empty(t, GenerateSlots(pid, intervals, 0))
	})

	t.Run("empty intervals yield nothing", func(t *testing.T) {
		assert.Empty(t, GenerateSlots(pid, nil, 30*time.Minute))
	})

	t.Run("carries the practitioner id", func(t *testing.T) {
		intervals := []Interval{{Start: utc(9, 0), End: utc(9, 30)}}

		slots := GenerateSlots(pid, intervals, 30*time.Minute)

		assert.Len(t, slots, 1)
		assert.Equal(t, pid, slots[0].PractitionerID)
	})
}
