package pickup

import (
	"time"
)

// DefaultSlotStep is the granularity of the pickup time picker.
const DefaultSlotStep = 15 * time.Minute

// TimeSlots lists the picker options for a range: the exact start, every
// step-aligned time after it, and the exact end. Boundaries are never dropped
// even when they are not aligned to step.
func TimeSlots(r *TimeRange, step time.Duration) []string {
	if r == nil {
		return nil
	}
	start, err := ParseClock(r.Start)
	if err != nil {
		return nil
	}
	end, err := ParseClock(r.End)
	if err != nil || end < start {
		return nil
	}

	stepMin := int(step / time.Minute)
	if stepMin <= 0 {
		stepMin = int(DefaultSlotStep / time.Minute)
	}

	slots := []string{FormatClock(start)}
	cursor := (start/stepMin + 1) * stepMin
	for ; cursor < end; cursor += stepMin {
		slots = append(slots, FormatClock(cursor))
	}
	if end != start {
		slots = append(slots, FormatClock(end))
	}
	return slots
}

// ParseStep parses a slot step in minutes, falling back to DefaultSlotStep.
func ParseStep(minutes int) time.Duration {
	if minutes <= 0 {
		return DefaultSlotStep
	}
	return time.Duration(minutes) * time.Minute
}
