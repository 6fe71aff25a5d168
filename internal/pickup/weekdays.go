package pickup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a set of weekdays stored as a bitmask (bit n = time.Weekday(n)).
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// mondayFirst is the display order used by calendars and JSON output.
var mondayFirst = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// AllWeekdays returns the universal set.
func AllWeekdays() WeekdaySet { return allWeekdays }

// Has reports whether d is in the set.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

// Intersect returns the days present in both sets.
func (s WeekdaySet) Intersect(o WeekdaySet) WeekdaySet { return s & o }

// Empty reports whether no day is allowed.
func (s WeekdaySet) Empty() bool { return s&allWeekdays == 0 }

// Days lists the members Monday first.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, d := range mondayFirst {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToLower(d.String())
	}
	return "[" + strings.Join(names, ",") + "]"
}

// MarshalJSON encodes the set as a list of lowercase weekday names.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	days := s.Days()
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = strings.ToLower(d.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts a list of weekday names ("monday", "mon") or ISO numbers (1=Mon..7=Sun).
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("weekday set: %w", err)
	}
	var out WeekdaySet
	for _, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			name = string(item)
		}
		d, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		out |= NewWeekdaySet(d)
	}
	*s = out
	return nil
}

// ParseWeekday parses an English weekday name, its three-letter abbreviation,
// or an ISO day number (1=Mon..7=Sun).
func ParseWeekday(v string) (time.Weekday, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if d, ok := weekdayNames[v]; ok {
		return d, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return WeekdayFromNumber(n)
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", v)
}

// WeekdayNumber converts Go's weekday (0=Sun) to the ISO numbering (1=Mon, 7=Sun) used in storage.
func WeekdayNumber(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// WeekdayFromNumber is the inverse of WeekdayNumber.
func WeekdayFromNumber(n int) (time.Weekday, error) {
	if n < 1 || n > 7 {
		return time.Sunday, fmt.Errorf("invalid day %d, must be 1-7 (1=Mon, 7=Sun)", n)
	}
	if n == 7 {
		return time.Sunday, nil
	}
	return time.Weekday(n), nil
}
