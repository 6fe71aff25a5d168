// Package pickup resolves when an order can be collected from a store.
//
// Everything here is a pure function of its inputs and an injected clock:
// store opening hours with date exceptions, the daily order cutoff and the
// weekday restrictions carried by product categories in the cart.
package pickup

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the ISO calendar date used for exception keys and the API.
	DateLayout = "2006-01-02"
	// ClockLayout is the time-of-day format used for opening hours and pickup times.
	ClockLayout = "15:04"
)

// DaySchedule is the opening window of a store for one calendar day.
// The zero value is closed.
type DaySchedule struct {
	Closed bool   `json:"closed,omitempty" yaml:"closed,omitempty"`
	Start  string `json:"start,omitempty" yaml:"start,omitempty"`
	End    string `json:"end,omitempty" yaml:"end,omitempty"`
}

// Closed is the explicit closed marker.
var Closed = DaySchedule{Closed: true}

// Hours returns the opening window in minutes since midnight.
// ok is false for closed, incomplete or inverted schedules.
func (d DaySchedule) Hours() (start, end int, ok bool) {
	if d.Closed || d.Start == "" || d.End == "" {
		return 0, 0, false
	}
	start, err := ParseClock(d.Start)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseClock(d.End)
	if err != nil {
		return 0, 0, false
	}
	if end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// IsOpen reports whether the day has a usable opening window.
func (d DaySchedule) IsOpen() bool {
	_, _, ok := d.Hours()
	return ok
}

// Schedule is a store's weekly opening hours plus date-specific exceptions.
type Schedule struct {
	Regular    map[time.Weekday]DaySchedule `json:"regular"`
	Exceptions map[string]DaySchedule       `json:"exceptions"`
}

// Lookup returns the effective schedule for the calendar date of date.
// An exception for the date always wins over the weekday default; a day with
// neither is closed.
func (s Schedule) Lookup(date time.Time) DaySchedule {
	if ex, ok := s.Exceptions[DateKey(date)]; ok {
		return ex
	}
	if d, ok := s.Regular[date.Weekday()]; ok {
		return d
	}
	return Closed
}

// DateKey formats the calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(v string) (int, error) {
	t, err := time.Parse(ClockLayout, v)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock formats minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// startOfDay returns local midnight of t's calendar date.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
