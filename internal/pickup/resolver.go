package pickup

import (
	"time"
)

// DefaultHorizon bounds the forward search for a pickup date.
const DefaultHorizon = 60

// TimeRange is the pickup window of one day, both ends inclusive.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether the "HH:MM" value lies within the range.
func (r TimeRange) Contains(v string) bool {
	m, err := ParseClock(v)
	if err != nil {
		return false
	}
	start, err := ParseClock(r.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return false
	}
	return m >= start && m <= end
}

// Resolver derives pickup dates and times from a store schedule and a cart restriction.
type Resolver struct {
	Cutoff  Cutoff
	Horizon int
	Now     func() time.Time
}

// NewResolver returns a resolver reading the wall clock in loc.
func NewResolver(cutoff Cutoff, horizon int, loc *time.Location) *Resolver {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		Cutoff:  cutoff,
		Horizon: horizon,
		Now:     func() time.Time { return time.Now().In(loc) },
	}
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Resolver) horizon() int {
	if r.Horizon <= 0 {
		return DefaultHorizon
	}
	return r.Horizon
}

// Location is the time zone pickup dates are interpreted in.
func (r *Resolver) Location() *time.Location {
	return r.now().Location()
}

// ParseDate parses a YYYY-MM-DD pickup date in the resolver's time zone.
func (r *Resolver) ParseDate(v string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, v, r.Location())
}

// EarliestDate applies the cutoff rule to the current time.
func (r *Resolver) EarliestDate() time.Time {
	return r.Cutoff.EarliestDate(r.now())
}

// window returns the searchable dates [first, last).
func (r *Resolver) window() (first, last time.Time) {
	first = r.EarliestDate()
	return first, first.AddDate(0, 0, r.horizon())
}

// IsSelectable reports whether date can be chosen as a pickup date: inside the
// search window, open per the schedule and allowed by the cart restriction.
func (r *Resolver) IsSelectable(s Schedule, restriction *WeekdaySet, date time.Time) bool {
	day := startOfDay(date.In(r.Location()))
	first, last := r.window()
	if day.Before(first) || !day.Before(last) {
		return false
	}
	return dateAllowed(s, restriction, day)
}

func dateAllowed(s Schedule, restriction *WeekdaySet, day time.Time) bool {
	if restriction != nil && !restriction.Has(day.Weekday()) {
		return false
	}
	return s.Lookup(day).IsOpen()
}

// FirstAvailableDate scans forward from the cutoff-adjusted earliest date and
// returns the first selectable date. ok is false when the horizon is exhausted
// or the restriction is empty.
func (r *Resolver) FirstAvailableDate(s Schedule, restriction *WeekdaySet) (time.Time, bool) {
	if restriction != nil && restriction.Empty() {
		return time.Time{}, false
	}
	first, last := r.window()
	for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
		if dateAllowed(s, restriction, d) {
			return d, true
		}
	}
	return time.Time{}, false
}

// AvailableDates lists every selectable date in the search window.
func (r *Resolver) AvailableDates(s Schedule, restriction *WeekdaySet) []time.Time {
	var out []time.Time
	first, last := r.window()
	for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
		if dateAllowed(s, restriction, d) {
			out = append(out, d)
		}
	}
	return out
}

// DisabledDates lists, as YYYY-MM-DD, every date in the search window that
// cannot be chosen. It is the complement of AvailableDates for calendar widgets.
func (r *Resolver) DisabledDates(s Schedule, restriction *WeekdaySet) []string {
	out := make([]string, 0)
	first, last := r.window()
	for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
		if !dateAllowed(s, restriction, d) {
			out = append(out, DateKey(d))
		}
	}
	return out
}

// TimeRangeForDate returns the opening window of date, or nil when the store is closed.
func TimeRangeForDate(s Schedule, date time.Time) *TimeRange {
	day := s.Lookup(date)
	start, end, ok := day.Hours()
	if !ok {
		return nil
	}
	return &TimeRange{Start: FormatClock(start), End: FormatClock(end)}
}

// FirstAvailableTime is the default pickup time for a range: its start, or "" when closed.
func FirstAvailableTime(r *TimeRange) string {
	if r == nil {
		return ""
	}
	return r.Start
}
