package pickup

import (
	"fmt"
	"time"
)

// DefaultCutoff is "order by 15:00 for next-day pickup".
var DefaultCutoff = Cutoff{Hour: 15}

// Cutoff is the daily time after which next-day pickup is no longer offered.
type Cutoff struct {
	Hour   int
	Minute int
}

// ParseCutoff parses "HH:MM".
func ParseCutoff(v string) (Cutoff, error) {
	m, err := ParseClock(v)
	if err != nil {
		return Cutoff{}, fmt.Errorf("cutoff: %w", err)
	}
	return Cutoff{Hour: m / 60, Minute: m % 60}, nil
}

// Before reports whether now is strictly earlier than the cutoff on now's day.
// Exactly at the cutoff counts as too late.
func (c Cutoff) Before(now time.Time) bool {
	cut := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
	return now.Before(cut)
}

// EarliestDate is the first calendar date an order placed at now may be picked up:
// tomorrow before the cutoff, the day after tomorrow otherwise.
func (c Cutoff) EarliestDate(now time.Time) time.Time {
	today := startOfDay(now)
	if c.Before(now) {
		return today.AddDate(0, 0, 1)
	}
	return today.AddDate(0, 0, 2)
}

func (c Cutoff) String() string {
	return FormatClock(c.Hour*60 + c.Minute)
}
