package model

import (
	"time"

	"bakehouse/internal/pickup"
)

type Store struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoreHours is the weekly opening row of a store.
type StoreHours struct {
	StoreID   int64  `json:"store_id"`
	DayOfWeek int    `json:"day_of_week"` // 1-7 (Monday-Sunday)
	IsClosed  bool   `json:"is_closed"`
	StartTime string `json:"start_time,omitempty"` // "08:00"
	EndTime   string `json:"end_time,omitempty"`   // "18:00"
}

// StoreException overrides the weekly hours for one date.
type StoreException struct {
	StoreID   int64  `json:"store_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	IsClosed  bool   `json:"is_closed"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (h StoreHours) DaySchedule() pickup.DaySchedule {
	if h.IsClosed {
		return pickup.Closed
	}
	return pickup.DaySchedule{Start: h.StartTime, End: h.EndTime}
}

func (e StoreException) DaySchedule() pickup.DaySchedule {
	if e.IsClosed {
		return pickup.Closed
	}
	return pickup.DaySchedule{Start: e.StartTime, End: e.EndTime}
}

// BuildSchedule assembles the resolver input from stored rows.
// Rows with an invalid day number are skipped.
func BuildSchedule(hours []StoreHours, exceptions []StoreException) pickup.Schedule {
	s := pickup.Schedule{
		Regular:    make(map[time.Weekday]pickup.DaySchedule, len(hours)),
		Exceptions: make(map[string]pickup.DaySchedule, len(exceptions)),
	}
	for _, h := range hours {
		day, err := pickup.WeekdayFromNumber(h.DayOfWeek)
		if err != nil {
			continue
		}
		s.Regular[day] = h.DaySchedule()
	}
	for _, e := range exceptions {
		s.Exceptions[e.Date] = e.DaySchedule()
	}
	return s
}
