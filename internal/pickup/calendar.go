package pickup

import "time"

// CalendarDay is one cell of the pickup date picker.
type CalendarDay struct {
	Date      string `json:"date"`
	Day       int    `json:"day"`
	Available bool   `json:"available"`
}

// CalendarMonth is a Monday-first month grid. Padding cells before the first
// and after the last day are nil.
type CalendarMonth struct {
	Year  int              `json:"year"`
	Month int              `json:"month"`
	Weeks [][]*CalendarDay `json:"weeks"`
}

// Calendar builds the month grid for the date picker, flagging which days are selectable.
func (r *Resolver) Calendar(s Schedule, restriction *WeekdaySet, year int, month time.Month) CalendarMonth {
	loc := r.Location()
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := WeekdayNumber(firstDay.Weekday()) - 1
	days := daysIn(month, year)

	out := CalendarMonth{Year: year, Month: int(month)}
	week := make([]*CalendarDay, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, nil)
	}
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		week = append(week, &CalendarDay{
			Date:      DateKey(date),
			Day:       day,
			Available: r.IsSelectable(s, restriction, date),
		})
		if len(week) == 7 {
			out.Weeks = append(out.Weeks, week)
			week = make([]*CalendarDay, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, nil)
		}
		out.Weeks = append(out.Weeks, week)
	}
	return out
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
