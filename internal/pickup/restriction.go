package pickup

// Restricted is implemented by cart lines whose category may limit pickup days.
// A nil result means the line does not restrict pickup.
type Restricted interface {
	PickupDays() *WeekdaySet
}

// IntersectRestrictions combines the weekday restrictions of every line.
//
// It returns nil when no line restricts pickup, meaning the store schedule
// alone decides. Otherwise it returns the days allowed by all restricting
// lines; an empty set means the cart mixes incompatible products.
func IntersectRestrictions[T Restricted](lines []T) *WeekdaySet {
	var out *WeekdaySet
	for _, line := range lines {
		days := line.PickupDays()
		if days == nil {
			continue
		}
		if out == nil {
			all := AllWeekdays()
			out = &all
		}
		narrowed := out.Intersect(*days)
		out = &narrowed
	}
	return out
}
