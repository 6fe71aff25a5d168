package model

import (
	"testing"
	"time"

	"bakehouse/internal/pickup"
	"github.com/stretchr/testify/assert"
)

func TestBuildSchedule(t *testing.T) {
	s := BuildSchedule(
		[]StoreHours{
			{DayOfWeek: 1, StartTime: "08:00", EndTime: "18:00"},
			{DayOfWeek: 7, IsClosed: true},
			{DayOfWeek: 9, StartTime: "08:00", EndTime: "18:00"},
		},
		[]StoreException{
			{Date: "2026-12-25", IsClosed: true, Reason: "Christmas"},
		},
	)

	assert.Len(t, s.Regular, 2)
	assert.Equal(t, pickup.DaySchedule{Start: "08:00", End: "18:00"}, s.Regular[time.Monday])
	assert.Equal(t, pickup.Closed, s.Regular[time.Sunday])
	assert.Equal(t, pickup.Closed, s.Exceptions["2026-12-25"])
}

func TestPriceTierApply(t *testing.T) {
	assert.Equal(t, int64(0), PriceTier{}.Apply(1000))
	assert.Equal(t, int64(150), PriceTier{DiscountPercent: 15}.Apply(1000))
	assert.Equal(t, int64(33), PriceTier{DiscountPercent: 10}.Apply(333))
	assert.Equal(t, int64(1000), PriceTier{DiscountPercent: 150}.Apply(1000))
}

func TestCartHelpers(t *testing.T) {
	fri := pickup.NewWeekdaySet(time.Friday)
	c := Cart{Lines: []CartLine{
		{ProductID: 1, Quantity: 2, PriceCents: 350},
		{ProductID: 2, Quantity: 1, PriceCents: 1200, Category: &Category{PickupDays: &fri}},
	}}

	assert.Equal(t, int64(1900), c.Subtotal())

	l, idx := c.Line(2)
	assert.Equal(t, 1, idx)
	assert.Equal(t, &fri, l.PickupDays())

	_, idx = c.Line(3)
	assert.Equal(t, -1, idx)
	assert.Nil(t, c.Lines[0].PickupDays())
}
