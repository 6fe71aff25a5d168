package pickup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	days *WeekdaySet
}

func (l line) PickupDays() *WeekdaySet { return l.days }

func days(d ...time.Weekday) *WeekdaySet {
	s := NewWeekdaySet(d...)
	return &s
}

func TestIntersectRestrictions(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		assert.Nil(t, IntersectRestrictions([]line{}))
	})

	t.Run("only unrestricted lines", func(t *testing.T) {
		assert.Nil(t, IntersectRestrictions([]line{{}, {}}))
	})

	t.Run("single restriction", func(t *testing.T) {
		got := IntersectRestrictions([]line{{}, {days: days(time.Friday, time.Saturday)}})
		require.NotNil(t, got)
		assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, got.Days())
	})

	t.Run("overlapping restrictions", func(t *testing.T) {
		got := IntersectRestrictions([]line{
			{days: days(time.Thursday, time.Friday, time.Saturday)},
			{},
			{days: days(time.Friday, time.Saturday, time.Sunday)},
		})
		require.NotNil(t, got)
		assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, got.Days())
	})

	t.Run("disjoint restrictions", func(t *testing.T) {
		got := IntersectRestrictions([]line{
			{days: days(time.Saturday)},
			{days: days(time.Monday)},
		})
		require.NotNil(t, got)
		assert.True(t, got.Empty())
	})
}

func TestWeekdaySetJSON(t *testing.T) {
	s := NewWeekdaySet(time.Sunday, time.Monday)
	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["monday","sunday"]`, string(b))

	var got WeekdaySet
	require.NoError(t, got.UnmarshalJSON([]byte(`["mon", 7, "Saturday"]`)))
	assert.Equal(t, NewWeekdaySet(time.Monday, time.Saturday, time.Sunday), got)

	assert.Error(t, got.UnmarshalJSON([]byte(`["someday"]`)))
	assert.Error(t, got.UnmarshalJSON([]byte(`[8]`)))
}

func TestWeekdayNumber(t *testing.T) {
	assert.Equal(t, 7, WeekdayNumber(time.Sunday))
	assert.Equal(t, 1, WeekdayNumber(time.Monday))

	d, err := WeekdayFromNumber(7)
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	_, err = WeekdayFromNumber(0)
	assert.Error(t, err)
}
