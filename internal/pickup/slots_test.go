package pickup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeSlots(t *testing.T) {
	tests := []struct {
		name string
		tr   *TimeRange
		step time.Duration
		want []string
	}{
		{name: "closed", tr: nil, step: 15 * time.Minute, want: nil},
		{
			name: "aligned",
			tr:   &TimeRange{Start: "08:00", End: "09:00"},
			step: 15 * time.Minute,
			want: []string{"08:00", "08:15", "08:30", "08:45", "09:00"},
		},
		{
			name: "unaligned boundaries kept",
			tr:   &TimeRange{Start: "08:10", End: "08:40"},
			step: 15 * time.Minute,
			want: []string{"08:10", "08:15", "08:30", "08:40"},
		},
		{
			name: "step larger than range",
			tr:   &TimeRange{Start: "10:00", End: "10:20"},
			step: time.Hour,
			want: []string{"10:00", "10:20"},
		},
		{
			name: "zero step uses default",
			tr:   &TimeRange{Start: "12:00", End: "12:30"},
			step: 0,
			want: []string{"12:00", "12:15", "12:30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeSlots(tt.tr, tt.step))
		})
	}
}

func TestParseStep(t *testing.T) {
	assert.Equal(t, DefaultSlotStep, ParseStep(0))
	assert.Equal(t, 30*time.Minute, ParseStep(30))
}
