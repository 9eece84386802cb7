package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficwaker/pkg/interfaces"
)

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		expected []int
	}{
		{name: "weekday range", spec: "1-5", expected: []int{1, 2, 3, 4, 5}},
		{name: "wildcard", spec: "*", expected: []int{1, 2, 3, 4, 5, 6, 7}},
		{name: "weekend cron numbers", spec: "0,6", expected: []int{6, 7}},
		{name: "seven is sunday", spec: "7", expected: []int{7}},
		{name: "full cron range", spec: "0-6", expected: []int{1, 2, 3, 4, 5, 6, 7}},
		{name: "names", spec: "mon-fri", expected: []int{1, 2, 3, 4, 5}},
		{name: "mixed case names", spec: "Sat,SUNDAY", expected: []int{6, 7}},
		{name: "sunday first range", spec: "sun-tue", expected: []int{1, 2, 7}},
		{name: "list and range", spec: " 1, 3-4 ", expected: []int{1, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseWeekdays(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, set.Days())
		})
	}
}

func TestParseWeekdays_Rejects(t *testing.T) {
	for _, spec := range []string{"", "weekdays", "8", "-1", "5-1", "1,,2", "*/2", "1-"} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseWeekdays(spec)
			assert.Error(t, err)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		value    string
		expected interfaces.TimeOfDay
		wantErr  bool
	}{
		{value: "00:00", expected: 0},
		{value: "09:00", expected: 9 * 60},
		{value: "9:30", expected: 9*60 + 30},
		{value: "23:59", expected: 23*60 + 59},
		{value: "24:00", wantErr: true},
		{value: "12:60", wantErr: true},
		{value: "12:5", wantErr: true},
		{value: "noon", wantErr: true},
		{value: "+9:00", wantErr: true},
		{value: "-0:00", wantErr: true},
		{value: " 9:00", expected: 9 * 60},
		{value: "009:00", wantErr: true},
		{value: "09:+5", wantErr: true},
		{value: ":30", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got.String(), 5)
		})
	}
}
