package interfaces

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleSource returns the sleep windows of the target namespace that are active at now.
// A read failure is reported as ErrScheduleUnavailable.
type ScheduleSource interface {
	ActiveWindows(ctx context.Context, now time.Time) ([]SleepWindow, error)
}

// WeekdaySet set of ISO weekdays (1=Monday .. 7=Sunday), bit i marks day i
type WeekdaySet uint8

// AllWeekdays every day of the week
const AllWeekdays WeekdaySet = 0xFE

// NewWeekdaySet builds a set from ISO weekday numbers; out-of-range days are ignored
func NewWeekdaySet(days ...int) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		if d >= 1 && d <= 7 {
			s |= 1 << uint(d)
		}
	}
	return s
}

// Has reports whether the ISO weekday is in the set
func (s WeekdaySet) Has(day int) bool {
	if day < 1 || day > 7 {
		return false
	}
	return s&(1<<uint(day)) != 0
}

// Empty reports whether no day is set
func (s WeekdaySet) Empty() bool {
	return s&AllWeekdays == 0
}

// Days returns the ISO weekday numbers in ascending order
func (s WeekdaySet) Days() []int {
	days := make([]int, 0, 7)
	for d := 1; d <= 7; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as a list of ISO weekday numbers
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Days())
}

// ISOWeekday returns the ISO weekday of t (1=Monday .. 7=Sunday)
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// TimeOfDay minute-resolution time of day, in minutes after midnight
type TimeOfDay int

// MinutesPerDay number of distinct TimeOfDay values
const MinutesPerDay = 24 * 60

// NewTimeOfDay builds a TimeOfDay from hour and minute
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// TimeOfDayOf truncates t (in its own location) to minute resolution
func TimeOfDayOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalText encodes the time as HH:MM
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// SleepWindow a declared daily sleep period.
//
// The window is active when the weekday is in Days and the time of day falls in
// [SleepAt, WakeAt), both evaluated in Location. When SleepAt is after WakeAt the
// window wraps midnight and the early-morning part belongs to the previous day.
type SleepWindow struct {
	Name     string         `json:"name"`
	Days     WeekdaySet     `json:"days"`
	SleepAt  TimeOfDay      `json:"sleepAt"`
	WakeAt   TimeOfDay      `json:"wakeAt"`
	Location *time.Location `json:"-"`
}

// ActiveAt reports whether the window is active at t
func (w SleepWindow) ActiveAt(t time.Time) bool {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	tod := TimeOfDayOf(local)
	day := ISOWeekday(local)

	switch {
	case w.SleepAt < w.WakeAt:
		return w.Days.Has(day) && tod >= w.SleepAt && tod < w.WakeAt
	case w.SleepAt > w.WakeAt:
		if tod >= w.SleepAt {
			return w.Days.Has(day)
		}
		if tod < w.WakeAt {
			prev := day - 1
			if prev == 0 {
				prev = 7
			}
			return w.Days.Has(prev)
		}
		return false
	default:
		return false
	}
}
