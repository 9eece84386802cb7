package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"trafficwaker/pkg/interfaces"
)

var weekdayNames = map[string]int{
	"mon": 1, "monday": 1,
	"tue": 2, "tuesday": 2,
	"wed": 3, "wednesday": 3,
	"thu": 4, "thursday": 4,
	"fri": 5, "friday": 5,
	"sat": 6, "saturday": 6,
	"sun": 7, "sunday": 7,
}

// ParseWeekdays expands a weekday specification into a typed set.
//
// Accepted forms: "*", single days, comma lists and ranges of cron day numbers
// (0-7, 0 and 7 are Sunday) or English day names, e.g. "1-5", "0,6", "mon-fri".
// Anything else is rejected.
func ParseWeekdays(spec string) (interfaces.WeekdaySet, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, fmt.Errorf("empty weekday specification")
	}
	if spec == "*" {
		return interfaces.AllWeekdays, nil
	}

	var set interfaces.WeekdaySet
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, fmt.Errorf("invalid weekday specification %q: empty element", spec)
		}

		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parseWeekday(lo)
		if err != nil {
			return 0, fmt.Errorf("invalid weekday specification %q: %w", spec, err)
		}
		if !isRange {
			set |= interfaces.NewWeekdaySet(isoDay(start))
			continue
		}

		end, err := parseWeekday(hi)
		if err != nil {
			return 0, fmt.Errorf("invalid weekday specification %q: %w", spec, err)
		}
		// "sun-sat" / "7-6": Sunday starts the week in cron notation
		if start > end && start == 7 {
			start = 0
		}
		if start > end {
			return 0, fmt.Errorf("invalid weekday specification %q: descending range %s", spec, part)
		}
		for d := start; d <= end; d++ {
			set |= interfaces.NewWeekdaySet(isoDay(d))
		}
	}
	return set, nil
}

// parseWeekday returns a cron-style day number in 0..7
func parseWeekday(token string) (int, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if d, ok := weekdayNames[token]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 || n > 7 {
		return 0, fmt.Errorf("unrecognized weekday %q", token)
	}
	return n, nil
}

func isoDay(d int) int {
	if d == 0 {
		return 7
	}
	return d
}

// ParseTimeOfDay parses a HH:MM time of day (00:00 .. 23:59)
func ParseTimeOfDay(value string) (interfaces.TimeOfDay, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	if len(h) < 1 || len(h) > 2 || !allDigits(h) {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	if len(m) != 2 || !allDigits(m) {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return interfaces.NewTimeOfDay(hour, minute), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
