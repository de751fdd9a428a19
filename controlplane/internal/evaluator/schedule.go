package evaluator

import (
	"fmt"
	"strings"
	"time"

	"captive-portal/controlplane/internal/model"
)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short ("mon") or long ("monday") names in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", s)
	}
	return d, nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ScheduleAllows reports whether local falls inside any window. An empty
// schedule allows every instant.
func ScheduleAllows(schedule []model.ScheduleWindow, local time.Time) bool {
	if len(schedule) == 0 {
		return true
	}
	for _, w := range schedule {
		if windowAllows(w, local) {
			return true
		}
	}
	return false
}

func windowAllows(w model.ScheduleWindow, local time.Time) bool {
	start, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	today := local.Weekday()
	yesterday := (today + 6) % 7

	switch {
	case start == end:
		return dayListed(w.Days, today)
	case start < end:
		return dayListed(w.Days, today) && minute >= start && minute < end
	default:
		// Overnight: the part after midnight belongs to the previous day.
		return (dayListed(w.Days, today) && minute >= start) ||
			(dayListed(w.Days, yesterday) && minute < end)
	}
}

func dayListed(days []string, d time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, s := range days {
		if wd, err := ParseWeekday(s); err == nil && wd == d {
			return true
		}
	}
	return false
}
