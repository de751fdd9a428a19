package evaluator

import (
	"time"

	"captive-portal/controlplane/internal/model"
)

// WindowStart returns the start of the calendar bucket containing t, in loc:
// local midnight for daily, Monday 00:00 for weekly, the 1st for monthly.
// The result is in UTC.
func WindowStart(w model.Window, t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	var start time.Time
	switch w {
	case model.WindowWeekly:
		offset := (int(local.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case model.WindowMonthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	return start.UTC()
}
