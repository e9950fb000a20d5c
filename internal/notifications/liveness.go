package notifications

import (
	"time"

	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

// IsLive reports whether now falls within the entry's window, both ends
// inclusive.
func IsLive(e schedule.Entry, now time.Time) bool {
	ts := event.Seconds(now)
	return e.StartTimeStamp <= ts && ts <= e.EndTimeStamp
}

// LiveEntries returns the entries that are live at now, preserving order.
func LiveEntries(entries []schedule.Entry, now time.Time) []schedule.Entry {
	var live []schedule.Entry
	for _, e := range entries {
		if IsLive(e, now) {
			live = append(live, e)
		}
	}
	return live
}
