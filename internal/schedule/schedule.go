// Package schedule maintains the per-day index of events the dispatcher
// still has to announce, stored under event_start_date/{YYYY-MM-DD}/{id}.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
)

// Root is the store path of the schedule index.
const Root = "event_start_date"

// DayLayout formats the UTC partition key.
const DayLayout = "2006-01-02"

// DayKey returns the UTC partition key for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// ParseDay validates a partition key.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: want YYYY-MM-DD", day)
	}
	return t, nil
}

// Entry is one event waiting to be dispatched on Day.
type Entry struct {
	Day            string  `json:"day"`
	EventID        string  `json:"event_id"`
	StartTimeStamp float64 `json:"start_timestamp"`
	EndTimeStamp   float64 `json:"end_timestamp"`
}

// Partition is the schedule of one day. Malformed lists children that could
// not be decoded as entries.
type Partition struct {
	Day       string
	Entries   []Entry
	Malformed []string
}

type stored struct {
	StartTimeStamp float64 `json:"startTimeStamp"`
	EndTimeStamp   float64 `json:"endTimeStamp"`
}

// Index reads and writes schedule entries in the document store.
type Index struct {
	docs docstore.Store
}

// NewIndex creates an Index over docs.
func NewIndex(docs docstore.Store) *Index {
	return &Index{docs: docs}
}

// Load reads the partition of day. A missing partition is empty. Entries are
// ordered by start time, then event id.
func (x *Index) Load(ctx context.Context, day string) (*Partition, error) {
	p := &Partition{Day: day}

	var children map[string]json.RawMessage
	err := docstore.GetInto(ctx, x.docs, docstore.Join(Root, day), &children)
	if errors.Is(err, docstore.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load schedule %s: %w", day, err)
	}

	for id, raw := range children {
		var s stored
		if err := json.Unmarshal(raw, &s); err != nil {
			p.Malformed = append(p.Malformed, id)
			continue
		}
		p.Entries = append(p.Entries, Entry{
			Day:            day,
			EventID:        id,
			StartTimeStamp: s.StartTimeStamp,
			EndTimeStamp:   s.EndTimeStamp,
		})
	}
	sort.Slice(p.Entries, func(i, j int) bool {
		a, b := p.Entries[i], p.Entries[j]
		if a.StartTimeStamp != b.StartTimeStamp {
			return a.StartTimeStamp < b.StartTimeStamp
		}
		return a.EventID < b.EventID
	})
	sort.Strings(p.Malformed)
	return p, nil
}

// Retire removes an entry. Removing an absent entry is not an error.
func (x *Index) Retire(ctx context.Context, day, eventID string) error {
	if err := x.docs.Delete(ctx, docstore.Join(Root, day, eventID)); err != nil {
		return fmt.Errorf("retire %s/%s: %w", day, eventID, err)
	}
	return nil
}

// Add indexes an event under its start day, taken from the event's
// startDateStringUTC or, when that is empty, from its start timestamp.
func (x *Index) Add(ctx context.Context, ev *event.Event) (Entry, error) {
	if ev.StartTimeStamp >= ev.EndTimeStamp {
		return Entry{}, fmt.Errorf("%w: event %s starts at %v but ends at %v",
			event.ErrInvalid, ev.ID, ev.StartTimeStamp, ev.EndTimeStamp)
	}
	day := ev.StartDateUTC
	if day == "" {
		day = DayKey(ev.Start())
	}
	if _, err := ParseDay(day); err != nil {
		return Entry{}, fmt.Errorf("%w: event %s: %v", event.ErrInvalid, ev.ID, err)
	}

	e := Entry{
		Day:            day,
		EventID:        ev.ID,
		StartTimeStamp: ev.StartTimeStamp,
		EndTimeStamp:   ev.EndTimeStamp,
	}
	value := stored{StartTimeStamp: e.StartTimeStamp, EndTimeStamp: e.EndTimeStamp}
	if err := x.docs.Set(ctx, docstore.Join(Root, day, ev.ID), value); err != nil {
		return Entry{}, fmt.Errorf("index event %s on %s: %w", ev.ID, day, err)
	}
	return e, nil
}

// Days lists the partition keys present in the index, oldest first.
func (x *Index) Days(ctx context.Context) ([]string, error) {
	var days map[string]json.RawMessage
	err := docstore.GetInto(ctx, x.docs, Root, &days)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list schedule days: %w", err)
	}
	out := make([]string, 0, len(days))
	for d := range days {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

// Prune deletes every partition whose day is before the day of cutoff and
// returns the removed keys. Keys that are not dates are left alone.
func (x *Index) Prune(ctx context.Context, cutoff time.Time) ([]string, error) {
	days, err := x.Days(ctx)
	if err != nil {
		return nil, err
	}
	limit := DayKey(cutoff)

	values := make(map[string]any)
	var pruned []string
	for _, d := range days {
		if _, err := ParseDay(d); err != nil || d >= limit {
			continue
		}
		values[docstore.Join(Root, d)] = nil
		pruned = append(pruned, d)
	}
	if len(values) == 0 {
		return nil, nil
	}
	if err := x.docs.Update(ctx, values); err != nil {
		return nil, fmt.Errorf("prune schedule: %w", err)
	}
	return pruned, nil
}
