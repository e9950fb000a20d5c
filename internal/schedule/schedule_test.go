package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
)

func TestDayKeyIsUTC(t *testing.T) {
	pst := time.FixedZone("PST", -8*3600)
	assert.Equal(t, "2024-03-02", DayKey(time.Date(2024, 3, 1, 20, 0, 0, 0, pst)))
}

func TestLoadMissingPartitionIsEmpty(t *testing.T) {
	p, err := NewIndex(docstore.NewMemory()).Load(context.Background(), "2024-03-01")
	require.NoError(t, err)
	assert.Empty(t, p.Entries)
	assert.Empty(t, p.Malformed)
}

func TestLoadOrdersEntriesAndReportsMalformed(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	require.NoError(t, docs.Set(ctx, "event_start_date/2024-03-01", map[string]any{
		"b":   map[string]any{"startTimeStamp": 100, "endTimeStamp": 200},
		"a":   map[string]any{"startTimeStamp": 100, "endTimeStamp": 300},
		"c":   map[string]any{"startTimeStamp": 50, "endTimeStamp": 60},
		"bad": "not an entry",
	}))

	p, err := NewIndex(docs).Load(ctx, "2024-03-01")
	require.NoError(t, err)

	ids := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		ids = append(ids, e.EventID)
		assert.Equal(t, "2024-03-01", e.Day)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
	assert.Equal(t, []string{"bad"}, p.Malformed)
}

func TestAddUsesStartDateOrTimestampDay(t *testing.T) {
	ctx := context.Background()
	idx := NewIndex(docstore.NewMemory())

	start := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	ev := &event.Event{
		ID:             "e1",
		StartTimeStamp: event.Seconds(start),
		EndTimeStamp:   event.Seconds(start.Add(2 * time.Hour)),
	}
	e, err := idx.Add(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", e.Day)

	ev2 := *ev
	ev2.ID = "e2"
	ev2.StartDateUTC = "2024-03-02"
	e, err = idx.Add(ctx, &ev2)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-02", e.Day)

	p, err := idx.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, ev.StartTimeStamp, p.Entries[0].StartTimeStamp)
	assert.Equal(t, ev.EndTimeStamp, p.Entries[0].EndTimeStamp)
}

func TestAddRejectsBadEvents(t *testing.T) {
	idx := NewIndex(docstore.NewMemory())

	_, err := idx.Add(context.Background(), &event.Event{ID: "e", StartTimeStamp: 10, EndTimeStamp: 10})
	assert.ErrorIs(t, err, event.ErrInvalid)

	_, err = idx.Add(context.Background(), &event.Event{ID: "e", StartTimeStamp: 10, EndTimeStamp: 20, StartDateUTC: "03/01/2024"})
	assert.ErrorIs(t, err, event.ErrInvalid)
}

func TestRetireIsIdempotent(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	idx := NewIndex(docs)
	_, err := idx.Add(ctx, &event.Event{ID: "e1", StartTimeStamp: 10, EndTimeStamp: 20, StartDateUTC: "2024-03-01"})
	require.NoError(t, err)

	require.NoError(t, idx.Retire(ctx, "2024-03-01", "e1"))
	require.NoError(t, idx.Retire(ctx, "2024-03-01", "e1"))

	p, err := idx.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Empty(t, p.Entries)
}

func TestPruneRemovesOldPartitions(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	idx := NewIndex(docs)
	for _, day := range []string{"2024-02-27", "2024-02-28", "2024-03-01"} {
		_, err := idx.Add(ctx, &event.Event{ID: "e-" + day, StartTimeStamp: 1, EndTimeStamp: 2, StartDateUTC: day})
		require.NoError(t, err)
	}
	require.NoError(t, docs.Set(ctx, "event_start_date/notes", "keep"))

	pruned, err := idx.Prune(ctx, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28"}, pruned)

	days, err := idx.Days(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "notes"}, days)

	pruned, err = idx.Prune(ctx, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, pruned)
}
