package listener

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

func TestHandleIndexesCreatedEvent(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	events := event.NewRepository(docs)
	idx := schedule.NewIndex(docs)
	require.NoError(t, events.Save(ctx, &event.Event{
		ID:             "e1",
		Title:          "Jazz Night",
		Categories:     event.NewCategorySet("Music"),
		StartTimeStamp: 1000,
		EndTimeStamp:   2000,
		StartDateUTC:   "2024-03-01",
	}))

	l := New("", events, idx, slog.New(slog.NewTextHandler(io.Discard, nil)))
	l.Handle(ctx, `{"event_id":"e1"}`)
	l.Handle(ctx, `{"event_id":"missing"}`)
	l.Handle(ctx, `not json`)

	p, err := idx.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, p.Entries, 1)
	assert.Equal(t, schedule.Entry{Day: "2024-03-01", EventID: "e1", StartTimeStamp: 1000, EndTimeStamp: 2000}, p.Entries[0])
}
