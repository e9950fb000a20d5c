package maintenance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/direct-dispatch/internal/dispatch"
	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPruneStaleKeepsRetentionWindow(t *testing.T) {
	ctx := context.Background()
	idx := schedule.NewIndex(docstore.NewMemory())
	for _, day := range []string{"2024-02-20", "2024-02-22", "2024-02-23", "2024-03-01"} {
		_, err := idx.Add(ctx, &event.Event{ID: "e", StartTimeStamp: 1, EndTimeStamp: 2, StartDateUTC: day})
		require.NoError(t, err)
	}

	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	pruned, err := PruneStale(ctx, idx, 7, now, discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-20", "2024-02-22"}, pruned)

	days, err := idx.Days(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-23", "2024-03-01"}, days)
}

type nopRunner struct{}

func (nopRunner) Run(context.Context) (*dispatch.RunResult, error) { return &dispatch.RunResult{}, nil }

func TestStartRejectsBadSpec(t *testing.T) {
	err := Start(context.Background(), Config{DispatchCron: "every minute"}, nopRunner{}, nil, discard())
	assert.Error(t, err)
}

func TestStartStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, Config{DispatchCron: "@every 1h"}, nopRunner{}, nil, discard())
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("maintenance did not stop")
	}
}
