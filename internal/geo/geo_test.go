package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/direct-dispatch/internal/event"
)

var (
	sanDiego    = event.Coordinate{Lat: 32.7157, Long: -117.1611}
	laJolla     = event.Coordinate{Lat: 32.8328, Long: -117.2713}
	losAngeles  = event.Coordinate{Lat: 34.0522, Long: -118.2437}
	newYorkCity = event.Coordinate{Lat: 40.7128, Long: -74.0060}
)

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, DistanceKm(sanDiego, sanDiego), 1e-9)
	assert.InDelta(t, 179, DistanceKm(sanDiego, losAngeles), 3)
	assert.InDelta(t, 3940, DistanceKm(losAngeles, newYorkCity), 30)
	assert.InDelta(t, DistanceKm(laJolla, sanDiego), DistanceKm(sanDiego, laJolla), 1e-9)
}

func TestMemoryQueryRadius(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.Set(ctx, "u-la", losAngeles))
	require.NoError(t, idx.Set(ctx, "u-lj", laJolla))
	require.NoError(t, idx.Set(ctx, "u-ny", newYorkCity))

	keys, err := Collect(ctx, idx.Query(ctx, sanDiego, 200))
	require.NoError(t, err)
	assert.Equal(t, []string{"u-lj", "u-la"}, keys)

	keys, err = Collect(ctx, idx.Query(ctx, sanDiego, 10000))
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	require.NoError(t, idx.Remove(ctx, "u-la"))
	keys, err = Collect(ctx, idx.Query(ctx, sanDiego, 200))
	require.NoError(t, err)
	assert.Equal(t, []string{"u-lj"}, keys)
}

func TestMemorySetRejectsInvalid(t *testing.T) {
	assert.Error(t, NewMemory().Set(context.Background(), "u1", event.Coordinate{Lat: 120}))
}

func TestCollectDeduplicates(t *testing.T) {
	ctx := context.Background()
	q := StartQuery(ctx, func(context.Context) ([]Hit, error) {
		return []Hit{{Key: "a"}, {Key: "b"}, {Key: "a"}}, nil
	})
	keys, err := Collect(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestCollectReportsScanError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	q := StartQuery(ctx, func(context.Context) ([]Hit, error) { return nil, boom })

	_, err := Collect(ctx, q)
	assert.ErrorIs(t, err, boom)
}

func TestCollectTimesOutWhenNeverReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	q := StartQuery(ctx, func(ctx context.Context) ([]Hit, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := Collect(ctx, q)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollectWaitsForReadyAfterEnteredCloses(t *testing.T) {
	q := &Query{entered: make(chan Hit), ready: make(chan struct{})}
	go func() {
		q.entered <- Hit{Key: "a"}
		close(q.entered)
		time.Sleep(10 * time.Millisecond)
		close(q.ready)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	keys, err := Collect(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
}
