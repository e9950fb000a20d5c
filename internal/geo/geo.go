// Package geo is the user-location index: keyed points with one-shot radius
// queries that stream matching keys and then signal readiness.
package geo

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/albapepper/direct-dispatch/internal/event"
)

const earthRadiusKm = 6371.0088

// Hit is a key reported as inside a query radius.
type Hit struct {
	Key        string
	Location   event.Coordinate
	DistanceKm float64
}

// Index stores user locations and answers radius queries.
type Index interface {
	// Query starts a one-shot radius search around center.
	Query(ctx context.Context, center event.Coordinate, radiusKm float64) *Query
	// Set upserts the location of key.
	Set(ctx context.Context, key string, at event.Coordinate) error
	// Remove deletes key from the index.
	Remove(ctx context.Context, key string) error
}

// Query is a one-shot radius search. Every hit is delivered on Entered
// before Ready is closed; Entered is closed right after Ready.
type Query struct {
	entered chan Hit
	ready   chan struct{}

	mu  sync.Mutex
	err error
}

// StartQuery runs scan in the background and streams its hits through a new
// Query. Index implementations build their queries with it.
func StartQuery(ctx context.Context, scan func(context.Context) ([]Hit, error)) *Query {
	q := &Query{
		entered: make(chan Hit),
		ready:   make(chan struct{}),
	}
	q.run(ctx, scan)
	return q
}

// Entered streams keys found inside the radius.
func (q *Query) Entered() <-chan Hit { return q.entered }

// Ready is closed once the initial scan has been fully reported.
func (q *Query) Ready() <-chan struct{} { return q.ready }

// Err returns the scan error, if any. Valid after Ready is closed.
func (q *Query) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Each send blocks until received, so a closed Ready means every hit was
// consumed.
func (q *Query) run(ctx context.Context, scan func(context.Context) ([]Hit, error)) {
	go func() {
		defer close(q.entered)
		defer close(q.ready)

		hits, err := scan(ctx)
		if err != nil {
			q.fail(err)
			return
		}
		for _, h := range hits {
			select {
			case q.entered <- h:
			case <-ctx.Done():
				q.fail(ctx.Err())
				return
			}
		}
	}()
}

func (q *Query) fail(err error) {
	q.mu.Lock()
	q.err = err
	q.mu.Unlock()
}

// Collect drains a query until it is ready and returns the unique keys seen.
// It gives up when ctx is done, which callers use to bound a stalled index.
func Collect(ctx context.Context, q *Query) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	entered := q.Entered()
	for {
		select {
		case h, ok := <-entered:
			if !ok {
				entered = nil
				continue
			}
			if _, dup := seen[h.Key]; !dup {
				seen[h.Key] = struct{}{}
				keys = append(keys, h.Key)
			}
		case <-q.Ready():
			if err := q.Err(); err != nil {
				return nil, fmt.Errorf("geo query: %w", err)
			}
			return keys, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("geo query not ready: %w", ctx.Err())
		}
	}
}

// DistanceKm is the great-circle distance between two coordinates.
func DistanceKm(a, b event.Coordinate) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLong := radians(b.Long - a.Long)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLong/2)*math.Sin(dLong/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
