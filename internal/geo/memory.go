package geo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/albapepper/direct-dispatch/internal/event"
)

// Memory is an in-process Index using great-circle distance.
type Memory struct {
	mu     sync.RWMutex
	points map[string]event.Coordinate
}

// NewMemory returns an empty index.
func NewMemory() *Memory {
	return &Memory{points: make(map[string]event.Coordinate)}
}

// Query implements Index. Hits are ordered nearest first.
func (m *Memory) Query(ctx context.Context, center event.Coordinate, radiusKm float64) *Query {
	return StartQuery(ctx, func(context.Context) ([]Hit, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		var hits []Hit
		for key, at := range m.points {
			if d := DistanceKm(center, at); d <= radiusKm {
				hits = append(hits, Hit{Key: key, Location: at, DistanceKm: d})
			}
		}
		sort.Slice(hits, func(i, j int) bool {
			if hits[i].DistanceKm != hits[j].DistanceKm {
				return hits[i].DistanceKm < hits[j].DistanceKm
			}
			return hits[i].Key < hits[j].Key
		})
		return hits, nil
	})
}

// Set implements Index.
func (m *Memory) Set(ctx context.Context, key string, at event.Coordinate) error {
	if !at.Valid() {
		return fmt.Errorf("set %s: coordinate out of range", key)
	}
	m.mu.Lock()
	m.points[key] = at
	m.mu.Unlock()
	return nil
}

// Remove implements Index.
func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.points, key)
	m.mu.Unlock()
	return nil
}
