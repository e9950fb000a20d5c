package docstore

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	leaves map[string]json.RawMessage
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{leaves: make(map[string]json.RawMessage)}
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	prefix := childPrefix(path)

	m.mu.RLock()
	found := make(map[string]json.RawMessage)
	for k, v := range m.leaves {
		if k == path || strings.HasPrefix(k, prefix) {
			found[relative(path, k)] = v
		}
	}
	m.mu.RUnlock()

	return assemble(found)
}

// Set implements Store.
func (m *Memory) Set(ctx context.Context, path string, value any) error {
	return m.Update(ctx, map[string]any{path: value})
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Update(ctx, map[string]any{path: nil})
}

// Update implements Store. All writes become visible together.
func (m *Memory) Update(ctx context.Context, values map[string]any) error {
	writes, err := planWrites(values)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		m.removeSubtree(w.path)
		for _, a := range ancestors(w.path) {
			delete(m.leaves, a)
		}
		for rel, v := range w.leaves {
			m.leaves[absolute(w.path, rel)] = v
		}
	}
	return nil
}

// Ping implements Pinger.
func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) removeSubtree(path string) {
	prefix := childPrefix(path)
	for k := range m.leaves {
		if k == path || strings.HasPrefix(k, prefix) {
			delete(m.leaves, k)
		}
	}
}
