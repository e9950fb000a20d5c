// Package docstore is a path-addressed JSON document tree in the style of a
// realtime database. Paths are slash-delimited; reading an interior path
// returns the reconstructed subtree, writing one replaces it.
//
// Backends: Postgres (leaf rows in a single table), Firebase Realtime
// Database, and an in-memory tree used by tests and local runs.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when nothing is stored at or below a path.
var ErrNotFound = errors.New("docstore: not found")

// Store is the document store contract consumed by the dispatcher.
type Store interface {
	// Get returns the JSON value at path, or ErrNotFound.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set replaces the value at path. A nil value deletes it.
	Set(ctx context.Context, path string, value any) error
	// Delete removes path and everything below it.
	Delete(ctx context.Context, path string) error
	// Update applies several path writes atomically. Nil values delete.
	Update(ctx context.Context, values map[string]any) error
}

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GetInto reads path and decodes it into v.
func GetInto(ctx context.Context, s Store, path string, v any) error {
	raw, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Join builds a store path from segments.
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// CleanPath trims surrounding slashes and rejects empty or reserved segments.
// The empty path addresses the root.
func CleanPath(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", nil
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return "", fmt.Errorf("invalid path %q: empty segment", path)
		}
		if strings.ContainsAny(seg, ".#$[]") {
			return "", fmt.Errorf("invalid path %q: segment %q has reserved characters", path, seg)
		}
	}
	return path, nil
}

// ancestors returns every proper prefix of path, shortest first.
func ancestors(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

// childPrefix is the prefix shared by all descendants of path.
func childPrefix(path string) string {
	if path == "" {
		return ""
	}
	return path + "/"
}
