package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"firebase.google.com/go/v4/db"
)

// Firebase is a Store over the Firebase Realtime Database, which already
// has the tree semantics this package models.
type Firebase struct {
	client *db.Client
}

// NewFirebase wraps a realtime database client.
func NewFirebase(client *db.Client) *Firebase {
	return &Firebase{client: client}
}

// Get implements Store.
func (f *Firebase) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := f.client.NewRef(path).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrNotFound
	}
	return raw, nil
}

// Set implements Store.
func (f *Firebase) Set(ctx context.Context, path string, value any) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("set: refusing to write the root")
	}
	if value == nil {
		return f.Delete(ctx, path)
	}
	if err := f.client.NewRef(path).Set(ctx, value); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// Delete implements Store.
func (f *Firebase) Delete(ctx context.Context, path string) error {
	path, err := CleanPath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("delete: refusing to delete the root")
	}
	if err := f.client.NewRef(path).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Update implements Store with a multi-location update on the root.
func (f *Firebase) Update(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return fmt.Errorf("update: no values")
	}
	clean := make(map[string]interface{}, len(values))
	for p, v := range values {
		path, err := CleanPath(p)
		if err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("update: refusing to write the root")
		}
		clean[path] = v
	}
	if err := f.client.NewRef("/").Update(ctx, clean); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}
