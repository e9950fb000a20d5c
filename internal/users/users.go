// Package users reads per-user preference and device-token records.
package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/direct-dispatch/internal/cache"
	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
)

const (
	usersRoot       = "users"
	preferencesLeaf = "eventPreferences"
	tokensRoot      = "device_token"
)

// Directory resolves users' category preferences and push tokens.
type Directory struct {
	docs     docstore.Store
	cache    *cache.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewDirectory creates a Directory. c may be nil to disable caching.
func NewDirectory(docs docstore.Store, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *Directory {
	return &Directory{docs: docs, cache: c, cacheTTL: ttl, logger: logger}
}

// Preferences returns the categories uid is interested in. A user with no
// stored preferences, or with a record that cannot be read as a category
// list, gets an empty set. Only store errors are returned.
func (d *Directory) Preferences(ctx context.Context, uid string) (event.CategorySet, error) {
	key := "prefs:" + uid
	if d.cache != nil {
		if data, _, ok := d.cache.Get(key); ok {
			if set, err := decodePreferences(uid, data); err == nil {
				return set, nil
			}
		}
	}

	raw, err := d.docs.Get(ctx, docstore.Join(usersRoot, uid, preferencesLeaf))
	if errors.Is(err, docstore.ErrNotFound) {
		raw = json.RawMessage(`""`)
	} else if err != nil {
		return nil, fmt.Errorf("load preferences of %s: %w", uid, err)
	}

	set, err := decodePreferences(uid, raw)
	if err != nil {
		d.logger.Warn("Ignoring malformed preferences", "uid", uid, "error", err)
		return event.NewCategorySet(), nil
	}
	if d.cache != nil && d.cacheTTL > 0 {
		d.cache.Set(key, raw, d.cacheTTL)
	}
	return set, nil
}

func decodePreferences(uid string, raw []byte) (event.CategorySet, error) {
	var set event.CategorySet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode preferences of %s: %w", uid, err)
	}
	if set == nil {
		set = event.NewCategorySet()
	}
	return set, nil
}

// SetPreferences stores uid's categories in the comma-separated form the
// mobile client writes.
func (d *Directory) SetPreferences(ctx context.Context, uid string, cats event.CategorySet) error {
	if err := d.docs.Set(ctx, docstore.Join(usersRoot, uid, preferencesLeaf), cats.String()); err != nil {
		return fmt.Errorf("save preferences of %s: %w", uid, err)
	}
	if d.cache != nil {
		d.cache.Delete("prefs:" + uid)
	}
	return nil
}

// DeviceToken returns uid's push token. ok is false when the user has none
// or when the stored value is not a string.
func (d *Directory) DeviceToken(ctx context.Context, uid string) (token string, ok bool, err error) {
	raw, err := d.docs.Get(ctx, docstore.Join(tokensRoot, uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load device token of %s: %w", uid, err)
	}
	if err := json.Unmarshal(raw, &token); err != nil {
		d.logger.Warn("Ignoring malformed device token", "uid", uid, "error", err)
		return "", false, nil
	}
	return token, token != "", nil
}

// SetDeviceToken stores uid's push token. An empty token removes it.
func (d *Directory) SetDeviceToken(ctx context.Context, uid, token string) error {
	var value any
	if token != "" {
		value = token
	}
	if err := d.docs.Set(ctx, docstore.Join(tokensRoot, uid), value); err != nil {
		return fmt.Errorf("save device token of %s: %w", uid, err)
	}
	return nil
}
