package users

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/direct-dispatch/internal/cache"
	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	require.NoError(t, docs.Set(ctx, "users/u1/eventPreferences", "Music, Food"))
	require.NoError(t, docs.Set(ctx, "users/u2/eventPreferences", []string{"Arts", " Sports "}))
	require.NoError(t, docs.Set(ctx, "users/u3/name", "no prefs"))

	d := NewDirectory(docs, nil, 0, discard)

	prefs, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Music"}, prefs.Sorted())

	prefs, err = d.Preferences(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Arts", "Sports"}, prefs.Sorted())

	for _, uid := range []string{"u3", "nobody"} {
		prefs, err = d.Preferences(ctx, uid)
		require.NoError(t, err)
		assert.Empty(t, prefs, uid)
		assert.NotNil(t, prefs, uid)
	}
}

func TestPreferencesAreCached(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	require.NoError(t, docs.Set(ctx, "users/u1/eventPreferences", "Music"))

	d := NewDirectory(docs, cache.New(true), time.Minute, discard)
	_, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, docs.Set(ctx, "users/u1/eventPreferences", "Food"))
	prefs, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, prefs.Has("Music"), "served from cache")

	require.NoError(t, d.SetPreferences(ctx, "u1", event.NewCategorySet("Arts")))
	prefs, err = d.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Arts"}, prefs.Sorted())
}

func TestDeviceToken(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory(docstore.NewMemory(), nil, 0, discard)

	_, ok, err := d.DeviceToken(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.SetDeviceToken(ctx, "u1", "tok-1"))
	tok, ok, err := d.DeviceToken(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	require.NoError(t, d.SetDeviceToken(ctx, "u1", ""))
	_, ok, err = d.DeviceToken(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMalformedRecordsReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	require.NoError(t, docs.Set(ctx, "users/u1/eventPreferences", 42))
	require.NoError(t, docs.Set(ctx, "device_token/u1", map[string]any{"ios": "tok-1"}))
	require.NoError(t, docs.Set(ctx, "device_token/u2", 7))

	d := NewDirectory(docs, cache.New(true), time.Minute, discard)

	prefs, err := d.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, prefs)
	assert.NotNil(t, prefs)

	for _, uid := range []string{"u1", "u2"} {
		tok, ok, err := d.DeviceToken(ctx, uid)
		require.NoError(t, err, uid)
		assert.False(t, ok, uid)
		assert.Empty(t, tok, uid)
	}
}
