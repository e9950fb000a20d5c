package docstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetGetSubtree(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "event_start_date/2024-05-01/e1", map[string]any{
		"startTimeStamp": 1000,
		"endTimeStamp":   2000,
	}))
	require.NoError(t, m.Set(ctx, "event_start_date/2024-05-01/e2", map[string]any{
		"startTimeStamp": 1500.5,
		"endTimeStamp":   2500,
	}))

	raw, err := m.Get(ctx, "event_start_date/2024-05-01")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"e1": {"startTimeStamp": 1000, "endTimeStamp": 2000},
		"e2": {"startTimeStamp": 1500.5, "endTimeStamp": 2500}
	}`, string(raw))

	raw, err = m.Get(ctx, "/event_start_date/2024-05-01/e1/endTimeStamp/")
	require.NoError(t, err)
	assert.Equal(t, "2000", string(raw))
}

func TestMemoryGetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "device_token/u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySetReplacesSubtreeAndAncestors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "users/u1", map[string]any{"eventPreferences": "Food", "bio": "hi"}))
	require.NoError(t, m.Set(ctx, "users/u1", map[string]any{"eventPreferences": "Arts"}))

	raw, err := m.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventPreferences": "Arts"}`, string(raw))

	// A scalar parent is replaced when a child is written beneath it.
	require.NoError(t, m.Set(ctx, "device_token", "oops"))
	require.NoError(t, m.Set(ctx, "device_token/u1", "tok-1"))
	raw, err = m.Get(ctx, "device_token")
	require.NoError(t, err)
	assert.JSONEq(t, `{"u1": "tok-1"}`, string(raw))
}

func TestMemoryDeleteAndNilSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "a/b/c", 1))
	require.NoError(t, m.Set(ctx, "a/d", 2))
	require.NoError(t, m.Delete(ctx, "a/b"))

	raw, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"d": 2}`, string(raw))

	require.NoError(t, m.Set(ctx, "a/d", nil))
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateIsMultiPath(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "x/old", true))

	require.NoError(t, m.Update(ctx, map[string]any{
		"x/old":    nil,
		"x/new":    "v",
		"y/nested": map[string]any{"k": []any{"p", "q"}},
	}))

	raw, err := m.Get(ctx, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x": {"new": "v"}, "y": {"nested": {"k": {"0": "p", "1": "q"}}}}`, string(raw))
}

func TestMemoryRejectsBadPaths(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	assert.Error(t, m.Set(ctx, "a//b", 1))
	assert.Error(t, m.Set(ctx, "a/b.c", 1))
	assert.Error(t, m.Set(ctx, "/", 1))
	assert.Error(t, m.Update(ctx, nil))
}

func TestGetInto(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "events/e1", map[string]any{"title": "Jazz Night"}))

	var ev struct {
		Title string `json:"title"`
	}
	require.NoError(t, GetInto(ctx, m, "events/e1", &ev))
	assert.Equal(t, "Jazz Night", ev.Title)

	var missing json.RawMessage
	assert.ErrorIs(t, GetInto(ctx, m, "events/e2", &missing), ErrNotFound)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "event_start_date/2024-05-01/e1", Join("event_start_date", "/2024-05-01/", "e1"))
	assert.Equal(t, "users", Join("", "users", ""))
}
