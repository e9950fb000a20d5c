package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newCache(true, func() time.Time { return now })

	etag := c.Set("k", []byte(`{"a":1}`), time.Minute)
	data, got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, etag, got)
	assert.JSONEq(t, `{"a":1}`, string(data))

	now = now.Add(2 * time.Minute)
	_, _, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, Stats{Enabled: true, TotalKeys: 1, ExpiredKeys: 1}, c.Stats())

	c.evict()
	assert.Equal(t, 0, c.Stats().TotalKeys)
}

func TestDisabledCacheStoresNothing(t *testing.T) {
	c := newCache(false, time.Now)
	etag := c.Set("k", []byte("x"), time.Minute)
	assert.Equal(t, ComputeETag([]byte("x")), etag)
	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := newCache(true, time.Now)
	c.Set("k", []byte("x"), time.Minute)
	c.Delete("k")
	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("body"))
	assert.True(t, CheckETagMatch(etag, etag))
	assert.True(t, CheckETagMatch("*", etag))
	assert.False(t, CheckETagMatch("", etag))
	assert.False(t, CheckETagMatch(`W/"other"`, etag))
}
