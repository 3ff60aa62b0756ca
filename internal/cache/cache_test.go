package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	c, err := New(16)
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }
	return c, &now
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)

	c.Put("k", "v", time.Minute)
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestExpiredBehavesLikeNeverInserted(t *testing.T) {
	c, now := newTestCache(t)

	c.Put("k", "v", time.Minute)
	*now = now.Add(time.Minute)

	got, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, "", got)

	// Same shape as a key that never existed.
	got2, ok2 := c.Get("missing")
	assert.Equal(t, ok, ok2)
	assert.Equal(t, got, got2)
}

func TestPutOverwritesUnconditionally(t *testing.T) {
	c, _ := newTestCache(t)

	c.Put("k", "old", time.Minute)
	c.Put("k", "new", time.Minute)

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, now := newTestCache(t)

	c.Put("k", "v", 0)
	*now = now.Add(240 * time.Hour)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New(64)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			c.Put("k", "w1", time.Minute)
		}
		done <- struct{}{}
	}()
	go func() {
		for i := 0; i < 1000; i++ {
			c.Put("k", "w2", time.Minute)
		}
		done <- struct{}{}
	}()
	for i := 0; i < 1000; i++ {
		if v, ok := c.Get("k"); ok {
			assert.Contains(t, []string{"w1", "w2"}, v)
		}
	}
	<-done
	<-done
}
