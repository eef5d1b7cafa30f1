package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRU_GetSet(t *testing.T) {
	c := New[string, int](2, time.Minute)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 2, 0)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2, time.Minute)
	c.Set("a", 1, 0)
	c.Set("b", 2, 0)
	c.Get("a")
	c.Set("c", 3, 0)

	_, ok := c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, string](10, time.Minute).WithClock(func() time.Time { return now })

	c.Set("short", "x", time.Second)
	c.Set("default", "y", 0)

	now = now.Add(2 * time.Second)
	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("default")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("default")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLRU_SetDropsExpiredTail(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, int](10, time.Minute).WithClock(func() time.Time { return now })

	c.Set("old", 1, 0)
	now = now.Add(30 * time.Second)
	c.Set("recent", 2, 0)

	now = now.Add(45 * time.Second)
	c.Set("new", 3, 0)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("recent")
	assert.True(t, ok)
}

func TestLRU_Delete(t *testing.T) {
	c := New[int, string](0, 0)
	c.Set(1, "one", 0)
	c.Delete(1)
	c.Delete(2)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestLRU_Concurrent(t *testing.T) {
	c := New[int, int](50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c.Set(base*1000+j, j, 0)
				c.Get(base*1000 + j/2)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 50)
}
