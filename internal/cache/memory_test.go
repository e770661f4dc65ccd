package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, 0)
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, c.Size())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(time.Millisecond, 0)
	defer c.Close()

	c.Set("a", "x")
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entries are not returned")
	assert.Equal(t, 1, c.Size())

	c.Sweep()
	assert.Equal(t, 0, c.Size())
}

func TestCloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Millisecond)
	c.Close()
	c.Close()
}

func TestArtCache(t *testing.T) {
	ac := NewArtCache()
	defer ac.Close()

	ac.SetArt("id", []byte{0xFF, 0xD8})
	data, ok := ac.GetArt("id")
	assert.True(t, ok)
	assert.Equal(t, []byte{0xFF, 0xD8}, data)

	ac.Set("wrong", 42)
	_, ok = ac.GetArt("wrong")
	assert.False(t, ok)
}
