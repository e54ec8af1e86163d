package cache

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration) (*TTLCache[string, int], *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string, int](ttl, time.Hour)
	c.now = clk.now
	t.Cleanup(c.Close)
	return c, clk
}

func TestGetSetExpire(t *testing.T) {
	c, clk := newTestCache(t, 30*time.Second)

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	clk.advance(31 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d before sweep, want 1", c.Len())
	}

	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", c.Len())
	}
}

func TestDeleteAndDeleteFunc(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	c.Set("conv:1", 1)
	c.Set("conv:2", 2)
	c.Set("user:1", 3)

	c.Delete("conv:1")
	if _, ok := c.Get("conv:1"); ok {
		t.Error("deleted key still present")
	}

	c.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, "conv:") })
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if _, ok := c.Get("user:1"); !ok {
		t.Error("unrelated key removed")
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := New[int, int](time.Second, time.Second)
	c.Close()
	c.Close()
}
