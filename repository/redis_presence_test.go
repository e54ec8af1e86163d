package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestRedisPresenceCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	c, err := ConnectRedisPresence(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, "parley-test-"+uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = c.cli.Del(ctx, c.key(presenceOnlineKey), c.key(presenceLastSeenKey)).Err()
		_ = c.Close()
	})

	if err := c.SetOnline(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetOnline(ctx, "u2"); err != nil {
		t.Fatal(err)
	}
	seen := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := c.SetOffline(ctx, "u2", seen); err != nil {
		t.Fatal(err)
	}

	online, err := c.OnlineUserIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"u1"}, online); diff != "" {
		t.Errorf("online mismatch (-want +got):\n%s", diff)
	}

	got, ok, err := c.LastSeen(ctx, "u2")
	if err != nil || !ok || !got.Equal(seen) {
		t.Errorf("LastSeen(u2) = %v, %v, %v; want %v", got, ok, err, seen)
	}
	if _, ok, _ := c.LastSeen(ctx, "u3"); ok {
		t.Error("LastSeen(u3) should be absent")
	}

	if err := c.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if online, _ := c.OnlineUserIDs(ctx); len(online) != 0 {
		t.Errorf("online after Reset = %v", online)
	}
}
