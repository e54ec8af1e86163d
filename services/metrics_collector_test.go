package services

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func TestMetricsCollector(t *testing.T) {
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	conv := f.private(t, alice.ID, bob.ID)
	send(t, f.messageService(t), alice.ID, conv.ID, "hi")
	f.hub.setOnline(alice.ID, true)

	c := NewMetricsCollector(f.users, f.convs, f.msgs, f.hub, f.metrics, time.Hour, zaptest.NewLogger(t))

	stats, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Users != 2 || stats.Conversations != 1 || stats.Messages != 1 || stats.OnlineUsers != 1 {
		t.Errorf("stats = %+v", stats)
	}

	c.Start()
	c.Stop()
	c.Stop()

	for kind, want := range map[string]float64{"users": 2, "conversations": 1, "messages": 1} {
		if got := testutil.ToFloat64(f.metrics.StoredTotals.WithLabelValues(kind)); got != want {
			t.Errorf("stored %s = %v, want %v", kind, got, want)
		}
	}
}
