package services

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/ws"
)

func newPresence(t *testing.T, f *fixture) PresenceService {
	t.Helper()
	svc := NewPresenceService(f.users, f.convs, nil, f.hub, zaptest.NewLogger(t))
	t.Cleanup(svc.Close)
	return svc
}

func TestPresenceTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := newPresence(t, f)
	alice := f.user(t, "alice")

	status := func() *models.User {
		t.Helper()
		u, err := f.users.GetByID(ctx, alice.ID)
		if err != nil {
			t.Fatal(err)
		}
		return u
	}

	svc.HandleTransition(ws.Transition{Kind: ws.TransitionOnline, UserID: alice.ID})
	if u := status(); u.Status != models.UserStatusOnline {
		t.Errorf("status = %s, want online", u.Status)
	}

	f.hub.setOnline(alice.ID, true)
	svc.HandleTransition(ws.Transition{Kind: ws.TransitionStatus, UserID: alice.ID, Status: "away"})
	if u := status(); u.Status != models.UserStatusAway {
		t.Errorf("status = %s, want away", u.Status)
	}

	f.hub.setOnline(alice.ID, false)
	svc.HandleTransition(ws.Transition{Kind: ws.TransitionOffline, UserID: alice.ID})
	u := status()
	if u.Status != models.UserStatusOffline || u.LastSeen == nil {
		t.Errorf("after offline user = %+v", u)
	}

	// Stale: queued behind the last disconnect.
	svc.HandleTransition(ws.Transition{Kind: ws.TransitionStatus, UserID: alice.ID, Status: "online"})
	if u := status(); u.Status != models.UserStatusOffline {
		t.Errorf("stale status request applied: %s", u.Status)
	}

	events := f.hub.ops(ws.OpUserStatusChange)
	var got []string
	for _, e := range events {
		if e.scope != "all" {
			t.Errorf("status change scope = %s, want all", e.scope)
		}
		got = append(got, e.event.Data.(ws.StatusChangeData).Status)
	}
	want := []string{"online", "away", "offline"}
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statuses = %v, want %v", got, want)
			break
		}
	}
}

func TestTypingRelay(t *testing.T) {
	f := newFixture(t)
	svc := newPresence(t, f)
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	conv := f.private(t, alice.ID, bob.ID)

	svc.Typing(ws.Sender{ConnID: "c-1", UserID: alice.ID, Username: "alice"},
		ws.TypingData{ConversationID: conv.ID, IsTyping: true})
	svc.Typing(ws.Sender{ConnID: "c-2", UserID: carol.ID, Username: "carol"},
		ws.TypingData{ConversationID: conv.ID, IsTyping: true})
	svc.Typing(ws.Sender{ConnID: "c-1", UserID: alice.ID, Username: "alice"},
		ws.TypingData{ConversationID: "missing", IsTyping: true})

	events := f.hub.ops(ws.OpUserTyping)
	if len(events) != 1 {
		t.Fatalf("typing events = %d, want 1", len(events))
	}
	e := events[0]
	if e.target != conv.ID || e.except != "c-1" {
		t.Errorf("scope = %s except %s", e.target, e.except)
	}
	want := ws.UserTypingData{UserID: alice.ID, Username: "alice", ConversationID: conv.ID, IsTyping: true}
	if e.event.Data.(ws.UserTypingData) != want {
		t.Errorf("payload = %+v, want %+v", e.event.Data, want)
	}
}
