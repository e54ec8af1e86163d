package services

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/akinalp/parley/database"
	"github.com/akinalp/parley/models"
	"github.com/akinalp/parley/pkg/metrics"
	"github.com/akinalp/parley/repository"
	"github.com/akinalp/parley/ws"
)

// sent is one recorded Broadcaster call.
type sent struct {
	scope  string // "all", "users" or "room"
	target string // room id for "room"
	users  []string
	except string
	event  ws.Event
}

// fakeHub records fan-out instead of writing to sockets.
type fakeHub struct {
	mu     sync.Mutex
	sent   []sent
	joins  map[string][]string
	online map[string]bool
}

func newFakeHub() *fakeHub {
	return &fakeHub{joins: make(map[string][]string), online: make(map[string]bool)}
}

func (h *fakeHub) record(s sent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, s)
}

func (h *fakeHub) BroadcastToAll(event ws.Event) { h.record(sent{scope: "all", event: event}) }

func (h *fakeHub) BroadcastToUser(userID string, event ws.Event) {
	h.BroadcastToUsers([]string{userID}, event)
}

func (h *fakeHub) BroadcastToUsers(userIDs []string, event ws.Event) {
	h.record(sent{scope: "users", users: slices.Clone(userIDs), event: event})
}

func (h *fakeHub) BroadcastToRoom(conversationID string, event ws.Event, exceptConnID string) {
	h.record(sent{scope: "room", target: conversationID, except: exceptConnID, event: event})
}

func (h *fakeHub) JoinRoom(conversationID string, userIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joins[conversationID] = slices.Clone(userIDs)
}

func (h *fakeHub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[userID]
}

func (h *fakeHub) OnlineUserIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var ids []string
	for id, ok := range h.online {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (h *fakeHub) ConnectionCount() int { return len(h.OnlineUserIDs()) }

func (h *fakeHub) setOnline(userID string, online bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.online[userID] = online
}

// ops returns the recorded events with the given op, in dispatch order.
func (h *fakeHub) ops(op string) []sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sent
	for _, s := range h.sent {
		if s.event.Op == op {
			out = append(out, s)
		}
	}
	return out
}

type fixture struct {
	users     repository.UserRepository
	convs     repository.ConversationRepository
	msgs      repository.MessageRepository
	reactions repository.ReactionRepository
	reads     repository.ReadStateRepository
	hub       *fakeHub
	metrics   *metrics.Metrics
	locks     *ConversationLocks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "svc.db"), database.Migrations(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &fixture{
		users:     repository.NewSQLiteUserRepo(db.Conn),
		convs:     repository.NewSQLiteConversationRepo(db.Conn),
		msgs:      repository.NewSQLiteMessageRepo(db.Conn),
		reactions: repository.NewSQLiteReactionRepo(db.Conn),
		reads:     repository.NewSQLiteReadStateRepo(db.Conn),
		hub:       newFakeHub(),
		metrics:   metrics.New(),
		locks:     NewConversationLocks(8),
	}
}

func (f *fixture) conversationService(t *testing.T) ConversationService {
	return NewConversationService(f.convs, f.reads, f.hub, f.locks, zaptest.NewLogger(t))
}

func (f *fixture) messageService(t *testing.T) MessageService {
	return NewMessageService(f.msgs, f.convs, f.reactions, f.hub, f.locks, f.metrics, zaptest.NewLogger(t))
}

// user inserts a user directly, skipping bcrypt.
func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           name + "-id",
		Username:     name,
		PasswordHash: "x",
		Avatar:       models.AvatarGlyph(name),
		Status:       models.UserStatusOffline,
		Settings:     models.DefaultSettings(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (f *fixture) private(t *testing.T, a, b string) *models.Conversation {
	t.Helper()
	conv, _, err := f.conversationService(t).Create(context.Background(), a,
		&models.CreateConversationRequest{Participants: []string{b}})
	if err != nil {
		t.Fatal(err)
	}
	return conv
}

// tickingClock returns strictly increasing times, one millisecond apart.
func tickingClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}
