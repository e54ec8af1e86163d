package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/akinalp/parley/pkg/metrics"
)

// Broadcaster is what services use to fan out committed events. Every method
// delivers at most once to each connection live at call time and never
// blocks on a slow connection.
type Broadcaster interface {
	BroadcastToAll(event Event)
	BroadcastToUser(userID string, event Event)
	BroadcastToUsers(userIDs []string, event Event)
	// BroadcastToRoom delivers to every connection subscribed to the
	// conversation, skipping the connection with id exceptConnID if set.
	BroadcastToRoom(conversationID string, event Event, exceptConnID string)
	// JoinRoom subscribes every live connection of userIDs to the room.
	JoinRoom(conversationID string, userIDs []string)
	IsOnline(userID string) bool
	OnlineUserIDs() []string
}

// TransitionKind is a presence change observed by the hub.
type TransitionKind int

const (
	// TransitionOnline: the user's first connection registered.
	TransitionOnline TransitionKind = iota
	// TransitionOffline: the user's last connection went away.
	TransitionOffline
	// TransitionStatus: a client asked for a manual status.
	TransitionStatus
)

// Transition is delivered to the presence callback, one at a time and in the
// order the hub observed them.
type Transition struct {
	Kind   TransitionKind
	UserID string
	Status string
}

const transitionBuffer = 1024

// Hub tracks live connections per user and per conversation room.
//
// Register and unregister are serialized through Run. Presence transitions
// derived from them are queued to a single worker goroutine so that
// online/offline handling for one user never runs concurrently or out of
// order.
type Hub struct {
	// clients: userID → set of connections (tabs, devices).
	clients map[string]map[*Client]bool
	// rooms: conversationID → set of subscribed connections.
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client

	transitions chan Transition
	tmu         sync.Mutex
	tclosed     bool
	done        chan struct{}
	stopped     chan struct{}
	workerDone  chan struct{}
	stopOnce    sync.Once

	seq atomic.Int64

	onTransition func(Transition)
	onTyping     func(from Sender, data TypingData)

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewHub, constructor.
func NewHub(log *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		transitions: make(chan Transition, transitionBuffer),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		workerDone:  make(chan struct{}),
		log:         log,
		metrics:     m,
	}
}

// OnTransition sets the presence callback. Must be called before Run.
func (h *Hub) OnTransition(fn func(Transition)) { h.onTransition = fn }

// OnTyping sets the typing callback, invoked on the sender's read goroutine.
// Must be called before Run.
func (h *Hub) OnTyping(fn func(from Sender, data TypingData)) { h.onTyping = fn }

// Run is the hub loop; start it with `go hub.Run()`. It returns after
// Shutdown.
func (h *Hub) Run() {
	go h.runTransitions()
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.done:
			h.closeAll()
			h.tmu.Lock()
			h.tclosed = true
			close(h.transitions)
			h.tmu.Unlock()
			return
		}
	}
}

// Register hands a new connection to the hub loop. It returns false if the
// hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a connection. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribe adds c to the given rooms.
func (h *Hub) Subscribe(c *Client, conversationIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	for _, id := range conversationIDs {
		h.joinLocked(c, id)
	}
}

func (h *Hub) joinLocked(c *Client, conversationID string) {
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[conversationID] = room
	}
	room[c] = true
	c.rooms[conversationID] = true
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[c.userID] = set
	}
	set[c] = true
	first := len(set) == 1
	users := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionsOpened.Inc()
	h.metrics.LiveConnections.Inc()
	h.metrics.OnlineUsers.Set(float64(users))

	h.log.Debug("client connected",
		zap.String("user_id", c.userID),
		zap.String("conn_id", c.id),
		zap.Int("user_connections", len(set)))

	if first {
		h.enqueue(Transition{Kind: TransitionOnline, UserID: c.userID})
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok || !set[c] {
		h.mu.Unlock()
		return
	}

	delete(set, c)
	for id := range c.rooms {
		if room, ok := h.rooms[id]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, id)
			}
		}
	}
	c.closed = true
	close(c.send)

	last := len(set) == 0
	if last {
		delete(h.clients, c.userID)
	}
	users := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionsClosed.Inc()
	h.metrics.LiveConnections.Dec()
	h.metrics.OnlineUsers.Set(float64(users))

	h.log.Debug("client disconnected",
		zap.String("user_id", c.userID),
		zap.String("conn_id", c.id),
		zap.Bool("last", last))

	if last {
		h.enqueue(Transition{Kind: TransitionOffline, UserID: c.userID})
	}
}

// closeAll closes every connection and queues an offline transition for each
// user so their stored presence is settled before exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	users := make([]string, 0, len(h.clients))
	n := 0
	for userID, set := range h.clients {
		for c := range set {
			c.closed = true
			close(c.send)
			n++
		}
		users = append(users, userID)
	}
	h.clients = make(map[string]map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	h.metrics.LiveConnections.Sub(float64(n))
	h.metrics.OnlineUsers.Set(0)

	for _, userID := range users {
		h.enqueue(Transition{Kind: TransitionOffline, UserID: userID})
	}
	h.log.Info("hub shut down", zap.Int("connections_closed", n))
}

func (h *Hub) runTransitions() {
	defer close(h.workerDone)
	for t := range h.transitions {
		if h.onTransition != nil {
			h.onTransition(t)
		}
	}
}

// enqueue hands t to the presence worker, dropping it once the hub has
// stopped.
func (h *Hub) enqueue(t Transition) {
	h.tmu.Lock()
	defer h.tmu.Unlock()
	if h.tclosed {
		return
	}
	h.transitions <- t
}

// requestStatus queues a manual status change behind any pending
// connect/disconnect transitions.
func (h *Hub) requestStatus(userID, status string) {
	h.enqueue(Transition{Kind: TransitionStatus, UserID: userID, Status: status})
}

// Shutdown closes every connection, waits for the hub loop to exit and for
// queued presence transitions to be handled.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
	<-h.workerDone
}

// ─── Fan-out ───

func (h *Hub) encode(event *Event) []byte {
	event.Seq = h.seq.Add(1)
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", zap.String("op", event.Op), zap.Error(err))
		return nil
	}
	return data
}

// deliver queues data on c without blocking. A full buffer means the client
// is not keeping up; it is dropped and will catch up over REST.
// Caller holds h.mu (read).
func (h *Hub) deliver(c *Client, op string, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
		h.metrics.EventsDispatched.WithLabelValues(op).Inc()
	default:
		h.metrics.SendsDropped.Inc()
		h.log.Warn("send buffer full, dropping connection",
			zap.String("user_id", c.userID), zap.String("conn_id", c.id))
		go h.Unregister(c)
	}
}

func (h *Hub) BroadcastToAll(event Event) {
	data := h.encode(&event)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.clients {
		for c := range set {
			h.deliver(c, event.Op, data)
		}
	}
}

func (h *Hub) BroadcastToUser(userID string, event Event) {
	h.BroadcastToUsers([]string{userID}, event)
}

func (h *Hub) BroadcastToUsers(userIDs []string, event Event) {
	data := h.encode(&event)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for c := range h.clients[id] {
			h.deliver(c, event.Op, data)
		}
	}
}

func (h *Hub) BroadcastToRoom(conversationID string, event Event, exceptConnID string) {
	data := h.encode(&event)
	if data == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[conversationID] {
		if exceptConnID != "" && c.id == exceptConnID {
			continue
		}
		h.deliver(c, event.Op, data)
	}
}

func (h *Hub) JoinRoom(conversationID string, userIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range userIDs {
		for c := range h.clients[id] {
			h.joinLocked(c, conversationID)
		}
	}
}

func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		ids = append(ids, userID)
	}
	return ids
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
