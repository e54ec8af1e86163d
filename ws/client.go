package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait: three missed 30s heartbeats and the connection is considered dead.
	pongWait = 90 * time.Second

	// pingPeriod keeps intermediaries from idling the socket out.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames; payloads go over REST.
	maxMessageSize = 4096

	// sendBufferSize is per connection. A full buffer drops the connection.
	sendBufferSize = 256
)

// Client is one live socket. A user may hold several.
//
// Each connection runs two goroutines: ReadPump handles inbound ops and
// WritePump drains send onto the socket, since gorilla/websocket allows one
// concurrent reader and one concurrent writer.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	userID   string
	username string
	send     chan []byte

	// rooms and closed are guarded by hub.mu.
	rooms  map[string]bool
	closed bool
}

func newClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	return &Client{
		id:       uuid.NewString(),
		hub:      hub,
		conn:     conn,
		userID:   userID,
		username: username,
		send:     make(chan []byte, sendBufferSize),
		rooms:    make(map[string]bool),
	}
}

// ID is the connection id, unique per socket.
func (c *Client) ID() string { return c.id }

// UserID is the authenticated user holding the socket.
func (c *Client) UserID() string { return c.userID }

// Username is the username from the socket's identity claims.
func (c *Client) Username() string { return c.username }

// ReadPump reads inbound frames until the socket fails, then unregisters.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.log.Warn("failed to set read deadline", zap.String("user_id", c.userID), zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Info("unexpected close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			c.hub.log.Debug("invalid frame", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}

		if event.Op == OpHeartbeat {
			if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
				return
			}
		}
		c.handleEvent(event)
	}
}

// inboundEvent keeps the payload raw so each op decodes its own shape.
type inboundEvent struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// handleEvent dispatches one inbound op. It has no socket dependency so the
// op handling can be exercised without a network connection.
func (c *Client) handleEvent(event inboundEvent) {
	switch event.Op {
	case OpHeartbeat:
		c.sendEvent(Event{Op: OpHeartbeatAck})

	case OpTyping:
		var data TypingData
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ConversationID == "" {
			return
		}
		if c.hub.onTyping != nil {
			c.hub.onTyping(Sender{ConnID: c.id, UserID: c.userID, Username: c.username}, data)
		}

	case OpSetStatus:
		var data SetStatusData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return
		}
		switch data.Status {
		case "online", "away":
			c.hub.requestStatus(c.userID, data.Status)
		default:
			c.hub.log.Debug("invalid status", zap.String("user_id", c.userID), zap.String("status", data.Status))
		}

	default:
		c.hub.log.Debug("unknown op", zap.String("user_id", c.userID), zap.String("op", event.Op))
	}
}

// sendEvent queues an event for this connection only.
func (c *Client) sendEvent(event Event) {
	data := c.hub.encode(&event)
	if data == nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	c.hub.deliver(c, event.Op, data)
}

// WritePump drains send onto the socket and pings periodically.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel.
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write is only called from WritePump, so writes never overlap.
func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}
