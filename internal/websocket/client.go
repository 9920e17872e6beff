package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/puzzle-leaderboard/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	snapshotTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// ClientMessage is a request sent by a client
type ClientMessage struct {
	Type   string `json:"type"`
	Period string `json:"period,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 32),
		logger: logger.With("client_id", id),
	}
}

// readPump handles client requests until the connection drops
func (c *Client) readPump(initial []domain.Period) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for _, p := range initial {
		c.subscribe(p)
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.sendMessage(Message{Type: MessageTypeError, Data: map[string]string{"error": "invalid message format"}})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		period, err := domain.ParsePeriod(msg.Period)
		if err != nil {
			c.sendMessage(Message{Type: MessageTypeError, Data: map[string]string{"error": "unknown period"}})
			return
		}
		if msg.Type == MessageTypeSubscribe {
			c.subscribe(period)
			return
		}
		c.hub.Unsubscribe(c, period)
		c.sendMessage(Message{Type: MessageTypeUnsubscribed, Period: period})

	case MessageTypePing:
		c.sendMessage(Message{Type: MessageTypePong})

	default:
		c.logger.Debug("unknown message type", "type", msg.Type)
	}
}

// subscribe acknowledges the subscription and, when the hub has a snapshot
// source, follows up with the current standings.
func (c *Client) subscribe(period domain.Period) {
	c.hub.Subscribe(c, period)
	c.sendMessage(Message{Type: MessageTypeSubscribed, Period: period})

	snapshot := c.hub.snapshotSource()
	if snapshot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	standings, err := snapshot(ctx, period)
	if err != nil {
		c.logger.Warn("failed to load standings snapshot", "period", period, "error", err)
		return
	}
	data, err := encodeStandings(period, standings)
	if err != nil {
		c.logger.Error("failed to marshal standings snapshot", "error", err)
		return
	}
	c.enqueue(data)
}

// writePump writes queued frames and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMessage(msg Message) {
	msg.Timestamp = time.Now().UTC()
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue drops the frame when the client is not keeping up
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client buffer full, dropping message")
	}
}

// ServeWs upgrades the request and subscribes the client to the periods
// named in the "period" query parameter.
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	var initial []domain.Period
	for _, raw := range r.URL.Query()["period"] {
		period, err := domain.ParsePeriod(raw)
		if err != nil {
			http.Error(w, "unknown period", http.StatusBadRequest)
			return
		}
		initial = append(initial, period)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(hub, conn, logger)
	hub.Register(client)

	go client.writePump()
	go client.readPump(initial)

	client.logger.Debug("new websocket connection", "periods", initial)
}
