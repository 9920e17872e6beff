package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/puzzle-leaderboard/internal/domain"
)

// Message types
const (
	MessageTypeStandingsUpdate = "standings_update"
	MessageTypeSubscribe       = "subscribe"
	MessageTypeUnsubscribe     = "unsubscribe"
	MessageTypeSubscribed      = "subscribed"
	MessageTypeUnsubscribed    = "unsubscribed"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
	MessageTypeError           = "error"
)

// Message is the envelope of every server-to-client frame
type Message struct {
	Type      string        `json:"type"`
	Period    domain.Period `json:"period,omitempty"`
	Data      any           `json:"data,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// StandingsUpdate carries a full leaderboard for one period
type StandingsUpdate struct {
	Period    domain.Period           `json:"period"`
	Players   int                     `json:"players"`
	Standings []domain.PlayerStanding `json:"standings"`
}

// SnapshotFunc loads the current standings sent to a client when it subscribes
type SnapshotFunc func(ctx context.Context, period domain.Period) ([]domain.PlayerStanding, error)

// Stats describes the live connections of a hub
type Stats struct {
	Connections int                   `json:"connections"`
	Subscribers map[domain.Period]int `json:"subscribers"`
}

type outbound struct {
	period domain.Period
	data   []byte
}

// Hub tracks connected clients and fans standings out to the subscribers
// of each period.
type Hub struct {
	clients     map[*Client]struct{}
	subscribers map[domain.Period]map[*Client]struct{}
	mu          sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	snapshot SnapshotFunc
	logger   *slog.Logger
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		subscribers: make(map[domain.Period]map[*Client]struct{}),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan outbound, 64),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

// SetSnapshotSource makes new subscribers receive the current standings
// right away instead of waiting for the next change.
func (h *Hub) SetSnapshotSource(fn SnapshotFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Run serves register, unregister and broadcast requests until ctx is done
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("client unregistered", "client_id", client.id)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for period, subs := range h.subscribers {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, period)
		}
	}
	close(client.send)
}

// closeAll drops every connection. The pumps exit on their own and their
// unregister calls return once done is closed.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if client.conn != nil {
			client.conn.Close()
		}
	}
	clear(h.clients)
	clear(h.subscribers)
}

func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.subscribers[msg.period] {
		select {
		case client.send <- msg.data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastStandings queues a standings update for the period's subscribers.
// It never blocks; updates are dropped when the queue is full.
func (h *Hub) BroadcastStandings(period domain.Period, standings []domain.PlayerStanding) {
	data, err := encodeStandings(period, standings)
	if err != nil {
		h.logger.Error("failed to marshal standings update", "period", period, "error", err)
		return
	}

	select {
	case h.broadcast <- outbound{period: period, data: data}:
	default:
		h.logger.Warn("broadcast queue full, dropping standings update", "period", period)
	}
}

func encodeStandings(period domain.Period, standings []domain.PlayerStanding) ([]byte, error) {
	return json.Marshal(Message{
		Type:   MessageTypeStandingsUpdate,
		Period: period,
		Data: StandingsUpdate{
			Period:    period,
			Players:   len(standings),
			Standings: standings,
		},
		Timestamp: time.Now().UTC(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client and all of its subscriptions
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe adds a client to a period's subscribers
func (h *Hub) Subscribe(client *Client, period domain.Period) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[period]
	if !ok {
		subs = make(map[*Client]struct{})
		h.subscribers[period] = subs
	}
	subs[client] = struct{}{}
	h.logger.Debug("client subscribed", "client_id", client.id, "period", period)
}

// Unsubscribe removes a client from a period's subscribers
func (h *Hub) Unsubscribe(client *Client, period domain.Period) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[period]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscribers, period)
		}
	}
	h.logger.Debug("client unsubscribed", "client_id", client.id, "period", period)
}

// Stats returns the number of connections and subscribers per period
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats := Stats{
		Connections: len(h.clients),
		Subscribers: make(map[domain.Period]int, len(domain.Periods)),
	}
	for _, p := range domain.Periods {
		stats.Subscribers[p] = len(h.subscribers[p])
	}
	return stats
}

func (h *Hub) snapshotSource() SnapshotFunc {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}
