package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/famhub/internal/metrics"
)

// Hub fans row changes out to the clients subscribed to each topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[Topic]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[Topic]map[*Client]struct{}),
		logger:  logger.With("component", "hub"),
	}
}

// Register adds a client to its topic.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.topic] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	metrics.Subscribers.Inc()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.removeLocked(c)
	h.mu.Unlock()

	if removed {
		metrics.Subscribers.Dec()
	}
}

func (h *Hub) removeLocked(c *Client) bool {
	set, ok := h.clients[c.topic]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.topic)
	}
	close(c.send)
	return true
}

// Broadcast sends a message to every client subscribed to its topic, skipping
// clients scoped to a profile other than the message owner. A client whose
// buffer is full is disconnected instead of silently missing the event, so it
// reconnects and re-fetches.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}
	metrics.Broadcasts.WithLabelValues(msg.Table, string(msg.EventType)).Inc()

	topic := msg.Topic()
	var slow []*Client

	h.mu.RLock()
	for c := range h.clients[topic] {
		if !c.receives(msg) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		metrics.DroppedMessages.Inc()
		h.logger.Warn("dropping slow subscriber", "table", topic.Table, "family_id", topic.FamilyID)
		h.Unregister(c)
	}
}

// Publish encodes record and broadcasts it on (table, familyID).
func (h *Hub) Publish(table, familyID string, event EventType, record any) {
	h.PublishOwned(table, familyID, "", event, record)
}

// PublishOwned is Publish for a row that belongs to profile owner.
func (h *Hub) PublishOwned(table, familyID, owner string, event EventType, record any) {
	msg, err := NewMessage(table, familyID, event, record)
	if err != nil {
		h.logger.Error("encode broadcast", "table", table, "error", err)
		return
	}
	msg.Owner = owner
	h.Broadcast(msg)
}

// DisconnectAll drops every client. Peers reconnect and re-fetch, which is
// what a restart needs.
func (h *Hub) DisconnectAll() {
	h.mu.Lock()
	n := 0
	for topic, set := range h.clients {
		for c := range set {
			close(c.send)
			n++
		}
		delete(h.clients, topic)
	}
	h.mu.Unlock()

	metrics.Subscribers.Sub(float64(n))
}

// ClientCount returns the number of connected clients across all topics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// TopicCount returns the number of clients subscribed to one topic.
func (h *Hub) TopicCount(t Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[t])
}
