// Package realtime pushes live checklist changes to browsers watching an event.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains event_id -> set of connections and broadcasts messages.
// With Redis configured, broadcasts go through pub/sub so every instance delivers them once.
type Hub struct {
	// eventID -> map[clientID]*Client
	events   map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per event
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEventMessage(eventID uuid.UUID, msgType string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(msgType string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		events:   make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an event room. Starts the Redis subscription for the event if none is
// active; a failed subscribe is retried by the next client that joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.events[c.EventID] == nil {
		h.events[c.EventID] = make(map[string]*Client)
	}
	if h.redisSub != nil && h.subs[c.EventID] == nil {
		eventID := c.EventID
		cancel, err := h.redisSub.SubscribeEvent(eventID, func(msgType string, payload []byte) {
			h.BroadcastToEvent(eventID, msgType, json.RawMessage(payload))
		})
		if err == nil {
			h.subs[eventID] = cancel
		} else {
			h.logger.Warn("redis subscribe failed, delivering locally", zap.Error(err), zap.String("event_id", eventID.String()))
		}
	}
	h.events[c.EventID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined event feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client from an event room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.events[c.EventID]; ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.events, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left event feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// BroadcastToEvent sends a message to all clients of an event on this instance.
func (h *Hub) BroadcastToEvent(eventID uuid.UUID, msgType string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal broadcast payload failed", zap.Error(err), zap.String("type", msgType))
			return
		}
	}
	msg := WSMessage{Event: msgType, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.events[eventID] {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToEventAndPublish delivers a message to every watcher of the event across instances.
// With Redis it publishes and the subscription of each instance does the local delivery. Watchers
// on this instance without a live subscription get the message directly.
func (h *Hub) BroadcastToEventAndPublish(eventID uuid.UUID, msgType string, payload interface{}) {
	if h.redis == nil {
		h.BroadcastToEvent(eventID, msgType, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal broadcast payload failed", zap.Error(err), zap.String("type", msgType))
		return
	}
	if err := h.redis.PublishEventMessage(eventID, msgType, data); err != nil {
		h.logger.Warn("redis publish failed, delivering locally", zap.Error(err), zap.String("event_id", eventID.String()))
		h.BroadcastToEvent(eventID, msgType, json.RawMessage(data))
		return
	}
	if !h.subscribed(eventID) {
		h.BroadcastToEvent(eventID, msgType, json.RawMessage(data))
	}
}

func (h *Hub) subscribed(eventID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[eventID] != nil
}

// WatcherCount returns the number of connected clients for an event on this instance.
func (h *Hub) WatcherCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events[eventID])
}
