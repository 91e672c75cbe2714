// Package gateway fans outbound events out to live websocket connections.
// Delivery is at-most-once and best-effort: a gone or saturated recipient is
// skipped without affecting the others.
package gateway

import (
	"encoding/json"
	"log"
	"sync"
)

// Gateway is the outbound side the event router emits through.
type Gateway interface {
	// SendTo delivers one event to a single connection. No-op when the
	// connection is gone.
	SendTo(connID, event string, payload any)
	// BroadcastAll attempts delivery to every live connection. Failure for one
	// recipient never blocks or fails the rest.
	BroadcastAll(event string, payload any)
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub tracks the send channel of every live connection, keyed by connection
// id. The transport registers a channel at upgrade time and unregisters it
// when the connection dies; its writer goroutine drains the channel.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]chan []byte
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]chan []byte)}
}

// Register adds a connection's send channel. Nobody may ever close the
// channel: deliveries run against a snapshot taken under the lock and may
// land after Unregister, so a closed channel would panic the event loop.
// The transport stops its writer through a separate signal instead.
func (h *Hub) Register(connID string, send chan []byte) {
	h.mu.Lock()
	h.conns[connID] = send
	h.mu.Unlock()
}

// Unregister forgets a connection. Subsequent sends to it are dropped.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}

// ConnCount reports the number of live connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) SendTo(connID, event string, payload any) {
	msg, err := json.Marshal(envelope{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	send, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	deliver(connID, event, send, msg)
}

func (h *Hub) BroadcastAll(event string, payload any) {
	msg, err := json.Marshal(envelope{Type: event, Payload: payload})
	if err != nil {
		log.Printf("marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	targets := make(map[string]chan []byte, len(h.conns))
	for id, send := range h.conns {
		targets[id] = send
	}
	h.mu.RUnlock()

	for id, send := range targets {
		deliver(id, event, send, msg)
	}
}

// deliver never blocks: a connection whose buffer is full loses this message
// rather than stalling the event loop.
func deliver(connID, event string, send chan []byte, msg []byte) {
	select {
	case send <- msg:
	default:
		log.Printf("dropping %s for %s: send buffer full", event, connID)
	}
}
