package api

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// EventNavigationUpdate is the SSE event name for committed path
// adjustments.
const EventNavigationUpdate = "navigation-update"

// EventSessionClosed is the SSE event name for session removal.
const EventSessionClosed = "session-closed"

// sendBuffer is the per-subscriber channel depth. Slow consumers drop
// events rather than block the publisher.
const sendBuffer = 64

// Event is one server-sent event.
type Event struct {
	Name string
	Data []byte
}

// Client is one SSE subscriber for a session's event stream.
type Client struct {
	SessionID string
	Send      chan Event
}

// Hub fans navigation events out to per-session SSE subscribers.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients: map[string]map[*Client]struct{}{},
		log:     log,
	}
}

// Register adds a subscriber for the session's events.
func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan Event, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

// Unregister removes the subscriber and closes its channel. Safe to call
// after DropSession already removed it.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessionClients, ok := h.clients[client.SessionID]
	if !ok {
		return
	}
	if _, member := sessionClients[client]; !member {
		return
	}
	delete(sessionClients, client)
	if len(sessionClients) == 0 {
		delete(h.clients, client.SessionID)
	}
	close(client.Send)
}

// Broadcast delivers an event to every subscriber of the session. Events
// to subscribers with a full buffer are dropped. The lock is held across
// the sends so channels cannot be closed mid-iteration.
func (h *Hub) Broadcast(sessionID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[sessionID] {
		select {
		case client.Send <- event:
		default:
		}
	}
}

// Publish marshals the payload and broadcasts it under the event name.
func (h *Hub) Publish(sessionID, name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Warn("stream payload marshal failed",
			"session_id", sessionID, "event", name, "error", err)
		return
	}
	h.Broadcast(sessionID, Event{Name: name, Data: data})
}

// DropSession disconnects every subscriber of a removed session after a
// final session-closed event.
func (h *Hub) DropSession(sessionID string) {
	h.Broadcast(sessionID, Event{Name: EventSessionClosed, Data: []byte(`{}`)})

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[sessionID] {
		close(client.Send)
	}
	delete(h.clients, sessionID)
}

// SubscriberCount returns the number of subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}
