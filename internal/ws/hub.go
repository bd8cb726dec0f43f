// Package ws pushes committed session state and surfaced errors to
// connected clients. Clients subscribe to one session each; character
// updates fan out to everyone since characters are shared across sessions.
package ws

import (
	"encoding/json"
	"sync"

	"ensemble-chat/backend/internal/models"
	"ensemble-chat/backend/pkg/logger"
)

// Event types pushed to clients.
const (
	EventSessionUpdated   = "session_updated"
	EventCharacterUpdated = "character_updated"
	EventError            = "error"
)

// Event is the wire envelope for every push.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ErrorPayload carries a user-facing error for the dismissible banner.
type ErrorPayload struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Hub tracks connected clients and fans events out to them. It implements
// the orchestrator's Sink, so every committed cell value flows through
// Broadcast exactly once, in commit order.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	log        *logger.Logger

	mu      sync.Mutex
	clients map[*Client]bool
}

// envelope pairs a serialized event with its session scope. An empty
// sessionID means deliver to every client.
type envelope struct {
	sessionID string
	data      []byte
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
		log:        log,
		clients:    make(map[*Client]bool),
	}
}

// Run processes registration and broadcast events until the channel owner
// shuts down. Call it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("ws client registered", "session_id", client.sessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if env.sessionID != "" && client.sessionID != env.sessionID {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					// Slow consumer; drop it rather than stall commits.
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("ws client dropped, send buffer full", "session_id", client.sessionID)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) push(sessionID string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.LogError(err, "failed to encode ws event", "type", event.Type)
		return
	}
	h.broadcast <- envelope{sessionID: sessionID, data: data}
}

// SessionUpdated pushes a committed session snapshot to its subscribers.
func (h *Hub) SessionUpdated(session models.ChatSession) {
	h.push(session.ID, Event{Type: EventSessionUpdated, Payload: session})
}

// CharacterUpdated pushes a changed character to every client.
func (h *Hub) CharacterUpdated(character models.Character) {
	h.push("", Event{Type: EventCharacterUpdated, Payload: character})
}

// Error pushes a user-facing error message to a session's subscribers.
func (h *Hub) Error(sessionID, message string) {
	h.push(sessionID, Event{Type: EventError, Payload: ErrorPayload{
		SessionID: sessionID,
		Message:   message,
	}})
}
