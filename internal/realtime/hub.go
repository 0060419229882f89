// Package realtime carries chat events over websockets.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/support-desk/internal/chat"
)

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks live clients and room membership and implements chat.Emitter.
type Hub struct {
	log zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	// room -> connection ids
	rooms map[string]map[string]struct{}
	// connection id -> rooms, for cleanup
	memberships map[string]map[string]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:         log.With().Str("component", "hub").Logger(),
		clients:     make(map[string]*Client),
		rooms:       make(map[string]map[string]struct{}),
		memberships: make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes the client from every room and stops its writer.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	c := h.clients[connID]
	delete(h.clients, connID)
	for room := range h.memberships[connID] {
		h.removeLocked(connID, room)
	}
	delete(h.memberships, connID)
	h.mu.Unlock()

	if c != nil {
		c.stop()
	}
}

func (h *Hub) Join(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[connID] = struct{}{}

	rooms, ok := h.memberships[connID]
	if !ok {
		rooms = make(map[string]struct{})
		h.memberships[connID] = rooms
	}
	rooms[room] = struct{}{}
}

func (h *Hub) Leave(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(connID, room)
	delete(h.memberships[connID], room)
}

func (h *Hub) removeLocked(connID, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Emit sends one frame to every selected connection, once per connection.
func (h *Hub) Emit(aud chat.Audience, event string, payload any) {
	frame, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode event failed")
		return
	}

	h.mu.RLock()
	targets := make(map[string]*Client)
	for _, room := range aud.Rooms {
		for id := range h.rooms[room] {
			if c, ok := h.clients[id]; ok {
				targets[id] = c
			}
		}
	}
	for _, id := range aud.Conns {
		if c, ok := h.clients[id]; ok {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if !c.enqueue(frame) {
			h.log.Warn().Str("conn_id", id).Str("event", event).Msg("client send buffer full, dropping event")
		}
	}
}

// SendTo delivers an event to a single connection.
func (h *Hub) SendTo(connID, event string, payload any) {
	h.Emit(chat.Audience{Conns: []string{connID}}, event, payload)
}
