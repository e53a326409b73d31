// Package realtime pushes ticket updates to participants over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gigconnect/gigconnect/internal/models"
)

// EventNewMessage is broadcast to a ticket room after every message append.
const EventNewMessage = "newMessage"

// Hub keeps one room of connected clients per ticket id.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	logger *log.Logger
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: log.New(log.Writer(), "[REALTIME] ", log.LstdFlags),
	}
}

func (h *Hub) join(ticketID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[ticketID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[ticketID] = room
	}
	room[c] = struct{}{}
	c.rooms[ticketID] = struct{}{}
}

// leave removes c from every room it joined.
func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c *client) {
	for id := range c.rooms {
		if room, ok := h.rooms[id]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, id)
			}
		}
		delete(c.rooms, id)
	}
}

// PublishTicket sends a newMessage event to everyone in the ticket's room.
// Clients whose send buffer is full are disconnected.
func (h *Hub) PublishTicket(_ context.Context, t *models.Ticket) {
	payload, err := json.Marshal(frame{Event: EventNewMessage, Data: t})
	if err != nil {
		h.logger.Printf("Failed to encode ticket %s: %v", t.ID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[t.ID] {
		if !c.enqueue(payload) {
			h.logger.Printf("Dropping slow client %s", c.actor.ID)
			h.leaveLocked(c)
			c.close()
		}
	}
}

// RoomSize returns the number of clients following a ticket.
func (h *Hub) RoomSize(ticketID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ticketID])
}

// Close disconnects every client. Hijacked connections are not closed by
// http.Server.Shutdown, so the serve command calls this on the way out.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for c := range room {
			c.close()
		}
	}
	h.rooms = make(map[string]map[*client]struct{})
}
