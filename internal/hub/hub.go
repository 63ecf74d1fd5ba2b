package hub

import (
	"sync"

	"github.com/MahiaRaniNatarajan/smartlearn/pkg/log"
)

// Hub maps each authenticated user to its single live client.
type Hub struct {
	clients map[int64]*Client // userID -> client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]*Client),
	}
}

// Register binds userID to client, replacing any previous binding. The
// superseded client, if any, is returned untouched: it is neither closed
// nor notified.
func (h *Hub) Register(userID int64, client *Client) *Client {
	h.mu.Lock()
	prev := h.clients[userID]
	h.clients[userID] = client
	h.mu.Unlock()

	l := log.L()
	evt := l.Debug().Int64(log.FieldUserID, userID).Str(log.FieldClientID, client.ID)
	if prev != nil && prev != client {
		evt = evt.Str("superseded_client_id", prev.ID)
	}
	evt.Msg("client registered")

	if prev == client {
		return nil
	}
	return prev
}

func (h *Hub) Lookup(userID int64) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[userID]
	return c, ok
}

// Unregister removes the binding of client's identity only if it still
// points at this exact client. A client whose connection was superseded
// cannot remove its successor.
func (h *Hub) Unregister(client *Client) bool {
	identity, ok := client.Session.Identity()
	if !ok {
		return false
	}

	h.mu.Lock()
	current, exists := h.clients[identity.UserID]
	removed := exists && current == client
	if removed {
		delete(h.clients, identity.UserID)
	}
	h.mu.Unlock()

	l := log.L()
	l.Debug().
		Int64(log.FieldUserID, identity.UserID).
		Str(log.FieldClientID, client.ID).
		Bool("removed", removed).
		Msg("client unregistered")

	return removed
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
