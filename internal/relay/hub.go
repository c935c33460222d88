package relay

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"inbox/internal/models"
)

const clientBuffer = 100

// Presence is one logged-in connection.
type Presence struct {
	models.Identity
	Since int64 `json:"since"`
}

type client struct {
	send     chan models.Envelope
	presence *Presence
}

type Hub struct {
	// Map of connection id -> client
	clients map[string]*client

	metrics *Metrics
	logger  *slog.Logger

	mu sync.RWMutex
}

func NewHub(metrics *Metrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		metrics: metrics,
		logger:  logger.With("component", "hub"),
	}
}

func (h *Hub) Join(connID string) chan models.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[connID]; ok {
		return c.send
	}

	ch := make(chan models.Envelope, clientBuffer)
	h.clients[connID] = &client{send: ch}
	h.metrics.connected()
	return ch
}

func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	close(c.send)
	delete(h.clients, connID)
	h.metrics.disconnected()

	if c.presence != nil {
		h.logger.Info("user left", "conn_id", connID, "user", c.presence.Name)
	}
}

// Login records who is behind a connection.
func (h *Hub) Login(connID string, identity models.Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	c.presence = &Presence{Identity: identity, Since: time.Now().Unix()}
	h.logger.Info("user joined", "conn_id", connID, "user", identity.Name, "admin", identity.IsAdmin)
}

// Broadcast delivers env to every connection except the sender. Slow
// receivers lose the event.
func (h *Hub) Broadcast(fromConnID string, env models.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.metrics.relayed(string(env.Event))
	for id, c := range h.clients {
		if id == fromConnID {
			continue
		}
		select {
		case c.send <- env:
		default:
			h.metrics.dropped(DropSlowConsumer)
			h.logger.Warn("dropping event for slow consumer", "conn_id", id, "event", env.Event)
		}
	}
}

// Online lists logged-in connections ordered by name.
func (h *Hub) Online() []Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Presence, 0, len(h.clients))
	for _, c := range h.clients {
		if c.presence != nil {
			result = append(result, *c.presence)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})

	return result
}
