// Package dashboard maintains the registry of connected observer sockets
// and fans tone results out to them.
package dashboard

import (
	"sync"

	"github.com/rs/zerolog/log"

	"call-sentiment-gateway/internal/observability/metrics"
)

// Client is one connected dashboard observer. The hub holds a non-owning
// reference; the connection's lifetime belongs to the network layer.
type Client interface {
	// Send delivers one message with bounded effort. Implementations must
	// not block indefinitely on a slow reader.
	Send(payload []byte) error

	// ID identifies the client in logs.
	ID() string
}

// Hub is the process-wide observer registry. Register, Unregister, and
// Broadcast are safe to call concurrently from independent call sessions.
type Hub struct {
	mu      sync.Mutex
	clients map[Client]struct{}
	metrics *metrics.Metrics
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[Client]struct{}),
		metrics: metrics.DefaultMetrics,
	}
}

// Register adds a client to the registry.
func (h *Hub) Register(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	h.metrics.RecordDashboardRegister()
	log.Info().Str("client", c.ID()).Int("clients", len(h.clients)).Msg("Dashboard client registered")
}

// Unregister removes a client; no-op if absent.
func (h *Hub) Unregister(c Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(c)
}

// remove deletes a client from the registry. Caller holds h.mu.
func (h *Hub) remove(c Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.metrics.RecordDashboardUnregister()
	log.Info().Str("client", c.ID()).Int("clients", len(h.clients)).Msg("Dashboard client unregistered")
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends payload to every client registered at the moment the
// snapshot is taken. A failing client is unregistered and logged; delivery
// to the remaining clients continues.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	snapshot := make([]Client, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	var failures int
	for _, c := range snapshot {
		if err := c.Send(payload); err != nil {
			failures++
			log.Warn().Err(err).Str("client", c.ID()).Msg("Dashboard send failed, dropping client")
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()
		}
	}
	h.metrics.RecordBroadcast(failures)
}
