package live

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/analfistt/ArbiWeb/internal/model"
)

// Hub owns the registry of live subscriber connections, keyed by identity
// with a separate admin set, and fans events out to them. Delivery is
// best-effort: sending to an identity with no connections is a no-op.
type Hub struct {
	conns  map[string]map[*Client]struct{}
	admins map[*Client]struct{}

	pingInterval time.Duration
	logger       *slog.Logger
	mu           sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(pingInterval time.Duration, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}

	return &Hub{
		conns:        make(map[string]map[*Client]struct{}),
		admins:       make(map[*Client]struct{}),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Register adds an authenticated connection to the registry and greets it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.conns[c.Identity]
	if !ok {
		set = make(map[*Client]struct{})
		h.conns[c.Identity] = set
	}
	set[c] = struct{}{}
	if c.IsAdmin {
		h.admins[c] = struct{}{}
	}
	h.mu.Unlock()

	c.deliver(model.Event{Type: model.EventConnected})

	h.logger.Info("subscriber connected",
		"identity", c.Identity,
		"admin", c.IsAdmin)
}

// Unregister removes a connection from the per-identity registry and the
// admin set, and closes it. Safe to call for an already-removed client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.conns[c.Identity]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, c.Identity)
		}
	}
	delete(h.admins, c)
	h.mu.Unlock()

	c.close()

	h.logger.Info("subscriber disconnected", "identity", c.Identity)
}

// SendToSubscriber delivers an event to every connection of one identity.
func (h *Hub) SendToSubscriber(identity, event string, payload interface{}) {
	h.mu.RLock()
	targets := h.snapshot(h.conns[identity])
	h.mu.RUnlock()

	h.dispatch(targets, model.Event{Type: event, Payload: payload})
}

// SendToAdmins delivers an event to every admin connection.
func (h *Hub) SendToAdmins(event string, payload interface{}) {
	h.mu.RLock()
	targets := h.snapshot(h.admins)
	h.mu.RUnlock()

	h.dispatch(targets, model.Event{Type: event, Payload: payload})
}

// BroadcastAll delivers an event to every registered connection.
func (h *Hub) BroadcastAll(event string, payload interface{}) {
	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, set := range h.conns {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	h.dispatch(targets, model.Event{Type: event, Payload: payload})
}

func (h *Hub) snapshot(set map[*Client]struct{}) []*Client {
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	return targets
}

// dispatch queues the event on each target, dropping connections whose
// send queue is full.
func (h *Hub) dispatch(targets []*Client, event model.Event) {
	for _, c := range targets {
		if !c.deliver(event) {
			h.logger.Warn("disconnecting lagging subscriber",
				"identity", c.Identity,
				"event", event.Type)
			h.Unregister(c)
		}
	}
}

// Run drives the liveness sweep until the context is cancelled: every ping
// interval, connections that did not answer since the previous sweep are
// terminated, the rest are pinged again.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// sweep is one liveness pass over the registry.
func (h *Hub) sweep() {
	h.mu.RLock()
	targets := make([]*Client, 0)
	for _, set := range h.conns {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.sweep() {
			h.logger.Info("terminating unresponsive subscriber", "identity", c.Identity)
			h.Unregister(c)
			continue
		}
		if err := c.ping(); err != nil {
			h.logger.Debug("ping failed", "identity", c.Identity, "error", err)
			h.Unregister(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	targets := make([]*Client, 0)
	for _, set := range h.conns {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.conns = make(map[string]map[*Client]struct{})
	h.admins = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
}

// Connections reports the number of live connections for an identity.
func (h *Hub) Connections(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[identity])
}

// AdminConnections reports the number of live admin connections.
func (h *Hub) AdminConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.admins)
}

// TotalConnections reports the number of live connections across identities.
func (h *Hub) TotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, set := range h.conns {
		total += len(set)
	}
	return total
}
