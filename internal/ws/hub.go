// Package ws pushes ledger change events to connected websocket clients.
package ws

import (
	"context"
	"encoding/json"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"
	"finance_tracker/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_clients",
		Help: "Connected live feed clients",
	})
	wsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_events_dropped_total",
			Help: "Ledger events not delivered to live feed clients",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(wsClients, wsDropped)
}

// Hub fans ledger change events out to the clients allowed to see them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	events     chan domain.ChangeEvent
	clients    map[*Client]struct{}
	policy     service.AccessPolicy
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan domain.ChangeEvent, 256),
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
	}
}

// Publish queues ev for delivery. It never blocks the caller; when the
// queue is full the event is dropped and logged.
func (h *Hub) Publish(ev domain.ChangeEvent) {
	select {
	case h.events <- ev:
	default:
		wsDropped.WithLabelValues("hub_full").Inc()
		logger.Warn("live feed queue full, dropping event", "transaction_id", ev.TransactionID, "action", ev.Action)
	}
}

// Run serves register, unregister and events until ctx is done, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			wsClients.Inc()
			logger.Debug("live feed client connected", "user_id", c.identity.UserID)
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
			}
		case ev := <-h.events:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev domain.ChangeEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to encode ledger event", "error", err)
		return
	}
	for c := range h.clients {
		if !h.policy.CanView(c.identity, ev.UserID) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// slow consumer
			wsDropped.WithLabelValues("client_full").Inc()
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	wsClients.Dec()
}

// Register adds c to the hub unless ctx ends first.
func (h *Hub) Register(ctx context.Context, c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
