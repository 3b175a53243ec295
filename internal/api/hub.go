// Package api is the query surface of the trading core: REST handlers over
// persisted and live state, plus a single-channel WebSocket broadcaster
// pushing the portfolio snapshot once a second. It is adapted from the
// teacher's gateway Hub/Client pair, collapsed from multi-channel
// candle/indicator fan-out down to the one channel this domain needs.
package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"trading-systemv1/internal/model"
)

// Hub tracks connected WebSocket clients and broadcasts the latest
// PortfolioSnapshot to all of them. Unlike the teacher's Hub it holds no
// Redis subscription of its own — Hub.Broadcast is called directly by the
// snapshot loop (see Server.RunBroadcastLoop), keeping the dependency on
// Redis confined to the optional cache layer.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  json.RawMessage
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]bool),
	}
}

// register adds a client and, if a snapshot has already been broadcast at
// least once, sends it immediately so the client doesn't wait up to a
// second for its first frame.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	latest := h.latest
	h.mu.Unlock()

	if latest != nil {
		select {
		case c.send <- latest:
		default:
		}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast marshals snap and fans it out to every connected client. A
// client whose send buffer is full is dropped rather than allowed to stall
// the broadcast — it will reconnect and receive the next snapshot fresh.
func (h *Hub) Broadcast(snap model.PortfolioSnapshot) {
	data, err := json.Marshal(envelope{Type: "PORTFOLIO_SNAPSHOT", Data: snap, TS: time.Now().UTC()})
	if err != nil {
		h.logger.Warn("ws broadcast: marshal snapshot", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	h.latest = data
	snapshot := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	for _, c := range snapshot {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws client send buffer full, dropping")
			go h.unregister(c)
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type envelope struct {
	Type string                  `json:"type"`
	Data model.PortfolioSnapshot `json:"data"`
	TS   time.Time               `json:"ts"`
}
