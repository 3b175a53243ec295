// Package api provides the HTTP and WebSocket query surface described in
// §6: read-only REST endpoints over live portfolio/order state and the
// persisted order/fill history, plus a /ws channel pushing the portfolio
// snapshot once a second.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server owns the Hub, the signal-to-fill LatencyTracker, and the HTTP
// server exposing both the REST handlers and /ws.
type Server struct {
	logger *slog.Logger
	deps   Deps
	hub    *Hub
	srv    *http.Server

	pendingMu sync.Mutex
	pending   map[string]time.Time // order id -> ORDER_REQUEST time, for latency
}

// NewServer wires the query surface: REST routes, the WS hub, and bus
// subscriptions feeding the broadcast loop and latency tracker.
func NewServer(logger *slog.Logger, addr string, b *bus.Bus, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Latency == nil {
		deps.Latency = NewLatencyTracker(1000)
	}

	hub := NewHub(logger)
	s := &Server{
		logger:  logger,
		deps:    deps,
		hub:     hub,
		pending: make(map[string]time.Time),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/portfolio", handlePortfolioSnapshot(deps))
	mux.HandleFunc("/api/v1/positions", handlePositions(deps))
	mux.HandleFunc("/api/v1/positions/", handlePositions(deps))
	mux.HandleFunc("/api/v1/orders", handleOrders(deps))
	mux.HandleFunc("/api/v1/orders/", s.dispatchOrderSubpath)
	mux.HandleFunc("/api/v1/stats", handleStats(deps, hub))
	mux.HandleFunc("/ws", s.handleWS)

	s.srv = &http.Server{Addr: addr, Handler: mux}

	b.Subscribe(model.EventOrderRequest, s.onOrderRequest)
	b.Subscribe(model.EventFill, s.onFill)

	return s
}

func (s *Server) dispatchOrderSubpath(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/fills") {
		handleFills(s.deps)(w, r)
		return
	}
	handleOrders(s.deps)(w, r)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	c := newClient(s.hub, conn, s.logger)
	s.hub.register(c)
	go c.writePump()
	go c.readPump()
}

// onOrderRequest records when an order entered the pipeline, for the
// signal-to-fill latency computed in onFill.
func (s *Server) onOrderRequest(ctx context.Context, evt model.Event) error {
	if evt.OrderRequest == nil {
		return nil
	}
	s.pendingMu.Lock()
	s.pending[evt.OrderRequest.ID] = evt.OrderRequest.CreatedAt
	s.pendingMu.Unlock()
	return nil
}

func (s *Server) onFill(ctx context.Context, evt model.Event) error {
	if evt.Fill == nil {
		return nil
	}
	s.pendingMu.Lock()
	createdAt, ok := s.pending[evt.Fill.OrderID]
	if ok {
		delete(s.pending, evt.Fill.OrderID)
	}
	s.pendingMu.Unlock()

	if ok {
		s.deps.Latency.Record(float64(evt.Fill.FilledAt.Sub(createdAt).Milliseconds()))
	}
	return nil
}

// RunBroadcastLoop pushes the portfolio snapshot to all WS clients once a
// second until ctx is cancelled. When a Redis cache is configured it
// broadcasts the shared snapshot fan-out instead of recomputing locally, so
// every API instance behind a load balancer serves the same view.
func (s *Server) RunBroadcastLoop(ctx context.Context) {
	if s.deps.RedisCache != nil {
		s.runRedisBroadcastLoop(ctx)
		return
	}
	s.runLocalBroadcastLoop(ctx)
}

func (s *Server) runLocalBroadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.hub.Broadcast(s.deps.Tracker.Snapshot())
		}
	}
}

// runRedisBroadcastLoop subscribes to the Redis snapshot channel the cache
// writer publishes to at 1Hz and forwards each one to the WS hub. It falls
// back to the local tracker if the subscription can't be established.
func (s *Server) runRedisBroadcastLoop(ctx context.Context) {
	pubsub := s.deps.RedisCache.SubscribeSnapshots(ctx)
	if pubsub == nil {
		s.logger.Warn("redis snapshot subscription unavailable, falling back to local tracker")
		s.runLocalBroadcastLoop(ctx)
		return
	}
	defer pubsub.Close()

	if snap, ok, err := s.deps.RedisCache.Snapshot(ctx); err == nil && ok {
		s.hub.Broadcast(snap)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var snap model.PortfolioSnapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				s.logger.Warn("redis snapshot unmarshal failed", slog.Any("error", err))
				continue
			}
			s.hub.Broadcast(snap)
		}
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("api server listening", slog.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", slog.Any("error", err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
