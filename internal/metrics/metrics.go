// Package metrics exposes the core's Prometheus instrumentation and a
// liveness/health endpoint, adapted from the teacher's mdengine metrics
// server onto the trading domain's own counters: bus throughput, fill
// latency, and risk breaches.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trading-systemv1/internal/model"
)

// Metrics holds all Prometheus metrics for the trading core.
type Metrics struct {
	EventsPublishedTotal *prometheus.CounterVec // labels: event_type
	HandlerErrorsTotal   *prometheus.CounterVec // labels: event_type
	HandlerPanicsTotal   *prometheus.CounterVec // labels: event_type

	OrdersTotal   *prometheus.CounterVec // labels: status
	FillLatency   prometheus.Histogram   // signal-to-fill latency
	RiskBreaches  *prometheus.CounterVec // labels: rule

	PortfolioEquity   prometheus.Gauge
	PortfolioDrawdown prometheus.Gauge

	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBufferedWrites      prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_events_published_total",
			Help: "Total events published on the bus, by type",
		}, []string{"event_type"}),
		HandlerErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_handler_errors_total",
			Help: "Total subscriber handler errors, by event type",
		}, []string{"event_type"}),
		HandlerPanicsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_handler_panics_total",
			Help: "Total subscriber handler panics recovered, by event type",
		}, []string{"event_type"}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_orders_total",
			Help: "Total orders by terminal status",
		}, []string{"status"}),
		FillLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trading_fill_latency_seconds",
			Help:    "Latency from SIGNAL to FILL",
			Buckets: prometheus.DefBuckets,
		}),
		RiskBreaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_risk_breaches_total",
			Help: "Total risk breaches by rule",
		}, []string{"rule"}),

		PortfolioEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_portfolio_equity",
			Help: "Latest total portfolio equity",
		}),
		PortfolioDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_portfolio_drawdown_pct",
			Help: "Latest portfolio drawdown percentage",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_redis_circuit_breaker_state",
			Help: "Redis cache circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBufferedWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_redis_buffered_writes_total",
			Help: "Total cache writes buffered while the circuit was open",
		}),
	}

	prometheus.MustRegister(
		m.EventsPublishedTotal,
		m.HandlerErrorsTotal,
		m.HandlerPanicsTotal,
		m.OrdersTotal,
		m.FillLatency,
		m.RiskBreaches,
		m.PortfolioEquity,
		m.PortfolioDrawdown,
		m.RedisCircuitBreakerState,
		m.RedisBufferedWrites,
	)

	return m
}

// EventPublished implements bus.Recorder.
func (m *Metrics) EventPublished(eventType model.EventType) {
	m.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()
}

// HandlerError implements bus.Recorder.
func (m *Metrics) HandlerError(eventType model.EventType) {
	m.HandlerErrorsTotal.WithLabelValues(string(eventType)).Inc()
}

// HandlerPanic implements bus.Recorder.
func (m *Metrics) HandlerPanic(eventType model.EventType) {
	m.HandlerPanicsTotal.WithLabelValues(string(eventType)).Inc()
}

// HealthStatus represents the system's liveness and dependency health.
type HealthStatus struct {
	mu sync.RWMutex

	FeedConnected bool      `json:"feed_connected"`
	LastTickTime  time.Time `json:"last_tick_time"`
	SQLiteOK      bool      `json:"sqlite_ok"`
	RedisOK       bool      `json:"redis_ok"` // optional cache; absence is not degraded

	StartedAt time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetFeedConnected(v bool) {
	h.mu.Lock()
	h.FeedConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisOK(v bool) {
	h.mu.Lock()
	h.RedisOK = v
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.FeedConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status        string `json:"status"`
		Uptime        string `json:"uptime"`
		FeedConnected bool   `json:"feed_connected"`
		TickAge       string `json:"tick_age"`
		SQLiteOK      bool   `json:"sqlite_ok"`
		RedisOK       bool   `json:"redis_ok"`
	}{
		Status:        overallStatus,
		Uptime:        time.Since(h.StartedAt).Round(time.Second).String(),
		FeedConnected: h.FeedConnected,
		TickAge:       tickAge,
		SQLiteOK:      h.SQLiteOK,
		RedisOK:       h.RedisOK,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
