package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"trading-systemv1/internal/execution"
	"trading-systemv1/internal/portfolio"
	"trading-systemv1/internal/store/redis"
	"trading-systemv1/internal/store/sqlite"
)

// Deps are the read-side dependencies the query surface handlers are wired
// against: live in-memory state (Tracker, Manager) and durable state
// (Reader). Handlers never write through these — the query surface is
// read-only, per the persistence sink owning every write path.
//
// RedisCache is optional: when Redis is up, the broadcast loop reads and
// subscribes to the shared snapshot it caches instead of recomputing from
// Tracker, so every API instance behind a load balancer broadcasts the same
// snapshot. When nil, the broadcast loop falls back to Tracker directly.
type Deps struct {
	Tracker    *portfolio.Tracker
	Reader     *sqlite.Reader
	Manager    *execution.Manager
	Latency    *LatencyTracker
	RedisCache *redis.Reader
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handlePortfolioSnapshot serves GET /api/v1/portfolio.
func handlePortfolioSnapshot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Tracker.Snapshot())
	}
}

// handlePositions serves GET /api/v1/positions and, with a trailing
// /{symbol}, GET /api/v1/positions/{symbol}.
func handlePositions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimPrefix(r.URL.Path, "/api/v1/positions")
		symbol = strings.Trim(symbol, "/")

		if symbol == "" {
			writeJSON(w, http.StatusOK, deps.Tracker.Positions())
			return
		}

		pos, ok := deps.Tracker.Position(symbol)
		if !ok {
			writeError(w, http.StatusNotFound, "no position for symbol "+symbol)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}

// handleOrders serves GET /api/v1/orders (all, from persistence) and
// GET /api/v1/orders/{id} (single order, falling back to the in-memory
// order manager for orders not yet flushed to SQLite).
func handleOrders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/orders")
		id = strings.Trim(id, "/")

		if id == "" {
			orders, err := deps.Reader.Orders()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, orders)
			return
		}

		order, ok, err := deps.Reader.Order(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !ok {
			if deps.Manager != nil {
				if live, liveOK := deps.Manager.GetOrder(id); liveOK {
					writeJSON(w, http.StatusOK, live)
					return
				}
			}
			writeError(w, http.StatusNotFound, "no order "+id)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}

// handleFills serves GET /api/v1/orders/{id}/fills.
func handleFills(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/orders/")
		id = strings.TrimSuffix(id, "/fills")
		if id == "" {
			writeError(w, http.StatusBadRequest, "order id required")
			return
		}

		fills, err := deps.Reader.FillsByOrder(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, fills)
	}
}

// handleStats serves GET /api/v1/stats: signal-to-fill latency percentiles
// and connected WebSocket client count.
func handleStats(deps Deps, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p50, p95, p99 := deps.Latency.Percentiles()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"fill_latency_ms": map[string]float64{"p50": p50, "p95": p95, "p99": p99},
			"fill_samples":    deps.Latency.Count(),
			"ws_clients":      hub.ClientCount(),
		})
	}
}
