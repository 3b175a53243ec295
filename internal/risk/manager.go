// Package risk implements the pre-trade gate described in §4.C: it vetoes
// orders that would breach configured value, position-size, or drawdown
// limits, reading the position tracker's state synchronously without ever
// mutating it.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// PositionReader is the narrow read view the risk manager needs from the
// position tracker. It never mutates tracker state.
type PositionReader interface {
	Position(symbol string) (model.Position, bool)
	Snapshot() model.PortfolioSnapshot
}

// Manager is the risk manager of §4.C.
type Manager struct {
	logger *slog.Logger
	b      *bus.Bus
	limits Limits
	pos    PositionReader

	mu        sync.RWMutex
	lastPrice map[string]decimal.Decimal
}

// New creates a Manager with the given limits, subscribing it to
// ORDER_REQUEST and TICK.
func New(logger *slog.Logger, b *bus.Bus, limits Limits, pos PositionReader) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:    logger,
		b:         b,
		limits:    limits,
		pos:       pos,
		lastPrice: make(map[string]decimal.Decimal),
	}
	b.Subscribe(model.EventTick, m.onTick)
	b.Subscribe(model.EventOrderRequest, m.onOrderRequest)
	return m
}

func (m *Manager) onTick(ctx context.Context, evt model.Event) error {
	if evt.Tick == nil {
		return fmt.Errorf("risk manager: TICK event missing payload")
	}
	m.mu.Lock()
	m.lastPrice[evt.Tick.Symbol] = evt.Tick.Mid()
	m.mu.Unlock()
	return nil
}

func (m *Manager) onOrderRequest(ctx context.Context, evt model.Event) error {
	if evt.OrderRequest == nil {
		return fmt.Errorf("risk manager: ORDER_REQUEST event missing payload")
	}
	order := *evt.OrderRequest

	if breach := m.check(order); breach != nil {
		now := time.Now().UTC()
		m.logger.Warn("order rejected by risk check",
			slog.String("order_id", order.ID),
			slog.String("rule", string(breach.Rule)),
			slog.String("message", breach.Message))
		m.b.Publish(ctx, model.NewRiskBreachEvent(breachEventID(order.ID), now, *breach))
		m.b.Publish(ctx, model.NewOrderUpdateEvent(updateEventID(order.ID), now, model.OrderUpdate{
			OrderID: order.ID,
			Status:  model.Rejected,
		}))
	}
	// On pass, the manager is silent: the order manager proceeds to fill
	// unconditionally after the RISK_WAIT timeout.
	return nil
}

// check runs the three §4.C rules in order and returns the first breach, or
// nil if the order passes all of them.
func (m *Manager) check(order model.OrderRequest) *model.RiskBreach {
	refPrice, ok := m.referencePrice(order)
	if !ok {
		return &model.RiskBreach{
			Rule:    model.MaxOrderValue,
			Message: "no reference price available for symbol",
			OrderID: order.ID,
		}
	}

	orderValue := decimal.NewFromInt(order.Quantity).Mul(refPrice)
	if orderValue.GreaterThan(m.limits.MaxOrderValue) {
		return &model.RiskBreach{
			Rule:    model.MaxOrderValue,
			Message: fmt.Sprintf("order value %s exceeds limit %s", orderValue, m.limits.MaxOrderValue),
			OrderID: order.ID,
		}
	}

	projected := m.projectedPositionSize(order)
	if abs64(projected) > m.limits.MaxPositionSize {
		return &model.RiskBreach{
			Rule:    model.MaxPositionSize,
			Message: fmt.Sprintf("projected position %d exceeds limit %d", projected, m.limits.MaxPositionSize),
			OrderID: order.ID,
		}
	}

	snap := m.pos.Snapshot()
	if snap.DrawdownPct.GreaterThanOrEqual(m.limits.MaxDrawdownPct) {
		return &model.RiskBreach{
			Rule:    model.MaxDrawdown,
			Message: fmt.Sprintf("drawdown %s at or beyond limit %s", snap.DrawdownPct, m.limits.MaxDrawdownPct),
			OrderID: order.ID,
		}
	}

	return nil
}

func (m *Manager) referencePrice(order model.OrderRequest) (decimal.Decimal, bool) {
	if order.Type == model.Limit {
		return order.LimitPrice, true
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.lastPrice[order.Symbol]
	return p, ok
}

func (m *Manager) projectedPositionSize(order model.OrderRequest) int64 {
	var cur int64
	if p, ok := m.pos.Position(order.Symbol); ok {
		cur = p.Quantity
	}
	if order.Side == model.Buy {
		return cur + order.Quantity
	}
	return cur - order.Quantity
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func breachEventID(orderID string) string { return "breach-" + orderID }
func updateEventID(orderID string) string { return "update-" + orderID }
