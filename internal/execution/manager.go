// Package execution implements the order manager of §4.D: it turns strategy
// signals into OrderRequests, defers to the risk manager's verdict via a
// bounded wait, and simulates fills with configurable slippage.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// Config tunes the order manager's behavior. NewConfig returns the defaults;
// New uses the fields as given, so a zero field is not replaced by a default.
type Config struct {
	MaxQtyPerSignal int64
	RiskWait        time.Duration
	SlippageBps     int64
}

// NewConfig returns the §4.D defaults: 100 shares max per signal, a 50ms
// risk wait, and 5bps of simulated slippage.
func NewConfig() Config {
	return Config{
		MaxQtyPerSignal: 100,
		RiskWait:        50 * time.Millisecond,
		SlippageBps:     5,
	}
}

type pendingOrder struct {
	order model.OrderRequest
	timer *time.Timer
}

// Manager is the order manager of §4.D.
type Manager struct {
	logger *slog.Logger
	b      *bus.Bus
	cfg    Config

	mu        sync.Mutex
	orders    map[string]model.OrderRequest
	pending   map[string]*pendingOrder
	lastPrice map[string]decimal.Decimal
	hasTick   map[string]bool
}

// New creates a Manager and subscribes it to SIGNAL, TICK, and ORDER_UPDATE.
func New(logger *slog.Logger, b *bus.Bus, cfg Config) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:    logger,
		b:         b,
		cfg:       cfg,
		orders:    make(map[string]model.OrderRequest),
		pending:   make(map[string]*pendingOrder),
		lastPrice: make(map[string]decimal.Decimal),
		hasTick:   make(map[string]bool),
	}
	b.Subscribe(model.EventTick, m.onTick)
	b.Subscribe(model.EventSignal, m.onSignal)
	b.Subscribe(model.EventOrderUpdate, m.onOrderUpdate)
	return m
}

func (m *Manager) onTick(ctx context.Context, evt model.Event) error {
	if evt.Tick == nil {
		return fmt.Errorf("order manager: TICK event missing payload")
	}
	m.mu.Lock()
	m.lastPrice[evt.Tick.Symbol] = evt.Tick.Mid()
	m.hasTick[evt.Tick.Symbol] = true
	m.mu.Unlock()
	return nil
}

func (m *Manager) onSignal(ctx context.Context, evt model.Event) error {
	if evt.Signal == nil {
		return fmt.Errorf("order manager: SIGNAL event missing payload")
	}
	sig := *evt.Signal

	qty := int64(math.Round(sig.Strength * float64(m.cfg.MaxQtyPerSignal)))
	if qty == 0 {
		return nil
	}

	order := model.OrderRequest{
		ID:         uuid.NewString(),
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Quantity:   qty,
		Type:       model.Market,
		StrategyID: sig.StrategyID,
		CreatedAt:  time.Now().UTC(),
		Status:     model.Pending,
	}

	m.mu.Lock()
	m.orders[order.ID] = order
	timer := time.AfterFunc(m.cfg.RiskWait, func() { m.tryFill(context.Background(), order.ID) })
	m.pending[order.ID] = &pendingOrder{order: order, timer: timer}
	m.mu.Unlock()

	m.logger.Info("order request created",
		slog.String("order_id", order.ID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.Int64("qty", order.Quantity))

	m.b.Publish(ctx, model.NewOrderRequestEvent("req-"+order.ID, order))
	return nil
}

func (m *Manager) onOrderUpdate(ctx context.Context, evt model.Event) error {
	if evt.OrderUpdate == nil {
		return fmt.Errorf("order manager: ORDER_UPDATE event missing payload")
	}
	upd := *evt.OrderUpdate
	if upd.Status != model.Rejected {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if order, ok := m.orders[upd.OrderID]; ok {
		order.Status = model.Rejected
		m.orders[upd.OrderID] = order
	}
	if p, ok := m.pending[upd.OrderID]; ok {
		p.timer.Stop()
		delete(m.pending, upd.OrderID)
	}
	return nil
}

// tryFill runs after RISK_WAIT elapses. If the order is still PENDING (the
// risk manager neither rejected it nor will — risk is silent on pass), it
// fills the order at the last tick price plus slippage. If no tick has ever
// been observed for the symbol, the order is cancelled instead.
func (m *Manager) tryFill(ctx context.Context, orderID string) {
	m.mu.Lock()
	order, ok := m.orders[orderID]
	delete(m.pending, orderID)
	if !ok || order.Status != model.Pending {
		m.mu.Unlock()
		return
	}

	price := m.lastPrice[order.Symbol]
	if !m.hasTick[order.Symbol] {
		order.Status = model.Cancelled
		m.orders[orderID] = order
		m.mu.Unlock()
		m.logger.Warn("order cancelled: no tick observed for symbol",
			slog.String("order_id", orderID), slog.String("symbol", order.Symbol))
		m.b.Publish(ctx, model.NewOrderUpdateEvent("cancel-"+orderID, time.Now().UTC(), model.OrderUpdate{
			OrderID: orderID,
			Status:  model.Cancelled,
		}))
		return
	}

	fillPrice := applySlippage(price, order.Side, m.cfg.SlippageBps)
	order.Status = model.Filled
	m.orders[orderID] = order
	m.mu.Unlock()

	now := time.Now().UTC()
	fill := model.Fill{
		ID:       "fill-" + orderID,
		OrderID:  orderID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    fillPrice,
		FilledAt: now,
	}

	m.logger.Info("order filled",
		slog.String("order_id", orderID),
		slog.String("symbol", order.Symbol),
		slog.String("price", fillPrice.String()))

	m.b.Publish(ctx, model.NewFillEvent(fill.ID, fill))
}

// applySlippage returns the simulated fill price: buys slip up, sells slip
// down, by slippageBps basis points of the reference price.
func applySlippage(price decimal.Decimal, side model.Side, slippageBps int64) decimal.Decimal {
	factor := decimal.NewFromInt(slippageBps).Div(decimal.NewFromInt(10_000))
	if side == model.Buy {
		return price.Mul(decimal.NewFromInt(1).Add(factor))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(factor))
}

// GetOrder returns a consistent snapshot of the order, or false if unknown.
func (m *Manager) GetOrder(id string) (model.OrderRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

// Shutdown cancels all pending fill timers and marks their orders
// CANCELLED, per §5's shutdown semantics.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.pending {
		p.timer.Stop()
		order := m.orders[id]
		if order.Status == model.Pending {
			order.Status = model.Cancelled
			m.orders[id] = order
		}
		delete(m.pending, id)
	}
}
