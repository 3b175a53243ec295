// Package portfolio tracks positions, cash, and portfolio-level P&L.
//
// It maintains a real-time view of every symbol ever touched by a fill or a
// tick, recomputes unrealized P&L on each tick, and hands the risk manager
// and the query surface copies of its state. Those reads take the tracker's
// lock; Snapshot takes the write lock because it updates peak equity.
package portfolio

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

// initialCash is the simulated starting balance.
var initialCash = decimal.NewFromInt(100_000)

// Tracker is the position tracker described in §4.B. It subscribes to FILL
// and TICK and is the single writer of position/cash state; reads go
// through Positions/Position/Snapshot, which return copies.
type Tracker struct {
	logger *slog.Logger
	b      *bus.Bus

	mu         sync.RWMutex
	positions  map[string]model.Position
	cash       decimal.Decimal
	peakEquity decimal.Decimal
}

// New creates a Tracker with the initial cash balance and subscribes it to
// the bus. Callers do not need to hold a reference beyond this call unless
// they want to read state directly (Snapshot/Position/Positions).
func New(logger *slog.Logger, b *bus.Bus) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		logger:     logger,
		b:          b,
		positions:  make(map[string]model.Position),
		cash:       initialCash,
		peakEquity: initialCash,
	}
	b.Subscribe(model.EventFill, t.onFill)
	b.Subscribe(model.EventTick, t.onTick)
	return t
}

func (t *Tracker) onFill(ctx context.Context, evt model.Event) error {
	if evt.Fill == nil {
		return fmt.Errorf("position tracker: FILL event missing payload")
	}
	t.ApplyFill(ctx, *evt.Fill)
	return nil
}

func (t *Tracker) onTick(ctx context.Context, evt model.Event) error {
	if evt.Tick == nil {
		return fmt.Errorf("position tracker: TICK event missing payload")
	}
	t.Mark(evt.Tick.Symbol, evt.Tick.Mid())
	return nil
}

// ApplyFill applies a fill to cash and the symbol's position per §4.B,
// publishing POSITION_UPDATE with the resulting Position. A fill for an
// order id the tracker has never seen is still applied — fills are
// authoritative regardless of order bookkeeping.
func (t *Tracker) ApplyFill(ctx context.Context, f model.Fill) {
	signed := decimal.NewFromInt(f.SignedQuantity())

	t.mu.Lock()
	cur, ok := t.positions[f.Symbol]
	if !ok {
		cur = model.ZeroPosition(f.Symbol)
	}

	// Rule 1 / invariant 5: cash debits on buys, credits on sells, before
	// any realized P&L attribution — the realized P&L is already folded
	// into this delta when closing/flipping at a price off the entry.
	t.cash = t.cash.Sub(signed.Mul(f.Price))

	newPos := applyFillToPosition(cur, f.Side, f.Quantity, f.Price)
	t.positions[f.Symbol] = newPos
	snapshot := t.snapshotLocked()
	t.mu.Unlock()

	t.logger.Info("fill applied",
		slog.String("symbol", f.Symbol),
		slog.String("side", string(f.Side)),
		slog.Int64("qty", f.Quantity),
		slog.String("price", f.Price.String()),
		slog.String("cash", snapshot.Cash.String()))

	t.b.Publish(ctx, model.NewPositionUpdateEvent(eventID("pos", f.Symbol, f.FilledAt), f.FilledAt, newPos))
}

// applyFillToPosition implements §4.B rules 2-4: opening/adding,
// reducing/closing, and flipping through zero. It is pure and
// side-effect-free so the flip case can recurse without touching tracker
// state twice.
func applyFillToPosition(cur model.Position, side model.Side, qty int64, price decimal.Decimal) model.Position {
	signed := qty
	if side == model.Sell {
		signed = -qty
	}

	switch {
	case cur.Quantity == 0 || sameSign(cur.Quantity, signed):
		// Opening or adding: volume-weighted average price.
		absCur := decimal.NewFromInt(abs64(cur.Quantity))
		absQty := decimal.NewFromInt(qty)
		totalQty := absCur.Add(absQty)
		var newAvg decimal.Decimal
		if totalQty.IsZero() {
			newAvg = decimal.Zero
		} else {
			newAvg = absCur.Mul(cur.AvgEntryPrice).Add(absQty.Mul(price)).Div(totalQty)
		}
		cur.AvgEntryPrice = newAvg
		cur.Quantity += signed
		return cur

	case abs64(signed) <= abs64(cur.Quantity):
		// Reducing or closing: realize P&L on the closed portion, average
		// price unchanged unless quantity lands on zero.
		closedQty := decimal.NewFromInt(qty)
		sign := decimal.NewFromInt(int64(sign64(cur.Quantity)))
		realizedDelta := closedQty.Mul(price.Sub(cur.AvgEntryPrice)).Mul(sign)
		cur.RealizedPnL = cur.RealizedPnL.Add(realizedDelta)
		cur.Quantity += signed
		if cur.Quantity == 0 {
			cur.AvgEntryPrice = decimal.Zero
		}
		return cur

	default:
		// Flipping through zero: close the existing position entirely at
		// its average, then open the remainder fresh at the fill price.
		closingQty := abs64(cur.Quantity)
		closeSide := model.Buy
		if cur.Quantity > 0 {
			closeSide = model.Sell
		}
		closed := applyFillToPosition(cur, closeSide, closingQty, price)

		remainderQty := abs64(signed) - abs64(cur.Quantity)
		openSide := model.Buy
		if signed < 0 {
			openSide = model.Sell
		}
		opened := applyFillToPosition(closed, openSide, remainderQty, price)
		return opened
	}
}

// Mark updates the last traded mid-price for symbol and recomputes
// unrealized P&L. No event is emitted — ticks are high frequency and marks
// are observed via queries/snapshots, not pushed individually.
func (t *Tracker) Mark(symbol string, mid decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[symbol]
	if !ok {
		pos = model.ZeroPosition(symbol)
	}
	pos.LastMark = mid
	pos.UnrealizedPnL = decimal.NewFromInt(pos.Quantity).Mul(mid.Sub(pos.AvgEntryPrice))
	t.positions[symbol] = pos
}

// Position returns a snapshot of the named symbol's position. ok is false
// if the symbol has never been touched.
func (t *Tracker) Position(symbol string) (model.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.positions[symbol]
	return p, ok
}

// Positions returns a snapshot of all tracked positions.
func (t *Tracker) Positions() []model.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Position, 0, len(t.positions))
	for _, p := range t.positions {
		out = append(out, p)
	}
	return out
}

// Cash returns the current cash balance.
func (t *Tracker) Cash() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash
}

// Snapshot returns the current PortfolioSnapshot, updating peak equity as a
// side effect (peak equity only ever increases, so this is safe to call
// from multiple readers).
func (t *Tracker) Snapshot() model.PortfolioSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() model.PortfolioSnapshot {
	totalUnrealized := decimal.Zero
	totalRealized := decimal.Zero
	markValue := decimal.Zero
	for _, p := range t.positions {
		totalUnrealized = totalUnrealized.Add(p.UnrealizedPnL)
		totalRealized = totalRealized.Add(p.RealizedPnL)
		markValue = markValue.Add(decimal.NewFromInt(p.Quantity).Mul(p.LastMark))
	}
	equity := t.cash.Add(markValue)
	if equity.GreaterThan(t.peakEquity) {
		t.peakEquity = equity
	}

	drawdown := decimal.Zero
	if t.peakEquity.GreaterThan(decimal.Zero) {
		drawdown = t.peakEquity.Sub(equity).Div(t.peakEquity)
	}

	return model.PortfolioSnapshot{
		Cash:            t.cash,
		TotalUnrealized: totalUnrealized,
		TotalRealized:   totalRealized,
		TotalEquity:     equity,
		PeakEquity:      t.peakEquity,
		DrawdownPct:     drawdown,
		SnapshotAt:      time.Now().UTC(),
	}
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign64(n int64) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func eventID(prefix, symbol string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", prefix, symbol, at.UnixNano())
}
