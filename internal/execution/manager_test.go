package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

func fastConfig() Config {
	return Config{
		MaxQtyPerSignal: 100,
		RiskWait:        10 * time.Millisecond,
		SlippageBps:     5,
	}
}

func TestManager_SignalProducesOrderRequestAndFill(t *testing.T) {
	b := bus.New(nil)
	m := New(nil, b, fastConfig())

	var fills []model.Fill
	b.Subscribe(model.EventFill, func(ctx context.Context, evt model.Event) error {
		fills = append(fills, *evt.Fill)
		return nil
	})

	ctx := context.Background()
	b.Publish(ctx, model.NewTickEvent("t1", model.Tick{
		Symbol:    "ACME",
		Last:      decimal.NewFromInt(100),
		Bid:       decimal.NewFromInt(100),
		Ask:       decimal.NewFromInt(100),
		Timestamp: time.Now(),
	}))
	b.Publish(ctx, model.NewSignalEvent("s1", model.Signal{
		StrategyID: "mean-reversion",
		Symbol:     "ACME",
		Side:       model.Buy,
		Strength:   1.0,
		Timestamp:  time.Now(),
	}))

	time.Sleep(50 * time.Millisecond)

	if len(fills) != 1 {
		t.Fatalf("expected exactly one fill, got %d", len(fills))
	}
	f := fills[0]
	if f.Quantity != 100 {
		t.Fatalf("expected qty=100, got %d", f.Quantity)
	}
	want := decimal.NewFromInt(100).Mul(decimal.NewFromFloat(1.0005))
	if !f.Price.Equal(want) {
		t.Fatalf("expected fill price %s, got %s", want, f.Price)
	}
}

func TestManager_ZeroQuantitySignalIsDropped(t *testing.T) {
	b := bus.New(nil)
	m := New(nil, b, fastConfig())

	var reqs int
	b.Subscribe(model.EventOrderRequest, func(ctx context.Context, evt model.Event) error {
		reqs++
		return nil
	})

	b.Publish(context.Background(), model.NewSignalEvent("s1", model.Signal{
		Symbol:   "ACME",
		Side:     model.Buy,
		Strength: 0.001, // rounds to 0 qty
	}))

	time.Sleep(20 * time.Millisecond)
	if reqs != 0 {
		t.Fatalf("expected no order request for zero-quantity signal, got %d", reqs)
	}
	_ = m
}

func TestManager_RejectedOrderNeverFills(t *testing.T) {
	b := bus.New(nil)
	m := New(nil, b, fastConfig())

	var fills int
	b.Subscribe(model.EventFill, func(ctx context.Context, evt model.Event) error {
		fills++
		return nil
	})

	ctx := context.Background()
	b.Subscribe(model.EventOrderRequest, func(ctx context.Context, evt model.Event) error {
		b.Publish(ctx, model.NewOrderUpdateEvent("rej", time.Now(), model.OrderUpdate{
			OrderID: evt.OrderRequest.ID,
			Status:  model.Rejected,
		}))
		return nil
	})

	b.Publish(ctx, model.NewTickEvent("t1", model.Tick{Symbol: "ACME", Last: decimal.NewFromInt(100), Timestamp: time.Now()}))
	b.Publish(ctx, model.NewSignalEvent("s1", model.Signal{Symbol: "ACME", Side: model.Buy, Strength: 1.0}))

	time.Sleep(50 * time.Millisecond)
	if fills != 0 {
		t.Fatalf("expected no fill for rejected order, got %d", fills)
	}
	_ = m
}

func TestManager_NoTickCancelsOrder(t *testing.T) {
	b := bus.New(nil)
	m := New(nil, b, fastConfig())

	var updates []model.OrderUpdate
	b.Subscribe(model.EventOrderUpdate, func(ctx context.Context, evt model.Event) error {
		updates = append(updates, *evt.OrderUpdate)
		return nil
	})

	b.Publish(context.Background(), model.NewSignalEvent("s1", model.Signal{Symbol: "NEW", Side: model.Buy, Strength: 1.0}))

	time.Sleep(50 * time.Millisecond)
	found := false
	for _, u := range updates {
		if u.Status == model.Cancelled {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a CANCELLED update for a symbol never ticked, got %+v", updates)
	}
	_ = m
}

func TestManager_GetOrderReturnsSnapshot(t *testing.T) {
	b := bus.New(nil)
	m := New(nil, b, fastConfig())

	b.Publish(context.Background(), model.NewTickEvent("t1", model.Tick{Symbol: "ACME", Last: decimal.NewFromInt(50), Timestamp: time.Now()}))
	b.Publish(context.Background(), model.NewSignalEvent("s1", model.Signal{Symbol: "ACME", Side: model.Sell, Strength: 0.5}))

	time.Sleep(10 * time.Millisecond)

	var orderID string
	for _, evt := range b.History() {
		if evt.Type == model.EventOrderRequest {
			orderID = evt.OrderRequest.ID
		}
	}
	if orderID == "" {
		t.Fatal("expected an order request in history")
	}

	if _, ok := m.GetOrder(orderID); !ok {
		t.Fatalf("expected GetOrder(%s) to find the order", orderID)
	}
	if _, ok := m.GetOrder("does-not-exist"); ok {
		t.Fatal("expected unknown order id to return ok=false")
	}
}
