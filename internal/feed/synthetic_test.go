package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

func TestSynthetic_PublishesTicksForEverySymbol(t *testing.T) {
	b := bus.New(nil)

	seen := make(map[string]int)
	var mu sync.Mutex
	b.Subscribe(model.EventTick, func(ctx context.Context, evt model.Event) error {
		mu.Lock()
		seen[evt.Tick.Symbol]++
		mu.Unlock()
		return nil
	})

	cfg := NewConfig([]string{"ACME", "GLOBEX"})
	cfg.Interval = 5 * time.Millisecond
	sf := NewSynthetic(nil, b, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	sf.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if seen["ACME"] == 0 || seen["GLOBEX"] == 0 {
		t.Fatalf("expected ticks for both symbols, got %+v", seen)
	}
}

func TestSynthetic_PricesStayPositive(t *testing.T) {
	sf := NewSynthetic(nil, bus.New(nil), NewConfig([]string{"ACME"}))
	price := 0.02
	for i := 0; i < 10_000; i++ {
		price = sf.walk(price)
		if price <= 0 {
			t.Fatalf("price went non-positive after %d steps: %f", i, price)
		}
	}
}
