package strategy

import (
	"context"
	"testing"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/replay"
)

// TestEngine_ReplayHarnessProducesExpectedSignals drives a canned tick
// sequence through the engine via the replay harness instead of calling
// OnTick directly, exercising the same bus.Subscribe/Publish path
// production code uses.
func TestEngine_ReplayHarnessProducesExpectedSignals(t *testing.T) {
	b := bus.New(nil)
	engine := NewEngine(nil, b)
	engine.Register(NewMeanReversion("mean-reversion", []string{"ACME"}, 20, 2.0, 0))

	var signals []model.Signal
	b.Subscribe(model.EventSignal, func(ctx context.Context, evt model.Event) error {
		signals = append(signals, *evt.Signal)
		return nil
	})

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var ticks []model.Tick
	for i := 0; i < 19; i++ {
		ticks = append(ticks, tickAtTime("ACME", 100, base.Add(time.Duration(i)*time.Millisecond)))
	}
	ticks = append(ticks, tickAtTime("ACME", 90, base.Add(19*time.Millisecond)))

	r := replay.New(b)
	ctx := context.Background()
	if err := r.Run(ctx, ticks, 0); err != nil {
		t.Fatalf("replay run: %v", err)
	}

	if len(signals) != 1 {
		t.Fatalf("expected exactly 1 signal, got %d: %+v", len(signals), signals)
	}
	if signals[0].Side != model.Buy {
		t.Fatalf("expected BUY signal, got %s", signals[0].Side)
	}
}

func tickAtTime(symbol string, price float64, ts time.Time) model.Tick {
	tick := tickAt(symbol, price)
	tick.Timestamp = ts
	return tick
}
