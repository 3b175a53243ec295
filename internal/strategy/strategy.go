// Package strategy provides the strategy engine and its built-in
// mean-reversion strategy (§4.E). A Strategy receives raw ticks and emits
// Signals; the Engine owns registration, tick dispatch, and publishing
// signals onto the bus.
package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// Strategy is the capability set every trading strategy must implement.
type Strategy interface {
	// Name returns the strategy's unique identifier, used as StrategyID.
	Name() string

	// Symbols returns the set of symbols this strategy cares about.
	Symbols() []string

	// OnTick is called for every tick of an interested symbol. It may
	// update internal rolling state and returns a Signal, or nil to skip.
	OnTick(tick model.Tick) *model.Signal

	// Reset clears all internal state, used for test isolation.
	Reset()
}

// Engine dispatches ticks to registered strategies and publishes the
// resulting signals onto the bus.
type Engine struct {
	logger     *slog.Logger
	b          *bus.Bus
	strategies []Strategy
	bySymbol   map[string][]Strategy
}

// NewEngine creates an Engine and subscribes it to TICK.
func NewEngine(logger *slog.Logger, b *bus.Bus) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:   logger,
		b:        b,
		bySymbol: make(map[string][]Strategy),
	}
	b.Subscribe(model.EventTick, e.onTick)
	return e
}

// Register adds a strategy to the engine and indexes it by symbol.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
	for _, sym := range s.Symbols() {
		e.bySymbol[sym] = append(e.bySymbol[sym], s)
	}
}

func (e *Engine) onTick(ctx context.Context, evt model.Event) error {
	if evt.Tick == nil {
		return fmt.Errorf("strategy engine: TICK event missing payload")
	}
	tick := *evt.Tick

	interested := e.bySymbol[tick.Symbol]
	if len(interested) == 0 {
		return nil
	}

	// Within one tick, strategies are independent and run concurrently;
	// across ticks, per-strategy ordering matches tick arrival because
	// onTick is itself invoked serially by the bus per TICK subscriber.
	type result struct {
		sig *model.Signal
	}
	results := make(chan result, len(interested))
	for _, s := range interested {
		go func(strat Strategy) {
			results <- result{sig: strat.OnTick(tick)}
		}(s)
	}

	for range interested {
		r := <-results
		if r.sig == nil {
			continue
		}
		e.b.Publish(ctx, model.NewSignalEvent(signalEventID(*r.sig), *r.sig))
	}
	return nil
}

func signalEventID(s model.Signal) string {
	return fmt.Sprintf("sig-%s-%s-%d", s.StrategyID, s.Symbol, s.Timestamp.UnixNano())
}
