// Package feed provides the core's tick producer. The synthetic feed
// generates an in-process random walk per symbol, adapted from the
// teacher's standalone tickserver WebSocket simulator into a direct bus
// publisher gated by USE_SYNTHETIC_FEED.
package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// Config tunes the synthetic feed.
type Config struct {
	Symbols    []string
	Interval   time.Duration
	SpreadBps  int64 // half-spread in basis points, applied around last
}

// NewConfig returns feed defaults: a 100ms tick interval and a 5bps
// half-spread.
func NewConfig(symbols []string) Config {
	return Config{
		Symbols:   symbols,
		Interval:  100 * time.Millisecond,
		SpreadBps: 5,
	}
}

type instrument struct {
	symbol string
	last   float64
}

// Synthetic publishes a random-walk Tick per symbol onto the bus every
// Interval, until its context is cancelled.
type Synthetic struct {
	logger *slog.Logger
	b      *bus.Bus
	cfg    Config
	rng    *rand.Rand
}

// NewSynthetic creates a Synthetic feed seeded at 100.00 per symbol.
func NewSynthetic(logger *slog.Logger, b *bus.Bus, cfg Config) *Synthetic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthetic{
		logger: logger,
		b:      b,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks, publishing ticks until ctx is cancelled. Per §5's suspension
// points, the only suspension here is waiting on the next tick interval.
func (s *Synthetic) Run(ctx context.Context) {
	instruments := make([]instrument, len(s.cfg.Symbols))
	for i, sym := range s.cfg.Symbols {
		instruments[i] = instrument{symbol: sym, last: 100.00}
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("synthetic feed started", slog.Int("symbols", len(instruments)), slog.Duration("interval", s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("synthetic feed stopped")
			return
		case <-ticker.C:
			for i := range instruments {
				instruments[i].last = s.walk(instruments[i].last)
				tick := s.tickFor(instruments[i])
				s.b.Publish(ctx, model.NewTickEvent(tickEventID(tick), tick))
			}
		}
	}
}

// walk applies a tiny random walk (±0.1%) to simulate price movement,
// flooring at one cent to keep the series strictly positive.
func (s *Synthetic) walk(price float64) float64 {
	pct := (s.rng.Float64()*0.2 - 0.1) / 100.0
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

func (s *Synthetic) tickFor(in instrument) model.Tick {
	last := decimal.NewFromFloat(in.last).Round(6)
	spread := last.Mul(decimal.NewFromInt(s.cfg.SpreadBps)).Div(decimal.NewFromInt(10_000))
	return model.Tick{
		Symbol:    in.symbol,
		Last:      last,
		Bid:       last.Sub(spread),
		Ask:       last.Add(spread),
		Volume:    int64(s.rng.Intn(100) + 1),
		Timestamp: time.Now().UTC(),
	}
}

func tickEventID(t model.Tick) string {
	return "tick-" + t.Symbol + "-" + t.Timestamp.Format(time.RFC3339Nano)
}
