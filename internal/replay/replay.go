// Package replay drives a canned sequence of ticks through the bus at a
// configurable speed. It is the test-fixture descendant of the teacher's
// cmd/backtest candle replayer: the same timestamp-gap-scaling playback
// logic, retargeted from historical TF candles read off SQLite onto an
// in-memory Tick slice, since this core has no backtesting framework (see
// Non-goals) — only the strategy engine needs a way to be driven
// deterministically in tests.
package replay

import (
	"context"
	"strconv"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// Replayer publishes a fixed slice of ticks onto a bus, in order.
type Replayer struct {
	b *bus.Bus
}

// New creates a Replayer that publishes onto b.
func New(b *bus.Bus) *Replayer {
	return &Replayer{b: b}
}

// Run publishes every tick in order. speed controls pacing between ticks
// based on their Timestamp gap: 0 means as fast as possible (no sleep),
// 1.0 real-time, 10.0 ten times real-time. Gaps are capped at 5 seconds to
// keep a replay with a data hole from stalling a test suite.
func (r *Replayer) Run(ctx context.Context, ticks []model.Tick, speed float64) error {
	var prevTS time.Time

	for i, t := range ticks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if speed > 0 && !prevTS.IsZero() {
			gap := t.Timestamp.Sub(prevTS)
			if gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if scaled > 5*time.Second {
					scaled = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaled):
				}
			}
		}
		prevTS = t.Timestamp

		r.b.Publish(ctx, model.NewTickEvent(tickID(i, t), t))
	}
	return nil
}

func tickID(i int, t model.Tick) string {
	return "replay-" + t.Symbol + "-" + t.Timestamp.Format(time.RFC3339Nano) + "-" + strconv.Itoa(i)
}
