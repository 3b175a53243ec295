package redis

import (
	"context"
	"log/slog"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// SnapshotSource is the narrow read view the cache needs to take periodic
// portfolio snapshots; the position tracker satisfies it.
type SnapshotSource interface {
	Snapshot() model.PortfolioSnapshot
}

// Cache wires a BufferedWriter to the bus: it mirrors every tick's mid
// price and takes a portfolio snapshot once a second, matching the query
// surface's 1Hz push cadence described in §6.
type Cache struct {
	logger *slog.Logger
	bw     *BufferedWriter
	source SnapshotSource

	stop chan struct{}
}

// NewCache creates a Cache, subscribes it to TICK, and starts its 1Hz
// snapshot loop. Call Close to stop the loop on shutdown.
func NewCache(logger *slog.Logger, b *bus.Bus, bw *BufferedWriter, source SnapshotSource) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{logger: logger, bw: bw, source: source, stop: make(chan struct{})}
	b.Subscribe(model.EventTick, c.onTick)
	go c.snapshotLoop()
	return c
}

func (c *Cache) onTick(ctx context.Context, evt model.Event) error {
	if evt.Tick == nil {
		return nil
	}
	if err := c.bw.WriteLastPrice(evt.Tick.Symbol, evt.Tick.Mid().String()); err != nil {
		c.logger.Warn("cache last price failed", slog.String("symbol", evt.Tick.Symbol), slog.Any("error", err))
	}
	return nil
}

func (c *Cache) snapshotLoop() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			snap := c.source.Snapshot()
			if err := c.bw.WriteSnapshot(snap); err != nil {
				c.logger.Warn("cache snapshot failed", slog.Any("error", err))
			}
		}
	}
}

// Close stops the 1Hz snapshot loop.
func (c *Cache) Close() {
	close(c.stop)
}
