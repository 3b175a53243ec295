// Package redis is the optional read-through cache of the domain stack: it
// mirrors the position tracker's latest portfolio snapshot and per-symbol
// last price in Redis, and fans the snapshot out over Pub/Sub at 1Hz for the
// query surface's WebSocket push channel to consume across API instances.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"trading-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	snapshotKey      = "portfolio:snapshot:latest"
	snapshotChannel  = "pub:portfolio:snapshot"
	defaultCacheTTL  = 30 * time.Minute
	lastPriceKeyStem = "price:last:"
)

// WriterConfig configures the Redis cache writer.
type WriterConfig struct {
	Addr     string
	Password string
	DB       int
}

// Writer writes the latest portfolio snapshot and per-symbol last price to
// Redis, publishing the snapshot for 1Hz WebSocket fan-out.
type Writer struct {
	logger *slog.Logger
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Writer and pings the server.
func New(logger *slog.Logger, cfg WriterConfig) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("redis connected", slog.String("addr", cfg.Addr))
	return &Writer{logger: logger, client: client}, nil
}

// writeSnapshot sets the cached snapshot and publishes it for subscribers,
// in a single pipeline roundtrip.
func (w *Writer) writeSnapshot(ctx context.Context, snap model.PortfolioSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := w.client.Pipeline()
	pipe.Set(ctx, snapshotKey, data, defaultCacheTTL)
	pipe.Publish(ctx, snapshotChannel, data)
	_, err = pipe.Exec(ctx)
	if err != nil {
		w.logger.Warn("redis snapshot pipeline error", slog.Any("error", err))
	}
	return err
}

// writeLastPrice caches the last mid price observed for a symbol.
func (w *Writer) writeLastPrice(ctx context.Context, symbol string, price string) error {
	err := w.client.Set(ctx, lastPriceKeyStem+symbol, price, defaultCacheTTL).Err()
	if err != nil {
		w.logger.Warn("redis last price write error", slog.String("symbol", symbol), slog.Any("error", err))
	}
	return err
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
