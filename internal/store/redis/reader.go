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

// ReaderConfig configures the Redis cache reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader reads the cached portfolio snapshot and last prices, and lets the
// query surface subscribe to the 1Hz snapshot fan-out.
type Reader struct {
	logger *slog.Logger
	client *goredis.Client
}

// NewReader creates a Reader and pings the server.
func NewReader(logger *slog.Logger, cfg ReaderConfig) (*Reader, error) {
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

	logger.Info("redis reader connected", slog.String("addr", cfg.Addr))
	return &Reader{logger: logger, client: client}, nil
}

// Snapshot reads the latest cached portfolio snapshot, or ok=false if the
// cache hasn't been populated yet (e.g. first second after boot, or TTL
// expiry after an idle period).
func (r *Reader) Snapshot(ctx context.Context) (model.PortfolioSnapshot, bool, error) {
	data, err := r.client.Get(ctx, snapshotKey).Result()
	if err == goredis.Nil {
		return model.PortfolioSnapshot{}, false, nil
	}
	if err != nil {
		return model.PortfolioSnapshot{}, false, fmt.Errorf("redis get snapshot: %w", err)
	}
	var snap model.PortfolioSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return model.PortfolioSnapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// LastPrice reads the cached last mid price for a symbol.
func (r *Reader) LastPrice(ctx context.Context, symbol string) (string, bool, error) {
	price, err := r.client.Get(ctx, lastPriceKeyStem+symbol).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get last price %s: %w", symbol, err)
	}
	return price, true, nil
}

// SubscribeSnapshots subscribes to the snapshot Pub/Sub channel, returning
// the handle so the caller (the query surface's WebSocket hub) can forward
// each publish to connected clients. Blocks the caller only via .Channel().
func (r *Reader) SubscribeSnapshots(ctx context.Context) *goredis.PubSub {
	pubsub := r.client.Subscribe(ctx, snapshotChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		r.logger.Warn("redis snapshot subscribe failed", slog.String("channel", snapshotChannel), slog.Any("error", err))
		pubsub.Close()
		return nil
	}
	return pubsub
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
