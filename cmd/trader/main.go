// Command trader is the entrypoint for the trading core: it wires the bus,
// feed, strategy engine, order manager, risk manager, position tracker,
// persistence sink, optional Redis cache, metrics/health server, and query
// surface together, then runs until signalled to stop.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"trading-systemv1/config"
	"trading-systemv1/internal/api"
	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/execution"
	"trading-systemv1/internal/feed"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/metrics"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/notification"
	"trading-systemv1/internal/portfolio"
	"trading-systemv1/internal/risk"
	"trading-systemv1/internal/store/redis"
	"trading-systemv1/internal/store/sqlite"
	"trading-systemv1/internal/strategy"
)

// drainDeadline bounds the graceful stop of the API and metrics HTTP
// servers. It does not bound the wait for the feed and broadcast
// goroutines, and pending fill timers are cancelled rather than drained.
const drainDeadline = 5 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init("trading-core", cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("trader exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	b := bus.New(log)

	m := metrics.NewMetrics()
	b.SetRecorder(m)
	health := metrics.NewHealthStatus()

	// --- construction order: downstream consumers first, producers last ---

	writer, err := sqlite.New(log, sqlite.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		return err
	}
	sqlite.NewSink(log, b, writer)
	health.SetSQLiteOK(true)

	reader, err := sqlite.NewReader(log, cfg.SQLitePath)
	if err != nil {
		return err
	}

	var cache *redis.Cache
	var bufferedWriter *redis.BufferedWriter
	var redisReader *redis.Reader
	rw, err := redis.New(log, redis.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		log.Warn("redis cache unavailable, continuing without it", slog.Any("error", err))
		health.SetRedisOK(false)
	} else {
		health.SetRedisOK(true)
		cb := redis.NewCircuitBreaker(5, 10*time.Second)
		cb.OnStateChange = func(from, to redis.State) {
			m.RedisCircuitBreakerState.Set(float64(to))
		}
		bufferedWriter = redis.NewBufferedWriter(ctx, rw, cb, 10_000)

		redisReader, err = redis.NewReader(log, redis.ReaderConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn("redis snapshot reader unavailable, API will broadcast from the local tracker", slog.Any("error", err))
			redisReader = nil
		}
	}

	tracker := portfolio.New(log, b)

	limits := risk.Limits{
		MaxOrderValue:   parseDecimalOrZero(cfg.MaxOrderValue),
		MaxPositionSize: cfg.MaxPositionSize,
		MaxDrawdownPct:  parseDecimalOrZero(cfg.MaxDrawdownPct),
	}
	risk.New(log, b, limits, tracker)
	notification.NewBusBridge(log, b, buildNotifier(cfg))

	execCfg := execution.NewConfig()
	execCfg.RiskWait = cfg.RiskWait()
	execCfg.SlippageBps = cfg.SlippageBps
	orderMgr := execution.New(log, b, execCfg)

	engine := strategy.NewEngine(log, b)
	engine.Register(strategy.NewMeanReversion("mean-reversion", cfg.Symbols, cfg.StrategyWindow, cfg.StrategyEntryZ, 0))

	apiServer := api.NewServer(log, cfg.APIAddr, b, api.Deps{
		Tracker:    tracker,
		Reader:     reader,
		Manager:    orderMgr,
		RedisCache: redisReader,
	})

	metricsServer := metrics.NewServer(cfg.MetricsAddr, health)

	if bufferedWriter != nil {
		cache = redis.NewCache(log, b, bufferedWriter, tracker)
	}

	b.Subscribe(model.EventTick, func(ctx context.Context, evt model.Event) error {
		if evt.Tick != nil {
			health.SetFeedConnected(true)
			health.SetLastTickTime(evt.Tick.Timestamp)
		}
		return nil
	})
	b.Subscribe(model.EventFill, func(ctx context.Context, evt model.Event) error {
		if evt.Fill != nil {
			m.OrdersTotal.WithLabelValues(string(model.Filled)).Inc()
		}
		return nil
	})
	b.Subscribe(model.EventRiskBreach, func(ctx context.Context, evt model.Event) error {
		if evt.RiskBreach != nil {
			m.RiskBreaches.WithLabelValues(string(evt.RiskBreach.Rule)).Inc()
		}
		return nil
	})

	metricsServer.Start()
	apiServer.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		apiServer.RunBroadcastLoop(gctx)
		return nil
	})

	if cfg.UseSyntheticFeed {
		sf := feed.NewSynthetic(log, b, feed.NewConfig(cfg.Symbols))
		g.Go(func() error {
			sf.Run(gctx)
			return nil
		})
	}

	log.Info("trading core started",
		slog.Bool("synthetic_feed", cfg.UseSyntheticFeed),
		slog.Any("symbols", cfg.Symbols),
		slog.String("api_addr", cfg.APIAddr),
		slog.String("metrics_addr", cfg.MetricsAddr))

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainDeadline)
	defer cancel()

	// Cancel pending fill timers (their orders become CANCELLED), wait for
	// the feed and broadcast goroutines to return now that ctx is done, then
	// close the servers and stores.
	orderMgr.Shutdown()
	_ = g.Wait()

	apiServer.Stop(shutdownCtx)
	metricsServer.Stop(shutdownCtx)
	if cache != nil {
		cache.Close()
	}
	if bufferedWriter != nil {
		bufferedWriter.Underlying().Close()
	}
	if redisReader != nil {
		redisReader.Close()
	}
	reader.Close()
	writer.Close()

	log.Info("trading core stopped")
	return nil
}

// buildNotifier picks the most specific configured notification backend:
// Telegram if a bot token and chat ID are set, else a webhook if a URL is
// set, else a log-only notifier.
func buildNotifier(cfg *config.Config) notification.Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		return notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	if cfg.WebhookURL != "" {
		return notification.NewWebhookNotifier(cfg.WebhookURL)
	}
	return notification.NewLogNotifier()
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
