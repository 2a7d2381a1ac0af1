package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/agilanloganathan/coinfox/internal/alert"
	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/agilanloganathan/coinfox/internal/infra"
	"github.com/agilanloganathan/coinfox/internal/market"
	"github.com/agilanloganathan/coinfox/internal/notify"
	"github.com/agilanloganathan/coinfox/internal/storage"
)

// Bootstrap owns the wiring of the whole pipeline. Every collaborator
// is an explicit instance held here, so tests can build the same graph
// with fakes swapped in.
type Bootstrap struct {
	Config *infra.Config

	LocalKV    *storage.SQLiteKV
	Alerts     *alert.Store
	Tickers    *market.TickerStore
	Aggregator *market.Aggregator
	Stream     *market.StreamClient
	Monitor    *alert.Monitor
	Feed       *notify.Feed
	Dispatcher *notify.Dispatcher
}

// NewBootstrap creates an empty Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, sets up logging and storage and
// constructs the full component graph. Nothing is started yet.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Coinfox...")

	// 1. Load config
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Storage tiers
	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dataDir := filepath.Join(infra.GetWorkspaceDir(), "data")
		if err := infra.EnsureDir(dataDir); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		dbPath = filepath.Join(dataDir, "coinfox.db")
	}
	local, err := storage.NewSQLiteKV(dbPath)
	if err != nil {
		return err
	}
	b.LocalKV = local

	var kv storage.KV = local
	if cfg.RemoteEnabled() {
		remote := storage.NewRemoteKV(cfg.Storage.RemoteURL, cfg.Storage.UserID, cfg.Storage.UserSecret)
		kv = storage.NewFallbackKV(remote, local)
		slog.Info("✅ Remote storage tier enabled", "url", cfg.Storage.RemoteURL)
	} else {
		slog.Info("✅ Local-only storage", "path", dbPath)
	}

	// 4. Alert store (loads persisted alerts)
	b.Alerts = alert.NewStore(kv)
	if err := b.Alerts.LoadAll(ctx); err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	slog.Info("✅ Alert store loaded", "count", len(b.Alerts.All()))

	// 5. Notification side
	b.Feed = notify.NewFeed()
	var pusher notify.Pusher = notify.NewDesktopPusher()
	b.Dispatcher = notify.NewDispatcher(b.Alerts, b.Feed, pusher, nil)

	// Inline evaluation hook shared by the stream and the aggregator.
	// Every write into the ticker store immediately checks the active
	// alerts for that symbol; the dispatcher deduplicates.
	hook := func(symbol string, tick domain.Ticker) {
		for _, a := range b.Alerts.QueryBySymbol(symbol) {
			if alert.ShouldTrigger(*a, tick.Price) {
				b.Dispatcher.Dispatch(ctx, a, tick)
			}
		}
	}

	// 6. Market data
	b.Tickers = market.NewTickerStore()
	b.Aggregator = market.NewAggregator(
		b.Tickers,
		market.DefaultSources(cfg),
		cfg.Market.Symbols,
		cfg.PollInterval(),
		hook,
	)
	b.Stream = market.NewStreamClient(cfg.Stream.URL, b.Tickers, hook)
	b.Stream.SetBackoff(time.Duration(cfg.Stream.BaseDelayMS)*time.Millisecond, cfg.Stream.MaxAttempts)

	// 7. Backup poller, dispatching through the same convergence point
	b.Monitor = alert.NewMonitor(
		b.Alerts,
		b.Tickers,
		b.Aggregator,
		b.Dispatcher.Dispatch,
		cfg.CheckInterval(),
		cfg.StaleAfter(),
	)

	return nil
}

// Start launches the aggregator, the streaming client and the alert
// monitor. Each runs its own goroutine until Stop or ctx cancellation.
func (b *Bootstrap) Start(ctx context.Context) {
	b.Aggregator.Start(ctx)
	b.Stream.Start(ctx)
	for _, sym := range b.Config.Market.Symbols {
		// Keep the stream subscribed for every tracked symbol. The
		// returned unsubscribe funcs are dropped; Stop tears the
		// connection down wholesale.
		b.Stream.Subscribe(sym, nil)
	}
	b.Monitor.Start(ctx)
	slog.Info("✨ Pipeline running",
		"symbols", b.Config.Market.Symbols,
		"poll_interval", b.Config.PollInterval(),
		"check_interval", b.Config.CheckInterval())
}

// Stop shuts the pipeline down in reverse dependency order.
func (b *Bootstrap) Stop() {
	if b.Monitor != nil {
		b.Monitor.Stop()
	}
	if b.Stream != nil {
		b.Stream.Stop()
	}
	if b.Aggregator != nil {
		b.Aggregator.Stop()
	}
	if b.LocalKV != nil {
		if err := b.LocalKV.Close(); err != nil {
			slog.Warn("failed to close local store", "err", err)
		}
	}
	slog.Info("👋 Pipeline stopped")
}
