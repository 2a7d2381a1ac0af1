package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/agilanloganathan/coinfox/internal/app"
	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/agilanloganathan/coinfox/internal/infra"
)

func main() {
	// Optional .env for local development credentials.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	infra.PrintBanner(bootstrap.Config)

	bootstrap.Start(ctx)
	defer bootstrap.Stop()

	// Log every trigger batch from the backup poller and the stream.
	unsub := bootstrap.Dispatcher.Subscribe(func(a *domain.Alert) {
		slog.Info("🔔 Alert triggered",
			"symbol", a.CoinSymbol,
			"target", a.TargetPrice.String(),
			"type", string(a.AlertType))
	})
	defer unsub()

	slog.InfoContext(ctx, "✨ Coinfox running. Press Ctrl+C to exit.")

	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
