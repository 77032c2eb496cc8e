// Command bot runs the grid market maker.
//
// Architecture:
//
//	cmd/bot            flag-free entry point: config, logging, signals
//	internal/config    environment-first settings (ZO_ prefix, optional YAML)
//	internal/wire      request framing, ed25519 signing, action/receipt codec
//	internal/exchange  venue adapter: sessions, orders, book reads, pacing
//	internal/tracker   local order model (the venue has no order query)
//	internal/feed      OHLCV candles (Binance REST or websocket stream)
//	internal/indicator RSI/ADX engine
//	internal/risk      regime gate with cool-down
//	internal/strategy  grid planner, differ, position record
//	internal/engine    tick loop, failsafe, terminal sequence
//
// The process exits 0 on SIGINT/SIGTERM after the terminal sequence, and
// nonzero when configuration or authentication fails.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zo-gridbot/internal/config"
	"zo-gridbot/internal/engine"
	"zo-gridbot/internal/exchange"
	"zo-gridbot/internal/feed"
	"zo-gridbot/internal/indicator"
	"zo-gridbot/internal/risk"
	"zo-gridbot/internal/strategy"
	"zo-gridbot/internal/tracker"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitAuth   = 2
	exitRun    = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitConfig
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitConfig
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting",
		"market", cfg.Exchange.Symbol, "market_id", cfg.Exchange.MarketID,
		"dry_run", cfg.Exchange.DryRun, "feed", cfg.Feed.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book := tracker.New()
	client, err := exchange.New(cfg.ExchangeConfig(), book, logger)
	if err != nil {
		logger.Error("exchange setup failed", "error", err)
		return exitAuth
	}

	candleFeed := buildFeed(ctx, cfg, logger)
	indicators := indicator.New(candleFeed, cfg.Feed.Symbol, cfg.Feed.Interval, cfg.Feed.Period)
	gate := risk.New(cfg.Thresholds(), logger)
	position := strategy.NewPosition(cfg.InitialPosition())

	eng := engine.New(client, indicators, gate, position, engine.Options{
		Params:            cfg.GridParams(),
		Tick:              time.Duration(cfg.Engine.TickSeconds) * time.Second,
		CooldownTick:      time.Duration(cfg.Engine.CooldownTickSeconds) * time.Second,
		FlattenOnCooldown: cfg.Engine.FlattenOnCooldown,
		FlattenOnExit:     cfg.Engine.FlattenOnExit,
	}, logger)

	if err := eng.Run(ctx); err != nil {
		if errors.Is(err, exchange.ErrAuthFailure) {
			return exitAuth
		}
		logger.Error("engine failed", "error", err)
		return exitRun
	}
	return exitOK
}

// buildFeed returns the configured candle source. In ws mode the stream
// runs for the life of the process and serves the indicator window from
// memory; rest mode fetches on every tick.
func buildFeed(ctx context.Context, cfg *config.Config, logger *slog.Logger) feed.Feed {
	rest := feed.NewBinance()
	if cfg.Feed.Mode != "ws" {
		return rest
	}
	window := 2*cfg.Feed.Period + 40
	ws := feed.NewWS(rest, cfg.Feed.Symbol, cfg.Feed.Interval, window, logger)
	go ws.Run(ctx)
	return ws
}

func newLogger(cfg config.Log) *slog.Logger {
	level, _ := config.ParseLevel(cfg.Level) // validated at boot
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
