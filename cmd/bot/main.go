// Binary bot monitors configured symbols for moving-average crossovers and
// places one order per detected signal.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/rennengfeng/Ma-Trade-BOT/internal/config"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/engine"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/exchange"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/execution"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/ledger"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/metrics"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/notify"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/util"
	"github.com/rennengfeng/Ma-Trade-BOT/internal/venue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := util.NewLogger("info", false)
		fallback.Fatal().Err(err).Msg("load config")
	}
	cfg.ApplyEnv()

	log := util.NewLogger(cfg.App.LogLevel, cfg.App.Env == "dev")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	led, err := ledger.Open(cfg.Trading.LedgerPath,
		ledger.WithMinInterval(time.Duration(cfg.Trading.MinRetriggerSecs)*time.Second))
	if err != nil {
		log.Fatal().Err(err).Msg("open ledger")
	}

	var trader venue.Venue
	if cfg.Trading.Live {
		trader = venue.NewBinance(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet, "", log)
		log.Info().Bool("testnet", cfg.Exchange.Testnet).Msg("live trading enabled")
	} else {
		trader = venue.NewPaper(log)
		log.Info().Msg("paper trading mode")
	}

	sink := notify.Multi{notify.NewLogger(log)}
	if cfg.Telegram.Enabled {
		sink = append(sink, notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, "", log))
	}

	coord, err := execution.NewCoordinator(trader, led, sink, cfg.Trading.Quantity, log,
		execution.WithMaxAttempts(cfg.Trading.MaxAttempts),
		execution.WithRateLimit(cfg.Trading.OrdersPerSecond, cfg.Trading.OrderBurst))
	if err != nil {
		log.Fatal().Err(err).Msg("build coordinator")
	}

	feedOpts := []exchange.Option{
		exchange.WithKlineInterval(cfg.Exchange.KlineInterval),
	}
	if cfg.Exchange.PollIntervalMs > 0 {
		feedOpts = append(feedOpts, exchange.WithPollInterval(time.Duration(cfg.Exchange.PollIntervalMs)*time.Millisecond))
	}
	feed := exchange.NewFeed(cfg.Exchange.Provider, cfg.Exchange.Symbols, log, feedOpts...)

	eng, err := engine.New(engine.Config{
		Symbols:     feed.Symbols(),
		ShortWindow: cfg.Strategy.ShortWindow,
		LongWindow:  cfg.Strategy.LongWindow,
	}, feed, coord, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	log.Info().
		Strs("symbols", feed.Symbols()).
		Int("short", cfg.Strategy.ShortWindow).
		Int("long", cfg.Strategy.LongWindow).
		Msg("engine started")
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("engine stopped")
	}
	log.Info().Msg("shutdown complete")
}
