// Command pairbot runs the automated trading engine for a single pair.
// It supports CEX.IO and Binance spot markets and is configured via a YAML
// file or command-line arguments.
//
// Usage:
//
//	pairbot --config config.yaml
//	pairbot --platform cex --pair BTC_USD
//
// Required environment variables:
//
//	For CEX.IO:  CEX_USERNAME, CEX_API_KEY, CEX_API_SECRET
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pairbot/pairbot/config"
	"github.com/pairbot/pairbot/internal/engine"
	"github.com/pairbot/pairbot/internal/engine/lifecycle"
	"github.com/pairbot/pairbot/internal/engine/sizing"
	"github.com/pairbot/pairbot/internal/exchange"
	"github.com/pairbot/pairbot/internal/exchange/binance"
	"github.com/pairbot/pairbot/internal/exchange/cex"
	"github.com/pairbot/pairbot/internal/notify"
	"github.com/pairbot/pairbot/internal/storage/journal"
	"github.com/pairbot/pairbot/internal/tui"
	"github.com/pairbot/pairbot/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	exch, err := buildExchange(cfg, logger)
	if err != nil {
		logger.Fatal("exchange setup failed", zap.Error(err))
	}

	store, err := journal.NewWALStore(cfg.JournalDir)
	if err != nil {
		logger.Fatal("journal setup failed", zap.Error(err))
	}
	defer store.Close()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, cfg.WebhookUsername, logger)
	}

	var confirmer lifecycle.Confirmer
	if !cfg.AutoExecute {
		confirmer = tui.NewConfirmer(cfg.Pair)
	}

	eng := engine.New(engine.Config{
		Pair:                  cfg.Pair,
		PublicPurchaseWindow:  cfg.PublicPurchaseWindow,
		PublicSaleWindow:      cfg.PublicSaleWindow,
		AccountPurchaseWindow: cfg.AccountPurchaseWindow,
		AccountSaleWindow:     cfg.AccountSaleWindow,
		Sensitivity:           cfg.Sensitivity,
		StopLine:              cfg.StopLine,
		AutoExecute:           cfg.AutoExecute,
		Sizing: sizing.Config{
			OrderCapPctOnInit:  cfg.OrderCapPctOnInit,
			OrderCapPctSteady:  cfg.OrderCapPctSteady,
			TargetReservePct:   cfg.TargetReservePct,
			ExchangeReservePct: cfg.ExchangeReservePct,
		},
	}, exch, store, notifier, confirmer, tui.Renderer{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Prepare(ctx); err != nil {
		logger.Fatal("engine initialization failed", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })
	if cfg.ListenAddr != "" {
		server := web.NewServer(cfg.ListenAddr, store, logger)
		g.Go(func() error { return server.Start(ctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("engine stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("engine stopped")
}

func buildExchange(cfg config.Config, logger *zap.Logger) (exchange.Exchange, error) {
	switch cfg.Platform {
	case config.PlatformCex:
		signer, err := exchange.NewHMACSigner(exchange.Credentials{
			Username: os.Getenv("CEX_USERNAME"),
			Key:      os.Getenv("CEX_API_KEY"),
			Secret:   os.Getenv("CEX_API_SECRET"),
		})
		if err != nil {
			return nil, err
		}
		return cex.New(cfg.Pair, signer, logger), nil
	case config.PlatformBinance:
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			logger.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		return binance.New(gobinance.NewClient(apiKey, apiSecret), cfg.Pair, logger), nil
	default:
		logger.Fatal("unsupported platform", zap.String("platform", cfg.Platform))
		return nil, nil
	}
}
