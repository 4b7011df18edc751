package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/rsowell/replay/service"
	"github.com/rsowell/replay/shared"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	timeframe, err := shared.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		log.Printf("parsing timeframe: %v", err)
		return
	}

	var checkInterval time.Duration
	if !cfg.Backtest {
		checkInterval, err = time.ParseDuration(cfg.CheckInterval)
		if err != nil {
			log.Printf("parsing check interval: %v", err)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traderCfg := service.TraderConfig{
		Network:          cfg.Network,
		Pool:             cfg.Pool,
		Market:           cfg.Market,
		Timeframe:        timeframe,
		HistoryLimit:     cfg.HistoryLimit,
		StrategyName:     cfg.Strategy,
		PositionSize:     cfg.PositionSize,
		CheckInterval:    checkInterval,
		StartingBalance:  cfg.StartingBalance,
		ForceClose:       cfg.ForceClose,
		Backtest:         cfg.Backtest,
		DatabaseEndpoint: cfg.DatabaseEndpoint,
		DatabaseUser:     cfg.DatabaseUser,
		DatabasePass:     cfg.DatabasePass,
		Cancel:           cancel,
	}
	trader, err := service.NewTrader(ctx, &traderCfg)
	if err != nil {
		log.Printf("creating trader service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	err = trader.Run(ctx)
	if err != nil {
		log.Printf("running trader service: %v", err)
	}
}
