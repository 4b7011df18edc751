// Package service wires the trading components into a runnable process:
// live signal evaluation on a schedule, or a historical backtest run.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/rsowell/replay/backtest"
	"github.com/rsowell/replay/database"
	"github.com/rsowell/replay/engine"
	"github.com/rsowell/replay/fetch"
	"github.com/rsowell/replay/position"
	"github.com/rsowell/replay/shared"
	"github.com/rsowell/replay/store"
	"github.com/rsowell/replay/strategy"
)

// TraderConfig represents the configuration struct for the trader service.
type TraderConfig struct {
	// Network is the network the tracked pool trades on.
	Network string
	// Pool is the tracked pool address.
	Pool string
	// Market is the market label for the tracked pool.
	Market string
	// Timeframe is the evaluated candle timeframe.
	Timeframe shared.Timeframe
	// HistoryLimit is the candle window size kept warm for evaluation.
	HistoryLimit int
	// StrategyName is the registered strategy to run.
	StrategyName string
	// PositionSize is the fixed per-trade size.
	PositionSize float64
	// CheckInterval is the live evaluation interval.
	CheckInterval time.Duration
	// StartingBalance is the virtual balance for backtests.
	StartingBalance float64
	// ForceClose closes a dangling backtest position at the final close.
	ForceClose bool
	// Backtest is the backtesting flag.
	Backtest bool
	// DatabaseEndpoint represents the database connection endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string
	// Executor is the execution collaborator for live runs. Defaults to
	// paper execution at the latest close when nil.
	Executor shared.Executor
	// Cancel is the context cancellation function.
	Cancel context.CancelFunc
}

// Validate asserts the config has sane inputs.
func (cfg *TraderConfig) Validate() error {
	var errs error

	if cfg.Pool == "" {
		errs = errors.Join(errs, fmt.Errorf("pool cannot be an empty string"))
	}
	if cfg.Network == "" {
		errs = errors.Join(errs, fmt.Errorf("network cannot be an empty string"))
	}
	if cfg.StrategyName == "" {
		errs = errors.Join(errs, fmt.Errorf("strategy name cannot be an empty string"))
	}
	if cfg.HistoryLimit <= 0 {
		errs = errors.Join(errs, fmt.Errorf("history limit must be positive"))
	}
	if cfg.PositionSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("position size must be positive"))
	}
	if cfg.DatabaseEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Cancel == nil {
		errs = errors.Join(errs, fmt.Errorf("context cancellation function cannot be nil"))
	}

	switch cfg.Backtest {
	case true:
		if cfg.StartingBalance <= 0 {
			errs = errors.Join(errs, fmt.Errorf("starting balance must be positive"))
		}
	case false:
		if cfg.CheckInterval <= 0 {
			errs = errors.Join(errs, fmt.Errorf("check interval must be positive"))
		}
	}

	return errs
}

// Trader represents the trading service.
type Trader struct {
	cfg          *TraderConfig
	db           *database.Database
	candleStore  *store.CandleStore
	strategy     strategy.Strategy
	machine      *position.Machine
	evaluator    *engine.Evaluator
	jobScheduler gocron.Scheduler
	logger       *zerolog.Logger
}

// NewTrader initializes a new trader service.
func NewTrader(ctx context.Context, cfg *TraderConfig) (*Trader, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	logger := log.With().Str("service", "trader").Logger()

	dbLogger := logger.With().Str("component", "database").Logger()
	db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
		Endpoint: cfg.DatabaseEndpoint,
		User:     cfg.DatabaseUser,
		Pass:     cfg.DatabasePass,
		Logger:   &dbLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	gecko, err := fetch.NewGeckoClient(&fetch.GeckoConfig{
		BaseURL: fetch.BaseURL,
		Network: cfg.Network,
		Pool:    cfg.Pool,
		Market:  cfg.Market,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gecko client: %w", err)
	}

	storeLogger := logger.With().Str("component", "candlestore").Logger()
	candleStore, err := store.NewCandleStore(&store.StoreConfig{
		Fetcher: gecko,
		Storer:  db,
		Logger:  &storeLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating candle store: %w", err)
	}

	strategyLogger := logger.With().Str("component", "strategy").Logger()
	strat, err := strategy.New(cfg.StrategyName, &strategy.Params{
		Source:    candleStore,
		Timeframe: cfg.Timeframe,
		Logger:    &strategyLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating strategy: %w", err)
	}

	machineLogger := logger.With().Str("component", "position").Logger()
	machine := position.NewMachine(&position.MachineConfig{Logger: &machineLogger})

	// Restore the persisted run state before evaluating anything.
	state, err := db.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading state snapshot: %w", err)
	}
	if state != nil {
		err = machine.Restore(state)
		if err != nil {
			return nil, fmt.Errorf("restoring position state: %w", err)
		}
		err = strat.LoadState(state.Strategy)
		if err != nil {
			return nil, fmt.Errorf("restoring strategy state: %w", err)
		}

		logger.Info().Msgf("state restored: position %s", state.Position.String())
	}

	trader := &Trader{
		cfg:         cfg,
		db:          db,
		candleStore: candleStore,
		strategy:    strat,
		machine:     machine,
		logger:      &logger,
	}

	if !cfg.Backtest {
		executor := cfg.Executor
		if executor == nil {
			executorLogger := logger.With().Str("component", "executor").Logger()
			executor = NewPaperExecutor(candleStore, cfg.Timeframe, &executorLogger)
		}

		evaluator, err := engine.NewEvaluator(&engine.EvaluatorConfig{
			Strategy:     strat,
			Machine:      machine,
			Executor:     executor,
			PositionSize: cfg.PositionSize,
			PersistState: db.SaveState,
			Logger:       &logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating evaluator: %w", err)
		}

		jobScheduler, err := gocron.NewScheduler()
		if err != nil {
			return nil, fmt.Errorf("creating job scheduler: %w", err)
		}

		trader.evaluator = evaluator
		trader.jobScheduler = jobScheduler
	}

	return trader, nil
}

// handleTick evaluates one live polling tick.
func (t *Trader) handleTick(ctx context.Context) {
	err := t.candleStore.UpdateLatest(ctx, t.cfg.Timeframe)
	if err != nil {
		t.logger.Error().Msgf("updating latest candles: %v", err)
		return
	}

	window, err := t.candleStore.GetCandles(ctx, t.cfg.Timeframe, 1)
	if err != nil && !errors.Is(err, shared.ErrInsufficientHistory) {
		t.logger.Error().Msgf("fetching latest candle: %v", err)
		return
	}
	if len(window) == 0 {
		t.logger.Warn().Msg("no candles available yet, skipping tick")
		return
	}

	latest := window[len(window)-1]
	signal, trade, err := t.evaluator.EvaluateTick(ctx, latest.Close, latest.Date)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrConfig), errors.Is(err, shared.ErrInvalidTransition):
			// Programmer errors halt the run.
			t.logger.Error().Msgf("halting run: %v", err)
			t.cfg.Cancel()
		default:
			t.logger.Error().Msgf("evaluating tick: %v", err)
		}
		return
	}

	if signal != shared.Hold {
		t.logger.Info().Msgf("%s signal acted on at %.4f", signal.String(), latest.Close)
	}
	if trade != nil {
		t.logger.Info().Msgf("trade closed: entry %.4f, exit %.4f, pnl %.4f (%+.2f%%)",
			trade.EntryPrice, trade.ExitPrice, trade.PNL, trade.PNLPercent)
	}
}

// RunBacktest replays the configured candle window through the configured
// strategy and logs the per-trade lines and summary.
func (t *Trader) RunBacktest(ctx context.Context) (*backtest.Result, error) {
	series, err := t.candleStore.GetCandles(ctx, t.cfg.Timeframe, t.cfg.HistoryLimit)
	if err != nil {
		if !errors.Is(err, shared.ErrInsufficientHistory) {
			return nil, fmt.Errorf("fetching backtest series: %w", err)
		}
		t.logger.Warn().Msgf("running on degraded history: %v", err)
	}

	simulator, err := backtest.NewSimulator(&backtest.SimulatorConfig{
		Series: series,
		NewStrategy: func(source shared.CandleSource) (strategy.Strategy, error) {
			strategyLogger := t.logger.With().Str("component", "strategy").Logger()
			return strategy.New(t.cfg.StrategyName, &strategy.Params{
				Source:    source,
				Timeframe: t.cfg.Timeframe,
				Logger:    &strategyLogger,
			})
		},
		StartingBalance: t.cfg.StartingBalance,
		PositionSize:    t.cfg.PositionSize,
		ForceClose:      t.cfg.ForceClose,
		Logger:          t.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating simulator: %w", err)
	}

	result, err := simulator.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("running backtest: %w", err)
	}

	for idx := range result.Trades {
		trade := &result.Trades[idx]
		t.logger.Info().Msgf("trade %d: entry %.4f @ %s, exit %.4f @ %s, pnl %.4f (%+.2f%%)",
			idx+1, trade.EntryPrice, trade.EntryTime.Format(shared.DateLayout),
			trade.ExitPrice, trade.ExitTime.Format(shared.DateLayout),
			trade.PNL, trade.PNLPercent)
	}

	t.logger.Info().Msgf("backtest complete: %d trades, win rate %.2f, avg win %.4f, avg loss %.4f, balance %.2f -> %.2f",
		len(result.Trades), result.WinRate, result.AvgWin, result.AvgLoss,
		result.StartingBalance, result.EndingBalance)

	return result, nil
}

// Run manages the lifecycle processes of the trader service.
func (t *Trader) Run(ctx context.Context) error {
	if t.cfg.Backtest {
		_, err := t.RunBacktest(ctx)
		return err
	}

	_, err := t.jobScheduler.NewJob(
		gocron.DurationJob(t.cfg.CheckInterval),
		gocron.NewTask(func() { t.handleTick(ctx) }),
	)
	if err != nil {
		return fmt.Errorf("scheduling evaluation job: %w", err)
	}

	t.jobScheduler.Start()
	defer func() {
		err := t.jobScheduler.Shutdown()
		if err != nil {
			t.logger.Error().Msgf("shutting down job scheduler: %v", err)
		}
	}()

	t.logger.Info().Msgf("trader running: %s %s every %s",
		t.cfg.Market, t.cfg.Timeframe.String(), t.cfg.CheckInterval.String())

	<-ctx.Done()
	return nil
}
