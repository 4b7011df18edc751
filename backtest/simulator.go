// Package backtest replays immutable candle series through a strategy and a
// position state machine, simulating exact candle-close fills. Slippage,
// fees and partial fills are deliberately not modeled, a known divergence
// from live trading.
package backtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/engine"
	"github.com/rsowell/replay/position"
	"github.com/rsowell/replay/shared"
	"github.com/rsowell/replay/strategy"
)

// Result represents the aggregate outcome of a backtest run.
type Result struct {
	// Trades is the trade log in close order.
	Trades []position.Trade
	// StartingBalance is the configured virtual starting balance.
	StartingBalance float64
	// EndingBalance is the balance after all closed trades settled.
	EndingBalance float64
	// Wins is the number of trades with positive pnl.
	Wins int
	// Losses is the number of trades with zero or negative pnl.
	Losses int
	// WinRate is wins over total trades.
	WinRate float64
	// AvgWin is the mean pnl of winning trades.
	AvgWin float64
	// AvgLoss is the mean pnl of losing trades.
	AvgLoss float64
	// BestTrade is the trade with the highest pnl percent.
	BestTrade *position.Trade
	// WorstTrade is the trade with the lowest pnl percent.
	WorstTrade *position.Trade
}

// SimulatorConfig represents the configuration for the backtest simulator.
type SimulatorConfig struct {
	// Series is the immutable candle series to replay, oldest to newest.
	Series []shared.Candlestick
	// NewStrategy builds the strategy for a run from the replay candle
	// source. Each run owns an independent instance.
	NewStrategy func(source shared.CandleSource) (strategy.Strategy, error)
	// StartingBalance is the virtual balance the run starts from.
	StartingBalance float64
	// PositionSize is the fixed per-trade size.
	PositionSize float64
	// ForceClose closes any still-open position at the final candle's close
	// before computing the result. It is always an explicit choice.
	ForceClose bool
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *SimulatorConfig) Validate() error {
	var errs error

	if len(cfg.Series) == 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: candle series cannot be empty", shared.ErrConfig))
	}
	if cfg.NewStrategy == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: strategy builder cannot be nil", shared.ErrConfig))
	}
	if cfg.StartingBalance <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: starting balance must be positive, got %f",
			shared.ErrConfig, cfg.StartingBalance))
	}
	if cfg.PositionSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: position size must be positive, got %f",
			shared.ErrConfig, cfg.PositionSize))
	}

	return errs
}

// Simulator replays a candle series chronologically through one strategy and
// one position state machine. Runs hold no internal randomness, so repeated
// runs over the same series and strategy yield identical results.
type Simulator struct {
	cfg *SimulatorConfig
}

// NewSimulator initializes a new backtest simulator.
func NewSimulator(cfg *SimulatorConfig) (*Simulator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Simulator{cfg: cfg}, nil
}

// closeFillExecutor simulates fills at the close of the candle under the
// cursor.
type closeFillExecutor struct {
	cursor *Cursor
}

// ExecuteBuy executes a simulated buy at the current candle's close.
func (e *closeFillExecutor) ExecuteBuy(ctx context.Context, size float64) (float64, error) {
	candle := e.cursor.Current()
	if candle == nil {
		return 0, fmt.Errorf("no candle under replay cursor")
	}

	return candle.Close, nil
}

// ExecuteSell executes a simulated sell at the current candle's close.
func (e *closeFillExecutor) ExecuteSell(ctx context.Context, size float64) (float64, error) {
	candle := e.cursor.Current()
	if candle == nil {
		return 0, fmt.Errorf("no candle under replay cursor")
	}

	return candle.Close, nil
}

// buildResult aggregates the provided trade log into a result. The ending
// balance always matches the starting balance plus the summed trade pnl.
func buildResult(trades []position.Trade, startingBalance float64) *Result {
	result := &Result{
		Trades:          trades,
		StartingBalance: startingBalance,
		EndingBalance:   startingBalance,
	}

	var winSum, lossSum float64
	for idx := range trades {
		trade := &trades[idx]
		result.EndingBalance += trade.PNL

		switch {
		case trade.PNL > 0:
			result.Wins++
			winSum += trade.PNL
		default:
			result.Losses++
			lossSum += trade.PNL
		}

		if result.BestTrade == nil || trade.PNLPercent > result.BestTrade.PNLPercent {
			result.BestTrade = trade
		}
		if result.WorstTrade == nil || trade.PNLPercent < result.WorstTrade.PNLPercent {
			result.WorstTrade = trade
		}
	}

	if len(trades) > 0 {
		result.WinRate = float64(result.Wins) / float64(len(trades))
	}
	if result.Wins > 0 {
		result.AvgWin = winSum / float64(result.Wins)
	}
	if result.Losses > 0 {
		result.AvgLoss = lossSum / float64(result.Losses)
	}

	return result
}

// Run replays the series once. Each run owns fresh strategy and machine
// instances. Cancellation is honored between candle iterations; the partial
// result returned alongside the context error stays consistent with the
// trade log.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	cursor, err := NewCursor(s.cfg.Series)
	if err != nil {
		return nil, err
	}

	strat, err := s.cfg.NewStrategy(cursor)
	if err != nil {
		return nil, fmt.Errorf("building strategy: %w", err)
	}

	machine := position.NewMachine(&position.MachineConfig{Logger: s.cfg.Logger})
	evaluator, err := engine.NewEvaluator(&engine.EvaluatorConfig{
		Strategy:     strat,
		Machine:      machine,
		Executor:     &closeFillExecutor{cursor: cursor},
		PositionSize: s.cfg.PositionSize,
		Logger:       s.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return buildResult(machine.Trades(), s.cfg.StartingBalance), err
		}

		candle, ok := cursor.Advance()
		if !ok {
			break
		}

		_, _, err := evaluator.EvaluateTick(ctx, candle.Close, candle.Date)
		if err != nil {
			return nil, fmt.Errorf("evaluating tick at %s: %w",
				candle.Date.Format(shared.DateLayout), err)
		}
	}

	if s.cfg.ForceClose && machine.State() == shared.Long {
		final := s.cfg.Series[len(s.cfg.Series)-1]
		_, err := machine.CloseLong(final.Close, final.Date)
		if err != nil {
			return nil, fmt.Errorf("force closing open position: %w", err)
		}

		strat.OnSell(final.Close)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info().Msgf("force closed open position at final close %.4f", final.Close)
		}
	}

	return buildResult(machine.Trades(), s.cfg.StartingBalance), nil
}
