// Package engine drives one evaluation tick: strategy update, a single
// position-appropriate vote, confirmed execution and the resulting state
// transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/position"
	"github.com/rsowell/replay/shared"
	"github.com/rsowell/replay/strategy"
)

// EvaluatorConfig represents the configuration for the tick evaluator.
type EvaluatorConfig struct {
	// Strategy is the strategy evaluated per tick.
	Strategy strategy.Strategy
	// Machine is the position state machine mutated on confirmed fills.
	Machine *position.Machine
	// Executor is the execution collaborator confirming fills.
	Executor shared.Executor
	// PositionSize is the fixed per-trade size.
	PositionSize float64
	// PersistState persists the provided snapshot after every confirmed
	// transition. Optional.
	PersistState func(ctx context.Context, state *shared.StateSnapshot) error
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *EvaluatorConfig) Validate() error {
	var errs error

	if cfg.Strategy == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: strategy cannot be nil", shared.ErrConfig))
	}
	if cfg.Machine == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: position machine cannot be nil", shared.ErrConfig))
	}
	if cfg.Executor == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: executor cannot be nil", shared.ErrConfig))
	}
	if cfg.PositionSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: position size must be positive, got %f",
			shared.ErrConfig, cfg.PositionSize))
	}

	return errs
}

// Evaluator evaluates trading ticks sequentially: update always runs first,
// then exactly one of the buy or sell votes depending on the position state.
// The other vote is never invoked that tick.
type Evaluator struct {
	cfg *EvaluatorConfig
}

// NewEvaluator initializes a new tick evaluator.
func NewEvaluator(cfg *EvaluatorConfig) (*Evaluator, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Evaluator{cfg: cfg}, nil
}

// persistState writes the combined machine and strategy snapshot when a
// state store is wired.
func (e *Evaluator) persistState(ctx context.Context) error {
	if e.cfg.PersistState == nil {
		return nil
	}

	state := e.cfg.Machine.Snapshot()
	state.Strategy = e.cfg.Strategy.State()
	state.UpdatedOn = time.Now().UTC()

	return e.cfg.PersistState(ctx, state)
}

// EvaluateTick evaluates one tick at the provided price and time, returning
// the signal acted on and the trade produced by a close, if any. Execution
// failures leave the position unchanged and are never retried within the
// same tick.
func (e *Evaluator) EvaluateTick(ctx context.Context, price float64, at time.Time) (shared.Signal, *position.Trade, error) {
	err := e.cfg.Strategy.Update(ctx, price)
	if err != nil {
		return shared.Hold, nil, fmt.Errorf("updating strategy: %w", err)
	}

	switch e.cfg.Machine.State() {
	case shared.Flat:
		ok, err := e.cfg.Strategy.ShouldBuy(ctx, price)
		if err != nil {
			return shared.Hold, nil, fmt.Errorf("evaluating buy vote: %w", err)
		}
		if !ok {
			return shared.Hold, nil, nil
		}

		fill, err := e.cfg.Executor.ExecuteBuy(ctx, e.cfg.PositionSize)
		if err != nil {
			return shared.Hold, nil, fmt.Errorf("%w: executing buy: %v", shared.ErrExecution, err)
		}

		err = e.cfg.Machine.OpenLong(fill, at, e.cfg.PositionSize)
		if err != nil {
			return shared.Hold, nil, err
		}

		e.cfg.Strategy.OnBuy(fill)

		err = e.persistState(ctx)
		if err != nil {
			return shared.Buy, nil, fmt.Errorf("persisting state: %w", err)
		}

		return shared.Buy, nil, nil

	case shared.Long:
		ok, err := e.cfg.Strategy.ShouldSell(ctx, price)
		if err != nil {
			return shared.Hold, nil, fmt.Errorf("evaluating sell vote: %w", err)
		}
		if !ok {
			return shared.Hold, nil, nil
		}

		fill, err := e.cfg.Executor.ExecuteSell(ctx, e.cfg.PositionSize)
		if err != nil {
			return shared.Hold, nil, fmt.Errorf("%w: executing sell: %v", shared.ErrExecution, err)
		}

		trade, err := e.cfg.Machine.CloseLong(fill, at)
		if err != nil {
			return shared.Hold, nil, err
		}

		e.cfg.Strategy.OnSell(fill)

		err = e.persistState(ctx)
		if err != nil {
			return shared.Sell, trade, fmt.Errorf("persisting state: %w", err)
		}

		return shared.Sell, trade, nil

	default:
		return shared.Hold, nil, fmt.Errorf("%w: unknown position state", shared.ErrInvalidTransition)
	}
}
