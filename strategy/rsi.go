package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/indicator"
	"github.com/rsowell/replay/shared"
)

const (
	// DefaultOversold is the default RSI oversold threshold.
	DefaultOversold = 30
	// DefaultOverbought is the default RSI overbought threshold.
	DefaultOverbought = 70
)

// RSIConfig represents the configuration for the rsi strategy.
type RSIConfig struct {
	// Source provides the candle window the strategy evaluates.
	Source shared.CandleSource
	// Timeframe is the candle timeframe to evaluate.
	Timeframe shared.Timeframe
	// Period is the RSI lookback period.
	Period int
	// Oversold is the RSI level below which the strategy votes to buy.
	Oversold float64
	// Overbought is the RSI level above which the strategy votes to sell.
	Overbought float64
	// MinCandles is the candle count requested per evaluation.
	MinCandles int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *RSIConfig) Validate() error {
	var errs error

	if cfg.Source == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: candle source cannot be nil", shared.ErrConfig))
	}
	if cfg.Period <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: rsi period must be positive, got %d",
			shared.ErrConfig, cfg.Period))
	}
	if cfg.Oversold >= cfg.Overbought {
		errs = errors.Join(errs, fmt.Errorf("%w: oversold level %f must be below overbought level %f",
			shared.ErrConfig, cfg.Oversold, cfg.Overbought))
	}
	if cfg.MinCandles < cfg.Period+1 {
		errs = errors.Join(errs, fmt.Errorf("%w: min candles %d below rsi requirement %d",
			shared.ErrConfig, cfg.MinCandles, cfg.Period+1))
	}

	return errs
}

// RSI represents a mean reversion strategy voting on RSI extremes: buy when
// oversold, sell when overbought.
type RSI struct {
	cfg   *RSIConfig
	rsi   float64
	ready bool
}

// Ensure the rsi strategy implements the Strategy interface.
var _ Strategy = (*RSI)(nil)

// NewRSI initializes a new rsi strategy.
func NewRSI(cfg *RSIConfig) (*RSI, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &RSI{cfg: cfg}, nil
}

// Name returns the strategy name.
func (s *RSI) Name() string {
	return "rsi"
}

// Update recomputes the RSI from the latest candle window. A window short of
// the required periods leaves the strategy voteless rather than erroring.
func (s *RSI) Update(ctx context.Context, price float64) error {
	candles, err := s.cfg.Source.GetCandles(ctx, s.cfg.Timeframe, s.cfg.MinCandles)
	if err != nil && !errors.Is(err, shared.ErrInsufficientHistory) {
		return fmt.Errorf("fetching candles: %w", err)
	}

	value, err := indicator.RSI(candles, s.cfg.Period)
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientData) {
			if s.cfg.Logger != nil {
				s.cfg.Logger.Warn().Msgf("rsi strategy has no vote: %v", err)
			}
			s.ready = false
			return nil
		}

		return err
	}

	s.rsi = value
	s.ready = true

	return nil
}

// ShouldBuy reports whether the RSI is below the oversold threshold.
func (s *RSI) ShouldBuy(ctx context.Context, price float64) (bool, error) {
	if !s.ready {
		return false, nil
	}

	return s.rsi < s.cfg.Oversold, nil
}

// ShouldSell reports whether the RSI is above the overbought threshold.
func (s *RSI) ShouldSell(ctx context.Context, price float64) (bool, error) {
	if !s.ready {
		return false, nil
	}

	return s.rsi > s.cfg.Overbought, nil
}

// OnBuy notifies the strategy of a confirmed entry fill.
func (s *RSI) OnBuy(price float64) {}

// OnSell notifies the strategy of a confirmed exit fill.
func (s *RSI) OnSell(price float64) {}

// State captures the strategy state for persistence.
func (s *RSI) State() *shared.StrategyState {
	state := &shared.StrategyState{Name: s.Name()}
	if s.ready {
		state.Values = map[string]float64{"rsi": s.rsi}
	}

	return state
}

// LoadState restores the strategy state from persistence.
func (s *RSI) LoadState(state *shared.StrategyState) error {
	if state == nil {
		return nil
	}
	if state.Name != s.Name() {
		return fmt.Errorf("%w: expected %s state, got %s", shared.ErrConfig, s.Name(), state.Name)
	}

	if value, ok := state.Values["rsi"]; ok {
		s.rsi = value
		s.ready = true
	}

	return nil
}
