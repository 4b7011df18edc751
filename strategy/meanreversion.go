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
	// DefaultSMAPeriod is the default SMA period for the mean reversion strategy.
	DefaultSMAPeriod = 20
	// DefaultDeviationPercent is the default buy deviation below the SMA.
	DefaultDeviationPercent = 1
	// DefaultProfitTargetPercent is the default take-profit percentage.
	DefaultProfitTargetPercent = 2
	// smaWindowPadding is the number of extra candles requested beyond the
	// SMA period so a short feed gap does not starve the window.
	smaWindowPadding = 10
)

// MeanReversionConfig represents the configuration for the mean reversion
// strategy.
type MeanReversionConfig struct {
	// Source provides the candle window the strategy evaluates.
	Source shared.CandleSource
	// Timeframe is the candle timeframe to evaluate.
	Timeframe shared.Timeframe
	// Period is the SMA lookback period.
	Period int
	// DeviationPercent is the percentage below the SMA that triggers a buy.
	DeviationPercent float64
	// ProfitTargetPercent is the take-profit percentage that triggers a sell.
	ProfitTargetPercent float64
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *MeanReversionConfig) Validate() error {
	var errs error

	if cfg.Source == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: candle source cannot be nil", shared.ErrConfig))
	}
	if cfg.Period <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: sma period must be positive, got %d",
			shared.ErrConfig, cfg.Period))
	}
	if cfg.DeviationPercent <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: deviation percent must be positive, got %f",
			shared.ErrConfig, cfg.DeviationPercent))
	}
	if cfg.ProfitTargetPercent <= 0 {
		errs = errors.Join(errs, fmt.Errorf("%w: profit target percent must be positive, got %f",
			shared.ErrConfig, cfg.ProfitTargetPercent))
	}

	return errs
}

// MeanReversion represents a strategy buying dips below the moving average
// and selling when price reverts to it or the profit target is hit.
type MeanReversion struct {
	cfg        *MeanReversionConfig
	sma        float64
	ready      bool
	entryPrice float64
}

// Ensure the mean reversion strategy implements the Strategy interface.
var _ Strategy = (*MeanReversion)(nil)

// NewMeanReversion initializes a new mean reversion strategy.
func NewMeanReversion(cfg *MeanReversionConfig) (*MeanReversion, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &MeanReversion{cfg: cfg}, nil
}

// Name returns the strategy name.
func (s *MeanReversion) Name() string {
	return "meanreversion"
}

// Update recomputes the SMA from the latest candle window.
func (s *MeanReversion) Update(ctx context.Context, price float64) error {
	candles, err := s.cfg.Source.GetCandles(ctx, s.cfg.Timeframe, s.cfg.Period+smaWindowPadding)
	if err != nil && !errors.Is(err, shared.ErrInsufficientHistory) {
		return fmt.Errorf("fetching candles: %w", err)
	}

	if len(candles) < s.cfg.Period {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn().Msgf("mean reversion strategy has no vote: %d/%d candles",
				len(candles), s.cfg.Period)
		}
		s.ready = false
		return nil
	}

	set := make([]float64, len(candles))
	for idx := range candles {
		set[idx] = candles[idx].Close
	}

	sma, err := indicator.SMA(set, s.cfg.Period)
	if err != nil {
		return err
	}

	s.sma = sma
	s.ready = true

	return nil
}

// ShouldBuy reports whether the price sits the configured deviation below
// the moving average.
func (s *MeanReversion) ShouldBuy(ctx context.Context, price float64) (bool, error) {
	if !s.ready || s.sma == 0 {
		return false, nil
	}

	deviationPercent := (price/s.sma - 1) * 100
	return deviationPercent < -s.cfg.DeviationPercent, nil
}

// ShouldSell reports whether the price reverted to the moving average or the
// profit target was hit.
func (s *MeanReversion) ShouldSell(ctx context.Context, price float64) (bool, error) {
	if !s.ready || s.entryPrice == 0 {
		return false, nil
	}

	profitPercent := (price/s.entryPrice - 1) * 100
	if profitPercent >= s.cfg.ProfitTargetPercent {
		return true, nil
	}

	return price >= s.sma, nil
}

// OnBuy notifies the strategy of a confirmed entry fill.
func (s *MeanReversion) OnBuy(price float64) {
	s.entryPrice = price
}

// OnSell notifies the strategy of a confirmed exit fill.
func (s *MeanReversion) OnSell(price float64) {
	s.entryPrice = 0
}

// State captures the strategy state for persistence.
func (s *MeanReversion) State() *shared.StrategyState {
	values := make(map[string]float64)
	if s.ready {
		values["sma"] = s.sma
	}
	if s.entryPrice != 0 {
		values["entry_price"] = s.entryPrice
	}

	state := &shared.StrategyState{Name: s.Name()}
	if len(values) > 0 {
		state.Values = values
	}

	return state
}

// LoadState restores the strategy state from persistence.
func (s *MeanReversion) LoadState(state *shared.StrategyState) error {
	if state == nil {
		return nil
	}
	if state.Name != s.Name() {
		return fmt.Errorf("%w: expected %s state, got %s", shared.ErrConfig, s.Name(), state.Name)
	}

	if value, ok := state.Values["sma"]; ok {
		s.sma = value
		s.ready = true
	}
	if value, ok := state.Values["entry_price"]; ok {
		s.entryPrice = value
	}

	return nil
}
