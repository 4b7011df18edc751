package strategy

import (
	"context"
	"fmt"

	"github.com/rsowell/replay/shared"
)

// ThresholdConfig represents the configuration for the threshold strategy.
type ThresholdConfig struct {
	// BuyBelow is the price at or below which the strategy votes to buy.
	BuyBelow float64
	// SellAbove is the price at or above which the strategy votes to sell.
	SellAbove float64
}

// Validate asserts the config has sane inputs.
func (cfg *ThresholdConfig) Validate() error {
	if cfg.BuyBelow <= 0 || cfg.SellAbove <= 0 {
		return fmt.Errorf("%w: threshold prices must be positive, got buy %f, sell %f",
			shared.ErrConfig, cfg.BuyBelow, cfg.SellAbove)
	}
	if cfg.BuyBelow >= cfg.SellAbove {
		return fmt.Errorf("%w: buy threshold %f must be below sell threshold %f",
			shared.ErrConfig, cfg.BuyBelow, cfg.SellAbove)
	}

	return nil
}

// Threshold represents a strategy voting on static price levels: buy at or
// below one level, sell at or above another.
type Threshold struct {
	cfg *ThresholdConfig
}

// Ensure the threshold strategy implements the Strategy interface.
var _ Strategy = (*Threshold)(nil)

// NewThreshold initializes a new threshold strategy.
func NewThreshold(cfg *ThresholdConfig) (*Threshold, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Threshold{cfg: cfg}, nil
}

// Name returns the strategy name.
func (s *Threshold) Name() string {
	return "threshold"
}

// Update updates the strategy state with the current market price. The
// threshold strategy holds no state.
func (s *Threshold) Update(ctx context.Context, price float64) error {
	return nil
}

// ShouldBuy reports whether the price is at or below the buy threshold.
func (s *Threshold) ShouldBuy(ctx context.Context, price float64) (bool, error) {
	return price <= s.cfg.BuyBelow, nil
}

// ShouldSell reports whether the price is at or above the sell threshold.
func (s *Threshold) ShouldSell(ctx context.Context, price float64) (bool, error) {
	return price >= s.cfg.SellAbove, nil
}

// OnBuy notifies the strategy of a confirmed entry fill.
func (s *Threshold) OnBuy(price float64) {}

// OnSell notifies the strategy of a confirmed exit fill.
func (s *Threshold) OnSell(price float64) {}

// State captures the strategy state for persistence.
func (s *Threshold) State() *shared.StrategyState {
	return &shared.StrategyState{Name: s.Name()}
}

// LoadState restores the strategy state from persistence.
func (s *Threshold) LoadState(state *shared.StrategyState) error {
	if state == nil {
		return nil
	}
	if state.Name != s.Name() {
		return fmt.Errorf("%w: expected %s state, got %s", shared.ErrConfig, s.Name(), state.Name)
	}

	return nil
}
