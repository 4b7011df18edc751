package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/shared"
)

const (
	// weightSumTolerance is the permitted deviation of the weight sum from 1.
	weightSumTolerance = 0.001
	// weightedVoteThreshold is the weight sum at or above which a weighted
	// vote carries.
	weightedVoteThreshold = 0.5
)

// Mode represents how a composite strategy combines its children's votes.
type Mode int

const (
	// All carries iff every child votes true.
	All Mode = iota
	// Any carries iff at least one child votes true.
	Any
	// Majority carries iff strictly more than half the children vote true.
	Majority
	// Weighted carries iff the weights of true-voting children sum to at
	// least the vote threshold.
	Weighted
)

// String stringifies the provided mode.
func (m Mode) String() string {
	switch m {
	case All:
		return "all"
	case Any:
		return "any"
	case Majority:
		return "majority"
	case Weighted:
		return "weighted"
	default:
		return "unknown"
	}
}

// CompositeConfig represents the configuration for the composite strategy.
type CompositeConfig struct {
	// Children is the ordered set of strategies whose votes are combined.
	Children []Strategy
	// Mode is the vote combination mode.
	Mode Mode
	// Weights are the per-child weights for weighted voting. They must sum
	// to one.
	Weights []float64
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs.
func (cfg *CompositeConfig) Validate() error {
	if len(cfg.Children) == 0 {
		return fmt.Errorf("%w: composite strategy requires at least one child", shared.ErrConfig)
	}

	if cfg.Mode == Weighted {
		if len(cfg.Weights) != len(cfg.Children) {
			return fmt.Errorf("%w: weighted mode requires %d weights, got %d",
				shared.ErrConfig, len(cfg.Children), len(cfg.Weights))
		}

		var sum float64
		for idx := range cfg.Weights {
			sum += cfg.Weights[idx]
		}
		if math.Abs(sum-1) > weightSumTolerance {
			return fmt.Errorf("%w: weights must sum to 1, got %f", shared.ErrConfig, sum)
		}
	}

	return nil
}

// Composite represents a strategy combining an ordered set of child
// strategies under a voting mode.
type Composite struct {
	cfg *CompositeConfig
}

// Ensure the composite strategy implements the Strategy interface.
var _ Strategy = (*Composite)(nil)

// NewComposite initializes a new composite strategy.
func NewComposite(cfg *CompositeConfig) (*Composite, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &Composite{cfg: cfg}, nil
}

// Name returns the strategy name.
func (s *Composite) Name() string {
	return "composite"
}

// Update fans the update out to every child in order. A child update failure
// aborts the whole tick, no partial-update state is tolerated.
func (s *Composite) Update(ctx context.Context, price float64) error {
	for idx := range s.cfg.Children {
		err := s.cfg.Children[idx].Update(ctx, price)
		if err != nil {
			return fmt.Errorf("updating child strategy %s: %w",
				s.cfg.Children[idx].Name(), err)
		}
	}

	return nil
}

// combine resolves the children's votes under the configured mode. All and
// any modes stop collecting votes once the outcome is decided.
func (s *Composite) combine(vote func(child Strategy) (bool, error)) (bool, error) {
	switch s.cfg.Mode {
	case All:
		for idx := range s.cfg.Children {
			ok, err := vote(s.cfg.Children[idx])
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case Any:
		for idx := range s.cfg.Children {
			ok, err := vote(s.cfg.Children[idx])
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Majority:
		var votes int
		for idx := range s.cfg.Children {
			ok, err := vote(s.cfg.Children[idx])
			if err != nil {
				return false, err
			}
			if ok {
				votes++
			}
		}
		// Ties resolve to no signal.
		return 2*votes > len(s.cfg.Children), nil

	case Weighted:
		var score float64
		for idx := range s.cfg.Children {
			ok, err := vote(s.cfg.Children[idx])
			if err != nil {
				return false, err
			}
			if ok {
				score += s.cfg.Weights[idx]
			}
		}
		return score >= weightedVoteThreshold, nil

	default:
		return false, fmt.Errorf("%w: unknown composite mode %d", shared.ErrConfig, s.cfg.Mode)
	}
}

// ShouldBuy combines the children's buy votes under the configured mode.
func (s *Composite) ShouldBuy(ctx context.Context, price float64) (bool, error) {
	result, err := s.combine(func(child Strategy) (bool, error) {
		return child.ShouldBuy(ctx, price)
	})
	if err != nil {
		return false, err
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug().Msgf("composite buy vote (%s): %t", s.cfg.Mode.String(), result)
	}

	return result, nil
}

// ShouldSell combines the children's sell votes under the configured mode.
func (s *Composite) ShouldSell(ctx context.Context, price float64) (bool, error) {
	result, err := s.combine(func(child Strategy) (bool, error) {
		return child.ShouldSell(ctx, price)
	})
	if err != nil {
		return false, err
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug().Msgf("composite sell vote (%s): %t", s.cfg.Mode.String(), result)
	}

	return result, nil
}

// OnBuy notifies every child of a confirmed entry fill.
func (s *Composite) OnBuy(price float64) {
	for idx := range s.cfg.Children {
		s.cfg.Children[idx].OnBuy(price)
	}
}

// OnSell notifies every child of a confirmed exit fill.
func (s *Composite) OnSell(price float64) {
	for idx := range s.cfg.Children {
		s.cfg.Children[idx].OnSell(price)
	}
}

// State captures the composite and child strategy states for persistence.
func (s *Composite) State() *shared.StrategyState {
	state := &shared.StrategyState{
		Name:     s.Name(),
		Children: make([]*shared.StrategyState, 0, len(s.cfg.Children)),
	}
	for idx := range s.cfg.Children {
		state.Children = append(state.Children, s.cfg.Children[idx].State())
	}

	return state
}

// LoadState restores the composite and child strategy states from
// persistence.
func (s *Composite) LoadState(state *shared.StrategyState) error {
	if state == nil {
		return nil
	}
	if state.Name != s.Name() {
		return fmt.Errorf("%w: expected %s state, got %s", shared.ErrConfig, s.Name(), state.Name)
	}
	if len(state.Children) != len(s.cfg.Children) {
		return fmt.Errorf("%w: expected %d child states, got %d",
			shared.ErrConfig, len(s.cfg.Children), len(state.Children))
	}

	for idx := range s.cfg.Children {
		err := s.cfg.Children[idx].LoadState(state.Children[idx])
		if err != nil {
			return fmt.Errorf("loading child strategy state: %w", err)
		}
	}

	return nil
}
