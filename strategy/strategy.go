// Package strategy defines the trading strategy contract and the strategies
// shipped with the engine. Strategies vote on entries and exits; they never
// mutate positions or touch execution themselves.
package strategy

import (
	"context"

	"github.com/rsowell/replay/shared"
)

// Strategy defines the requirements for evaluating trading signals. Per tick
// Update always runs first; exactly one of ShouldBuy or ShouldSell runs next
// depending on the position state, enforced by the tick evaluator.
type Strategy interface {
	// Name returns the strategy name.
	Name() string
	// Update updates the strategy state with the current market price.
	Update(ctx context.Context, price float64) error
	// ShouldBuy reports whether an entry should be made at the provided price.
	ShouldBuy(ctx context.Context, price float64) (bool, error)
	// ShouldSell reports whether an exit should be made at the provided price.
	ShouldSell(ctx context.Context, price float64) (bool, error)
	// OnBuy notifies the strategy of a confirmed entry fill.
	OnBuy(price float64)
	// OnSell notifies the strategy of a confirmed exit fill.
	OnSell(price float64)
	// State captures the strategy state for persistence.
	State() *shared.StrategyState
	// LoadState restores the strategy state from persistence.
	LoadState(state *shared.StrategyState) error
}
