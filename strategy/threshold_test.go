package strategy

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/assert"
)

func TestThreshold(t *testing.T) {
	ctx := context.Background()

	// Ensure non-positive and inverted thresholds are rejected.
	_, err := NewThreshold(&ThresholdConfig{BuyBelow: 0, SellAbove: 120})
	assert.Error(t, err)
	_, err = NewThreshold(&ThresholdConfig{BuyBelow: 120, SellAbove: 100})
	assert.Error(t, err)

	strat, err := NewThreshold(&ThresholdConfig{BuyBelow: 100, SellAbove: 120})
	assert.NoError(t, err)

	// Ensure updates are a no-op for the stateless strategy.
	assert.NoError(t, strat.Update(ctx, 110))

	// Ensure prices at or below the buy level vote to buy.
	buy, err := strat.ShouldBuy(ctx, 100)
	assert.NoError(t, err)
	assert.True(t, buy)

	buy, err = strat.ShouldBuy(ctx, 100.01)
	assert.NoError(t, err)
	assert.False(t, buy)

	// Ensure prices at or above the sell level vote to sell.
	sell, err := strat.ShouldSell(ctx, 120)
	assert.NoError(t, err)
	assert.True(t, sell)

	sell, err = strat.ShouldSell(ctx, 119.99)
	assert.NoError(t, err)
	assert.False(t, sell)

	// Ensure the stateless strategy state round trips.
	state := strat.State()
	assert.Equal(t, state.Name, "threshold")
	assert.NoError(t, strat.LoadState(state))
}
