package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
	"github.com/rsowell/replay/indicator"
	"github.com/rsowell/replay/shared"
)

func newRSIStrategy(t *testing.T, source shared.CandleSource) *RSI {
	t.Helper()

	strat, err := NewRSI(&RSIConfig{
		Source:     source,
		Timeframe:  shared.OneHour,
		Period:     indicator.DefaultRSIPeriod,
		Oversold:   DefaultOversold,
		Overbought: DefaultOverbought,
		MinCandles: indicator.DefaultRSIPeriod + 1,
		Logger:     &log.Logger,
	})
	assert.NoError(t, err)

	return strat
}

func TestRSIStrategyValidate(t *testing.T) {
	// Ensure a nil candle source is rejected.
	_, err := NewRSI(&RSIConfig{
		Period:     14,
		Oversold:   30,
		Overbought: 70,
		MinCandles: 15,
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfig))

	// Ensure the oversold level must sit below the overbought level.
	_, err = NewRSI(&RSIConfig{
		Source:     sourceOf(flatCloses(100, 20)),
		Period:     14,
		Oversold:   70,
		Overbought: 30,
		MinCandles: 15,
	})
	assert.Error(t, err)

	// Ensure the candle window must cover the rsi requirement.
	_, err = NewRSI(&RSIConfig{
		Source:     sourceOf(flatCloses(100, 20)),
		Period:     14,
		Oversold:   30,
		Overbought: 70,
		MinCandles: 10,
	})
	assert.Error(t, err)
}

func TestRSIStrategyVotes(t *testing.T) {
	ctx := context.Background()

	// Ensure a falling series votes to buy and not to sell.
	falling := make([]float64, 20)
	for idx := range falling {
		falling[idx] = 130 - float64(idx)
	}
	strat := newRSIStrategy(t, sourceOf(falling))

	err := strat.Update(ctx, falling[len(falling)-1])
	assert.NoError(t, err)

	buy, err := strat.ShouldBuy(ctx, falling[len(falling)-1])
	assert.NoError(t, err)
	assert.True(t, buy)

	sell, err := strat.ShouldSell(ctx, falling[len(falling)-1])
	assert.NoError(t, err)
	assert.False(t, sell)

	// Ensure a rising series votes to sell and not to buy.
	rising := make([]float64, 20)
	for idx := range rising {
		rising[idx] = 100 + float64(idx)
	}
	strat = newRSIStrategy(t, sourceOf(rising))

	err = strat.Update(ctx, rising[len(rising)-1])
	assert.NoError(t, err)

	buy, err = strat.ShouldBuy(ctx, rising[len(rising)-1])
	assert.NoError(t, err)
	assert.False(t, buy)

	sell, err = strat.ShouldSell(ctx, rising[len(rising)-1])
	assert.NoError(t, err)
	assert.True(t, sell)

	// Ensure a window short of the rsi requirement leaves the strategy
	// voteless instead of erroring.
	strat = newRSIStrategy(t, sourceOf(flatCloses(100, 5)))

	err = strat.Update(ctx, 100)
	assert.NoError(t, err)

	buy, err = strat.ShouldBuy(ctx, 100)
	assert.NoError(t, err)
	assert.False(t, buy)

	sell, err = strat.ShouldSell(ctx, 100)
	assert.NoError(t, err)
	assert.False(t, sell)

	// Ensure a hard source failure aborts the update.
	strat = newRSIStrategy(t, &sliceSource{err: errors.New("source offline")})
	err = strat.Update(ctx, 100)
	assert.Error(t, err)
}

func TestRSIStrategyState(t *testing.T) {
	ctx := context.Background()

	rising := make([]float64, 20)
	for idx := range rising {
		rising[idx] = 100 + float64(idx)
	}
	strat := newRSIStrategy(t, sourceOf(rising))

	err := strat.Update(ctx, rising[len(rising)-1])
	assert.NoError(t, err)

	// Ensure the computed rsi is captured in the strategy state.
	state := strat.State()
	assert.Equal(t, state.Name, "rsi")
	assert.Equal(t, state.Values["rsi"], 100.0)

	// Ensure the state restores onto a fresh instance, making it vote-ready.
	restored := newRSIStrategy(t, sourceOf(rising))
	err = restored.LoadState(state)
	assert.NoError(t, err)

	sell, err := restored.ShouldSell(ctx, rising[len(rising)-1])
	assert.NoError(t, err)
	assert.True(t, sell)

	// Ensure a state for a different strategy is rejected.
	err = restored.LoadState(&shared.StrategyState{Name: "meanreversion"})
	assert.Error(t, err)
}
