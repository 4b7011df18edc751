package strategy

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
	"github.com/rsowell/replay/shared"
)

func TestRegistry(t *testing.T) {
	params := &Params{
		Source:    sourceOf(flatCloses(100, 40)),
		Timeframe: shared.OneHour,
		Logger:    &log.Logger,
	}

	// Ensure the built-in strategies resolve by name.
	strat, err := New("rsi", params)
	assert.NoError(t, err)
	assert.Equal(t, strat.Name(), "rsi")

	strat, err = New("meanreversion", params)
	assert.NoError(t, err)
	assert.Equal(t, strat.Name(), "meanreversion")

	// Ensure an unknown strategy name errors.
	_, err = New("momentum", params)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfig))

	// Ensure new factories can be registered and resolved.
	err = Register("static", func(params *Params) (Strategy, error) {
		return NewThreshold(&ThresholdConfig{BuyBelow: 100, SellAbove: 120})
	})
	assert.NoError(t, err)

	strat, err = New("static", params)
	assert.NoError(t, err)
	assert.Equal(t, strat.Name(), "threshold")

	// Ensure reregistering a name is rejected.
	err = Register("static", func(params *Params) (Strategy, error) {
		return nil, nil
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrConfig))

	// Ensure names are listed in sorted order.
	names := Names()
	assert.Equal(t, names, []string{"meanreversion", "rsi", "static"})
}
