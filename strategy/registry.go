package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/indicator"
	"github.com/rsowell/replay/shared"
)

// Params represents the shared construction inputs factories receive when
// building a strategy by name.
type Params struct {
	// Source provides the candle window candle driven strategies evaluate.
	Source shared.CandleSource
	// Timeframe is the candle timeframe to evaluate.
	Timeframe shared.Timeframe
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Factory builds a strategy from the provided params.
type Factory func(params *Params) (Strategy, error)

var (
	registryMtx sync.RWMutex
	registry    = map[string]Factory{
		"rsi": func(params *Params) (Strategy, error) {
			return NewRSI(&RSIConfig{
				Source:     params.Source,
				Timeframe:  params.Timeframe,
				Period:     indicator.DefaultRSIPeriod,
				Oversold:   DefaultOversold,
				Overbought: DefaultOverbought,
				MinCandles: DefaultSMAPeriod + smaWindowPadding,
				Logger:     params.Logger,
			})
		},
		"meanreversion": func(params *Params) (Strategy, error) {
			return NewMeanReversion(&MeanReversionConfig{
				Source:              params.Source,
				Timeframe:           params.Timeframe,
				Period:              DefaultSMAPeriod,
				DeviationPercent:    DefaultDeviationPercent,
				ProfitTargetPercent: DefaultProfitTargetPercent,
				Logger:              params.Logger,
			})
		},
	}
)

// Register adds a strategy factory under the provided name. Registering an
// already registered name fails.
func Register(name string, factory Factory) error {
	registryMtx.Lock()
	defer registryMtx.Unlock()

	if _, ok := registry[name]; ok {
		return fmt.Errorf("%w: strategy %q already registered", shared.ErrConfig, name)
	}

	registry[name] = factory
	return nil
}

// New builds the named strategy from the provided params.
func New(name string, params *Params) (Strategy, error) {
	registryMtx.RLock()
	factory, ok := registry[name]
	registryMtx.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", shared.ErrConfig, name)
	}

	return factory(params)
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	registryMtx.RLock()
	defer registryMtx.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
