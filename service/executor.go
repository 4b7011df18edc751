package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/shared"
	"github.com/rsowell/replay/store"
)

// PaperExecutor simulates order execution by filling at the latest stored
// candle close. It submits nothing to an exchange.
type PaperExecutor struct {
	store     *store.CandleStore
	timeframe shared.Timeframe
	logger    *zerolog.Logger
}

// Ensure the paper executor implements the Executor interface.
var _ shared.Executor = (*PaperExecutor)(nil)

// NewPaperExecutor initializes a new paper executor.
func NewPaperExecutor(store *store.CandleStore, timeframe shared.Timeframe, logger *zerolog.Logger) *PaperExecutor {
	return &PaperExecutor{
		store:     store,
		timeframe: timeframe,
		logger:    logger,
	}
}

// fillPrice resolves the latest close as the simulated fill price.
func (e *PaperExecutor) fillPrice(ctx context.Context) (float64, error) {
	window, err := e.store.GetCandles(ctx, e.timeframe, 1)
	if err != nil && !errors.Is(err, shared.ErrInsufficientHistory) {
		return 0, fmt.Errorf("fetching fill candle: %w", err)
	}
	if len(window) == 0 {
		return 0, fmt.Errorf("%w: no candle available for fill", shared.ErrExecution)
	}

	return window[len(window)-1].Close, nil
}

// ExecuteBuy fills a simulated buy of the provided size.
func (e *PaperExecutor) ExecuteBuy(ctx context.Context, size float64) (float64, error) {
	fill, err := e.fillPrice(ctx)
	if err != nil {
		return 0, err
	}

	e.logger.Info().Msgf("paper buy filled: size %.2f at %.4f", size, fill)

	return fill, nil
}

// ExecuteSell fills a simulated sell of the provided size.
func (e *PaperExecutor) ExecuteSell(ctx context.Context, size float64) (float64, error) {
	fill, err := e.fillPrice(ctx)
	if err != nil {
		return 0, err
	}

	e.logger.Info().Msgf("paper sell filled: size %.2f at %.4f", size, fill)

	return fill, nil
}
