package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/rsowell/replay/shared"
)

// sliceSource serves a fixed candle series as a candle source.
type sliceSource struct {
	candles []shared.Candlestick
	err     error
}

func (s *sliceSource) GetCandles(ctx context.Context, timeframe shared.Timeframe, limit int) ([]shared.Candlestick, error) {
	if s.err != nil {
		return nil, s.err
	}

	n := limit
	if n > len(s.candles) {
		n = len(s.candles)
	}

	set := make([]shared.Candlestick, n)
	copy(set, s.candles[len(s.candles)-n:])

	if n < limit {
		return set, fmt.Errorf("%w: requested %d candles, got %d",
			shared.ErrInsufficientHistory, limit, n)
	}

	return set, nil
}

// sourceOf builds a slice source from the provided closes with hourly spacing.
func sourceOf(closes []float64) *sliceSource {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]shared.Candlestick, len(closes))
	for idx := range closes {
		candles[idx] = shared.Candlestick{
			Open:      closes[idx],
			High:      closes[idx] + 1,
			Low:       closes[idx] - 1,
			Close:     closes[idx],
			Volume:    1,
			Date:      start.Add(time.Hour * time.Duration(idx)),
			Timeframe: shared.OneHour,
		}
	}

	return &sliceSource{candles: candles}
}

// flatCloses builds a constant close series.
func flatCloses(value float64, n int) []float64 {
	closes := make([]float64, n)
	for idx := range closes {
		closes[idx] = value
	}

	return closes
}
