package backtest

import (
	"context"
	"fmt"

	"github.com/rsowell/replay/shared"
)

// Cursor walks an immutable candle series chronologically while exposing the
// candles replayed so far as a candle source, so strategies evaluated at a
// tick can never see ahead of it.
type Cursor struct {
	series []shared.Candlestick
	idx    int
}

// Ensure the cursor implements the CandleSource interface.
var _ shared.CandleSource = (*Cursor)(nil)

// NewCursor initializes a cursor over the provided series. The series must
// be strictly time ordered.
func NewCursor(series []shared.Candlestick) (*Cursor, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: candle series cannot be empty", shared.ErrConfig)
	}

	for idx := 1; idx < len(series); idx++ {
		if !series[idx].Date.After(series[idx-1].Date) {
			return nil, fmt.Errorf("%w: candle series not strictly time ordered at index %d",
				shared.ErrConfig, idx)
		}
	}

	return &Cursor{series: series, idx: -1}, nil
}

// Advance moves the cursor to the next candle, returning false once the
// series is exhausted.
func (c *Cursor) Advance() (*shared.Candlestick, bool) {
	if c.idx+1 >= len(c.series) {
		return nil, false
	}

	c.idx++
	return &c.series[c.idx], true
}

// Current returns the candle the cursor sits on, or nil before the first
// advance.
func (c *Cursor) Current() *shared.Candlestick {
	if c.idx < 0 {
		return nil
	}

	return &c.series[c.idx]
}

// GetCandles returns up to limit of the candles replayed so far, oldest to
// newest, ending at the cursor's current candle.
func (c *Cursor) GetCandles(ctx context.Context, timeframe shared.Timeframe, limit int) ([]shared.Candlestick, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: candle limit must be positive, got %d", shared.ErrConfig, limit)
	}
	if c.idx < 0 {
		return nil, fmt.Errorf("%w: requested %d candles, none replayed yet",
			shared.ErrInsufficientHistory, limit)
	}

	available := c.idx + 1
	n := limit
	if n > available {
		n = available
	}

	set := make([]shared.Candlestick, n)
	copy(set, c.series[available-n:available])

	if n < limit {
		return set, fmt.Errorf("%w: requested %d candles, got %d",
			shared.ErrInsufficientHistory, limit, n)
	}

	return set, nil
}
