package shared

import (
	"context"
	"time"
)

// CandleFetcher defines the requirements for fetching market candle data
// from an external feed. Transient failures are the caller's responsibility
// to retry.
type CandleFetcher interface {
	// FetchCandles fetches up to limit candles strictly before the provided
	// timestamp, ordered oldest to newest. A zero before timestamp fetches
	// the most recent candles.
	FetchCandles(ctx context.Context, timeframe Timeframe, before time.Time, limit int) ([]Candlestick, error)
}

// CandleStorer defines the requirements for durably storing candle data
// keyed by (timeframe, timestamp).
type CandleStorer interface {
	// UpsertCandles stores the provided candles, replacing entries sharing
	// a (timeframe, timestamp) key. Safe to repeat.
	UpsertCandles(ctx context.Context, candles []Candlestick) error
	// RangeScan returns up to limit stored candles for the timeframe,
	// ordered newest to oldest.
	RangeScan(ctx context.Context, timeframe Timeframe, limit int) ([]Candlestick, error)
	// FirstCandleTime returns the earliest stored candle time for the
	// timeframe, or the zero time when none exist.
	FirstCandleTime(ctx context.Context, timeframe Timeframe) (time.Time, error)
	// LastCandleTime returns the latest stored candle time for the
	// timeframe, or the zero time when none exist.
	LastCandleTime(ctx context.Context, timeframe Timeframe) (time.Time, error)
}

// CandleSource defines the requirements for reading an ordered candle window,
// used by candle driven strategies.
type CandleSource interface {
	// GetCandles returns up to limit of the most recent candles for the
	// timeframe, ordered oldest to newest.
	GetCandles(ctx context.Context, timeframe Timeframe, limit int) ([]Candlestick, error)
}

// Executor defines the requirements for executing orders. The engine depends
// only on success or failure and the reported fill price.
type Executor interface {
	// ExecuteBuy executes a buy of the provided size, returning the fill price.
	ExecuteBuy(ctx context.Context, size float64) (float64, error)
	// ExecuteSell executes a sell of the provided size, returning the fill price.
	ExecuteSell(ctx context.Context, size float64) (float64, error)
}

// StateStore defines the requirements for persisting the versioned state
// snapshot, loaded at startup and written after every confirmed transition.
type StateStore interface {
	// SaveState persists the provided state snapshot.
	SaveState(ctx context.Context, state *StateSnapshot) error
	// LoadState loads the persisted state snapshot, or nil when none exists.
	LoadState(ctx context.Context) (*StateSnapshot, error)
}
