// Package store implements the gap-aware candle store: a hot in-memory
// cache over durable storage, backfilled from the external feed with
// bounded, backed-off retries.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rsowell/replay/shared"
)

const (
	// defaultBatchSize is the default candle count fetched per backfill batch.
	defaultBatchSize = 200
	// defaultMaxRetries is the default bounded attempts per backfill batch.
	defaultMaxRetries = 3
	// defaultRetryDelay is the default initial backoff delay.
	defaultRetryDelay = time.Second
	// defaultMaxRetryDelay caps the exponential backoff delay.
	defaultMaxRetryDelay = time.Second * 30
	// defaultBackfillTimeout bounds how long a get call may block on backfill.
	defaultBackfillTimeout = time.Second * 20
	// recentWindowSize is the per-timeframe in-memory window of the freshest
	// candles, serving small reads without a storage scan.
	recentWindowSize = 256
)

// cacheKey keys the hot cache by requested window.
type cacheKey struct {
	timeframe shared.Timeframe
	limit     int
}

// StoreConfig represents the configuration for the candle store.
type StoreConfig struct {
	// Fetcher is the external ingestion feed.
	Fetcher shared.CandleFetcher
	// Storer is the durable candle storage.
	Storer shared.CandleStorer
	// BatchSize is the candle count fetched per backfill batch.
	BatchSize int
	// MaxRetries bounds the attempts per backfill batch.
	MaxRetries int
	// RetryDelay is the initial exponential backoff delay.
	RetryDelay time.Duration
	// MaxRetryDelay caps the exponential backoff delay.
	MaxRetryDelay time.Duration
	// BackfillTimeout bounds how long a get call may block on backfill
	// before returning a partial result.
	BackfillTimeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config has sane inputs and applies defaults.
func (cfg *StoreConfig) Validate() error {
	var errs error

	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: candle fetcher cannot be nil", shared.ErrConfig))
	}
	if cfg.Storer == nil {
		errs = errors.Join(errs, fmt.Errorf("%w: candle storer cannot be nil", shared.ErrConfig))
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}
	if cfg.BackfillTimeout <= 0 {
		cfg.BackfillTimeout = defaultBackfillTimeout
	}

	return errs
}

// CandleStore represents the candle time-series cache. Ingestion may run
// concurrently with reads; windows handed to callers are copies that later
// ingestion never mutates.
type CandleStore struct {
	cfg      *StoreConfig
	cache    map[cacheKey][]shared.Candlestick
	recent   map[shared.Timeframe]*shared.CandleSnapshot
	cacheMtx sync.RWMutex
}

// Ensure the candle store implements the CandleSource interface.
var _ shared.CandleSource = (*CandleStore)(nil)

// NewCandleStore initializes a new candle store.
func NewCandleStore(cfg *StoreConfig) (*CandleStore, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &CandleStore{
		cfg:    cfg,
		cache:  make(map[cacheKey][]shared.Candlestick),
		recent: make(map[shared.Timeframe]*shared.CandleSnapshot),
	}, nil
}

// trackRecent appends freshly ingested candles, already ordered oldest to
// newest, to the timeframe's in-memory window.
func (s *CandleStore) trackRecent(timeframe shared.Timeframe, candles []shared.Candlestick) {
	s.cacheMtx.Lock()
	defer s.cacheMtx.Unlock()

	snapshot, ok := s.recent[timeframe]
	if !ok {
		snapshot, _ = shared.NewCandleSnapshot(recentWindowSize, timeframe)
		s.recent[timeframe] = snapshot
	}

	for idx := range candles {
		candle := candles[idx]
		last := snapshot.Last()
		if last != nil && !candle.Date.After(last.Date) {
			continue
		}

		err := snapshot.Update(&candle)
		if err != nil && s.cfg.Logger != nil {
			s.cfg.Logger.Warn().Msgf("tracking recent candle: %v", err)
		}
	}
}

// invalidateCache drops cached windows for the provided timeframe.
func (s *CandleStore) invalidateCache(timeframe shared.Timeframe) {
	s.cacheMtx.Lock()
	defer s.cacheMtx.Unlock()

	for key := range s.cache {
		if key.timeframe == timeframe {
			delete(s.cache, key)
		}
	}
}

// fetchWithRetry fetches a batch from the feed, retrying transient failures
// with bounded exponential backoff.
func (s *CandleStore) fetchWithRetry(ctx context.Context, timeframe shared.Timeframe, before time.Time, limit int) ([]shared.Candlestick, error) {
	var lastErr error

	delay := s.cfg.RetryDelay
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			delay *= 2
			if delay > s.cfg.MaxRetryDelay {
				delay = s.cfg.MaxRetryDelay
			}
		}

		candles, err := s.cfg.Fetcher.FetchCandles(ctx, timeframe, before, limit)
		if err == nil {
			return candles, nil
		}

		lastErr = err
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn().Msgf("fetching %s candles (attempt %d/%d): %v",
				timeframe.String(), attempt+1, s.cfg.MaxRetries, err)
		}
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %v", shared.ErrIngestion, s.cfg.MaxRetries, lastErr)
}

// Backfill fills the gap between the earliest stored candle and the feed's
// available history until at least want candles are stored, fetching
// contiguous batches backwards. Merging upserts on timestamp, so repeating a
// backfill is safe. Retry exhaustion surfaces as a soft ingestion error with
// whatever merged so far left in place.
func (s *CandleStore) Backfill(ctx context.Context, timeframe shared.Timeframe, want int) error {
	before, err := s.cfg.Storer.FirstCandleTime(ctx, timeframe)
	if err != nil {
		return fmt.Errorf("fetching first candle time: %w", err)
	}

	for {
		stored, err := s.cfg.Storer.RangeScan(ctx, timeframe, want)
		if err != nil {
			return fmt.Errorf("scanning stored candles: %w", err)
		}
		missing := want - len(stored)
		if missing <= 0 {
			return nil
		}

		batch := s.cfg.BatchSize
		if missing < batch {
			batch = missing
		}

		candles, err := s.fetchWithRetry(ctx, timeframe, before, batch)
		if err != nil {
			return err
		}
		if len(candles) == 0 {
			// The feed has no further history.
			return fmt.Errorf("%w: feed exhausted with %d/%d candles",
				shared.ErrInsufficientHistory, len(stored), want)
		}

		err = s.cfg.Storer.UpsertCandles(ctx, candles)
		if err != nil {
			return fmt.Errorf("upserting candles: %w", err)
		}

		s.invalidateCache(timeframe)
		before = candles[0].Date

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info().Msgf("backfilled %d %s candles before %s",
				len(candles), timeframe.String(), before.Format(shared.DateLayout))
		}
	}
}

// UpdateLatest fetches candles newer than the latest stored one and merges
// them, invalidating cached windows on ingestion.
func (s *CandleStore) UpdateLatest(ctx context.Context, timeframe shared.Timeframe) error {
	candles, err := s.fetchWithRetry(ctx, timeframe, time.Time{}, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	last, err := s.cfg.Storer.LastCandleTime(ctx, timeframe)
	if err != nil {
		return fmt.Errorf("fetching last candle time: %w", err)
	}

	fresh := make([]shared.Candlestick, 0, len(candles))
	for idx := range candles {
		if candles[idx].Date.After(last) {
			fresh = append(fresh, candles[idx])
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	err = s.cfg.Storer.UpsertCandles(ctx, fresh)
	if err != nil {
		return fmt.Errorf("upserting candles: %w", err)
	}

	s.invalidateCache(timeframe)
	s.trackRecent(timeframe, fresh)

	return nil
}

// loadWindow scans the most recent limit candles and reverses them into
// oldest-to-newest order, dropping duplicate timestamps.
func (s *CandleStore) loadWindow(ctx context.Context, timeframe shared.Timeframe, limit int) ([]shared.Candlestick, error) {
	stored, err := s.cfg.Storer.RangeScan(ctx, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("scanning stored candles: %w", err)
	}

	window := make([]shared.Candlestick, 0, len(stored))
	for idx := len(stored) - 1; idx >= 0; idx-- {
		if len(window) > 0 && !stored[idx].Date.After(window[len(window)-1].Date) {
			continue
		}
		window = append(window, stored[idx])
	}

	return window, nil
}

// GetCandles returns up to limit of the most recent candles for the
// timeframe, ordered oldest to newest. A window short of the limit triggers
// a backfill bounded by the configured timeout; if the store still comes up
// short the partial window is returned alongside a soft insufficiency error.
func (s *CandleStore) GetCandles(ctx context.Context, timeframe shared.Timeframe, limit int) ([]shared.Candlestick, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: candle limit must be positive, got %d", shared.ErrConfig, limit)
	}

	key := cacheKey{timeframe: timeframe, limit: limit}

	s.cacheMtx.RLock()
	cached, ok := s.cache[key]
	snapshot := s.recent[timeframe]
	s.cacheMtx.RUnlock()
	if ok {
		window := make([]shared.Candlestick, len(cached))
		copy(window, cached)
		return window, nil
	}

	// The recent window holds the freshest contiguous candles, so small
	// reads skip the storage scan entirely.
	if snapshot != nil && int(snapshot.Count()) >= limit {
		return snapshot.LastN(int32(limit)), nil
	}

	window, err := s.loadWindow(ctx, timeframe, limit)
	if err != nil {
		return nil, err
	}

	if len(window) < limit {
		backfillCtx, cancel := context.WithTimeout(ctx, s.cfg.BackfillTimeout)
		err := s.Backfill(backfillCtx, timeframe, limit)
		cancel()
		if err != nil && s.cfg.Logger != nil {
			s.cfg.Logger.Warn().Msgf("backfilling %s candles: %v", timeframe.String(), err)
		}

		window, err = s.loadWindow(ctx, timeframe, limit)
		if err != nil {
			return nil, err
		}
	}

	if len(window) < limit {
		// Degrade softly: callers requiring a guaranteed size check the
		// insufficiency, the rest proceed with the shorter window.
		return window, fmt.Errorf("%w: requested %d %s candles, got %d",
			shared.ErrInsufficientHistory, limit, timeframe.String(), len(window))
	}

	s.cacheMtx.Lock()
	s.cache[key] = window
	s.cacheMtx.Unlock()

	out := make([]shared.Candlestick, len(window))
	copy(out, window)

	return out, nil
}
