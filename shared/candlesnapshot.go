package shared

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"
)

// CandleSnapshot represents a bounded in-memory window of candlestick data
// for one timeframe. New entries overwrite the oldest once at capacity.
type CandleSnapshot struct {
	data      []*Candlestick
	dataMtx   sync.RWMutex
	start     atomic.Int32
	count     atomic.Int32
	size      atomic.Int32
	timeframe Timeframe
}

// NewCandleSnapshot initializes a new candle snapshot.
func NewCandleSnapshot(size int32, timeframe Timeframe) (*CandleSnapshot, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: snapshot size must be positive, got %d", ErrConfig, size)
	}

	snapshot := &CandleSnapshot{
		data:      make([]*Candlestick, size),
		timeframe: timeframe,
	}

	snapshot.size.Store(size)
	return snapshot, nil
}

// Update adds the provided candlestick to the snapshot.
func (s *CandleSnapshot) Update(candle *Candlestick) error {
	if candle.Timeframe != s.timeframe {
		return fmt.Errorf("expected candles with timeframe %s, got %s",
			s.timeframe.String(), candle.Timeframe.String())
	}

	s.dataMtx.Lock()
	defer s.dataMtx.Unlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	end := (start + count) % size
	s.data[end] = candle

	if count == size {
		// Overwrite the oldest entry when the snapshot is at capacity.
		s.start.Store((start + 1) % size)
	} else {
		s.count.Add(1)
	}

	return nil
}

// Last returns the last added entry for the snapshot.
func (s *CandleSnapshot) Last() *Candlestick {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()
	if count == 0 {
		return nil
	}

	end := (start + count - 1) % size
	return s.data[end]
}

// LastN fetches the last n elements from the snapshot, ordered oldest to
// newest. The returned candles are copies and never mutated by later updates.
func (s *CandleSnapshot) LastN(n int32) []Candlestick {
	s.dataMtx.RLock()
	defer s.dataMtx.RUnlock()

	if n <= 0 {
		return nil
	}

	start := s.start.Load()
	count := s.count.Load()
	size := s.size.Load()

	// Clamp the number of elements expected if it is greater than the snapshot count.
	if n > count {
		n = count
	}

	set := make([]Candlestick, n)
	start = (start + count - n + size) % size

	for i := range n {
		idx := (start + i) % size
		set[i] = *s.data[idx]
	}

	return set
}

// Count returns the number of entries held by the snapshot.
func (s *CandleSnapshot) Count() int32 {
	return s.count.Load()
}
