// Package position enforces the flat/long position lifecycle and records
// immutable trades when positions close.
package position

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rsowell/replay/shared"
)

// Trade represents a completed round trip, created exactly once at a
// long-to-flat transition. Trades are immutable once created.
type Trade struct {
	ID         string
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	EntryTime  time.Time
	ExitTime   time.Time
	PNL        float64
	PNLPercent float64
}

// MachineConfig represents the configuration for the position state machine.
type MachineConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Machine represents the position state machine. It starts flat and only
// ever transitions flat -> long on a confirmed buy and long -> flat on a
// confirmed sell; any other requested transition is rejected without
// mutating state.
type Machine struct {
	cfg *MachineConfig

	stateMtx   sync.RWMutex
	state      shared.PositionState
	entryPrice float64
	entrySize  float64
	entryTime  time.Time

	trades []Trade
}

// NewMachine initializes a new position state machine.
func NewMachine(cfg *MachineConfig) *Machine {
	return &Machine{
		cfg:   cfg,
		state: shared.Flat,
	}
}

// State returns the current position state.
func (m *Machine) State() shared.PositionState {
	m.stateMtx.RLock()
	defer m.stateMtx.RUnlock()

	return m.state
}

// Entry returns the entry details of the open position. The second return
// is false when the machine is flat.
func (m *Machine) Entry() (float64, float64, time.Time, bool) {
	m.stateMtx.RLock()
	defer m.stateMtx.RUnlock()

	if m.state != shared.Long {
		return 0, 0, time.Time{}, false
	}

	return m.entryPrice, m.entrySize, m.entryTime, true
}

// OpenLong transitions the machine from flat to long using the provided
// confirmed fill. Opening while already long is rejected.
func (m *Machine) OpenLong(fill float64, at time.Time, size float64) error {
	m.stateMtx.Lock()
	defer m.stateMtx.Unlock()

	if m.state != shared.Flat {
		return fmt.Errorf("%w: cannot open long from %s state",
			shared.ErrInvalidTransition, m.state.String())
	}
	if fill <= 0 {
		return fmt.Errorf("%w: fill price must be positive, got %f",
			shared.ErrInvalidTransition, fill)
	}
	if size <= 0 {
		return fmt.Errorf("%w: position size must be positive, got %f",
			shared.ErrInvalidTransition, size)
	}

	m.state = shared.Long
	m.entryPrice = fill
	m.entrySize = size
	m.entryTime = at

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info().Msgf("position opened: long %.4f @ %.4f", size, fill)
	}

	return nil
}

// CloseLong transitions the machine from long to flat using the provided
// confirmed fill, computing and appending the resulting trade. Closing while
// flat is rejected.
func (m *Machine) CloseLong(fill float64, at time.Time) (*Trade, error) {
	m.stateMtx.Lock()
	defer m.stateMtx.Unlock()

	if m.state != shared.Long {
		return nil, fmt.Errorf("%w: cannot close long from %s state",
			shared.ErrInvalidTransition, m.state.String())
	}
	if fill <= 0 {
		return nil, fmt.Errorf("%w: fill price must be positive, got %f",
			shared.ErrInvalidTransition, fill)
	}

	trade := Trade{
		ID:         uuid.New().String(),
		EntryPrice: m.entryPrice,
		ExitPrice:  fill,
		Size:       m.entrySize,
		EntryTime:  m.entryTime,
		ExitTime:   at,
		PNL:        (fill - m.entryPrice) / m.entryPrice * m.entrySize,
		PNLPercent: (fill - m.entryPrice) / m.entryPrice * 100,
	}

	m.state = shared.Flat
	m.entryPrice = 0
	m.entrySize = 0
	m.entryTime = time.Time{}
	m.trades = append(m.trades, trade)

	if m.cfg.Logger != nil {
		m.cfg.Logger.Info().Msgf("position closed: entry %.4f, exit %.4f, pnl %.4f (%+.2f%%)",
			trade.EntryPrice, trade.ExitPrice, trade.PNL, trade.PNLPercent)
	}

	return &trade, nil
}

// Trades returns a copy of the trade log in close order.
func (m *Machine) Trades() []Trade {
	m.stateMtx.RLock()
	defer m.stateMtx.RUnlock()

	set := make([]Trade, len(m.trades))
	copy(set, m.trades)

	return set
}

// Snapshot captures the machine's position fields for persistence.
func (m *Machine) Snapshot() *shared.StateSnapshot {
	m.stateMtx.RLock()
	defer m.stateMtx.RUnlock()

	return &shared.StateSnapshot{
		Version:    shared.CurrentStateVersion,
		Position:   m.state,
		EntryPrice: m.entryPrice,
		EntrySize:  m.entrySize,
		EntryTime:  m.entryTime,
	}
}

// Restore loads the machine's position fields from the provided snapshot.
// A long snapshot must carry its entry details.
func (m *Machine) Restore(state *shared.StateSnapshot) error {
	if state == nil {
		return fmt.Errorf("state snapshot cannot be nil")
	}

	m.stateMtx.Lock()
	defer m.stateMtx.Unlock()

	switch state.Position {
	case shared.Flat:
		m.state = shared.Flat
		m.entryPrice = 0
		m.entrySize = 0
		m.entryTime = time.Time{}
	case shared.Long:
		if state.EntryPrice <= 0 || state.EntrySize <= 0 {
			return fmt.Errorf("%w: long snapshot missing entry details",
				shared.ErrInvalidTransition)
		}

		m.state = shared.Long
		m.entryPrice = state.EntryPrice
		m.entrySize = state.EntrySize
		m.entryTime = state.EntryTime
	default:
		return fmt.Errorf("%w: unknown position state %d",
			shared.ErrInvalidTransition, state.Position)
	}

	return nil
}
