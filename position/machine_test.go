package position

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
	"github.com/rsowell/replay/shared"
)

func TestMachineTransitions(t *testing.T) {
	machine := NewMachine(&MachineConfig{Logger: &log.Logger})
	entryTime := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(time.Hour * 4)

	// Ensure the machine starts flat with no entry details.
	assert.Equal(t, machine.State(), shared.Flat)
	_, _, _, ok := machine.Entry()
	assert.False(t, ok)

	// Ensure closing while flat is rejected without mutating state.
	_, err := machine.CloseLong(120, exitTime)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
	assert.Equal(t, machine.State(), shared.Flat)

	// Ensure opening with a non-positive fill or size is rejected.
	err = machine.OpenLong(0, entryTime, 100)
	assert.Error(t, err)
	err = machine.OpenLong(104, entryTime, 0)
	assert.Error(t, err)
	assert.Equal(t, machine.State(), shared.Flat)

	// Ensure a confirmed buy transitions the machine to long.
	err = machine.OpenLong(104, entryTime, 100)
	assert.NoError(t, err)
	assert.Equal(t, machine.State(), shared.Long)

	entryPrice, entrySize, at, ok := machine.Entry()
	assert.True(t, ok)
	assert.Equal(t, entryPrice, 104.0)
	assert.Equal(t, entrySize, 100.0)
	assert.Equal(t, at, entryTime)

	// Ensure opening while already long is rejected without mutating state.
	err = machine.OpenLong(110, entryTime, 100)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
	assert.Equal(t, machine.State(), shared.Long)

	entryPrice, _, _, _ = machine.Entry()
	assert.Equal(t, entryPrice, 104.0)

	// Ensure a confirmed sell transitions the machine to flat and records
	// exactly one trade.
	trade, err := machine.CloseLong(124, exitTime)
	assert.NoError(t, err)
	assert.NotNil(t, trade)
	assert.Equal(t, machine.State(), shared.Flat)

	trades := machine.Trades()
	assert.Equal(t, len(trades), 1)

	// Ensure the trade pnl scales the price move by the position size.
	// (124-104)/104 * 100 = 19.2307...
	assert.Equal(t, trade.EntryPrice, 104.0)
	assert.Equal(t, trade.ExitPrice, 124.0)
	assert.Equal(t, trade.Size, 100.0)
	assert.Equal(t, trade.EntryTime, entryTime)
	assert.Equal(t, trade.ExitTime, exitTime)
	assert.Equal(t, trade.PNL, (124.0-104.0)/104.0*100.0)
	assert.Equal(t, trade.PNLPercent, (124.0-104.0)/104.0*100.0)
	assert.NotEqual(t, trade.ID, "")

	// Ensure a losing round trip records a negative pnl.
	err = machine.OpenLong(100, entryTime, 50)
	assert.NoError(t, err)
	trade, err = machine.CloseLong(90, exitTime)
	assert.NoError(t, err)
	assert.Equal(t, trade.PNL, -5.0)
	assert.Equal(t, trade.PNLPercent, -10.0)
	assert.Equal(t, len(machine.Trades()), 2)
}

func TestMachineSnapshotRestore(t *testing.T) {
	machine := NewMachine(&MachineConfig{Logger: &log.Logger})
	entryTime := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	// Ensure a flat machine snapshots as flat.
	state := machine.Snapshot()
	assert.Equal(t, state.Position, shared.Flat)
	assert.Equal(t, state.Version, shared.CurrentStateVersion)

	// Ensure a long machine snapshots its entry details.
	err := machine.OpenLong(104, entryTime, 100)
	assert.NoError(t, err)

	state = machine.Snapshot()
	assert.Equal(t, state.Position, shared.Long)
	assert.Equal(t, state.EntryPrice, 104.0)
	assert.Equal(t, state.EntrySize, 100.0)
	assert.Equal(t, state.EntryTime, entryTime)

	// Ensure restoring the snapshot rebuilds the open position on a fresh
	// machine.
	restored := NewMachine(&MachineConfig{Logger: &log.Logger})
	err = restored.Restore(state)
	assert.NoError(t, err)
	assert.Equal(t, restored.State(), shared.Long)

	entryPrice, entrySize, at, ok := restored.Entry()
	assert.True(t, ok)
	assert.Equal(t, entryPrice, 104.0)
	assert.Equal(t, entrySize, 100.0)
	assert.Equal(t, at, entryTime)

	// Ensure restoring a nil snapshot errors.
	err = restored.Restore(nil)
	assert.Error(t, err)

	// Ensure restoring a long snapshot missing entry details errors.
	err = restored.Restore(&shared.StateSnapshot{
		Version:  shared.CurrentStateVersion,
		Position: shared.Long,
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))

	// Ensure restoring a flat snapshot clears the entry details.
	err = restored.Restore(&shared.StateSnapshot{
		Version:  shared.CurrentStateVersion,
		Position: shared.Flat,
	})
	assert.NoError(t, err)
	assert.Equal(t, restored.State(), shared.Flat)
	_, _, _, ok = restored.Entry()
	assert.False(t, ok)
}
