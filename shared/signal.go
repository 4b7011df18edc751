package shared

import "fmt"

// Signal represents a trading signal produced by a strategy for one tick.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

// String stringifies the provided signal.
func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Hold:
		return "hold"
	default:
		return "unknown"
	}
}

// PositionState represents the position state of the machine.
type PositionState int

const (
	Flat PositionState = iota
	Long
)

// String stringifies the provided position state.
func (p PositionState) String() string {
	switch p {
	case Flat:
		return "flat"
	case Long:
		return "long"
	default:
		return "unknown"
	}
}

// ParsePositionState parses a position state from the provided string.
func ParsePositionState(s string) (PositionState, error) {
	switch s {
	case "flat":
		return Flat, nil
	case "long":
		return Long, nil
	default:
		return Flat, fmt.Errorf("%w: unknown position state %q", ErrConfig, s)
	}
}

// MarshalJSON encodes the position state as its string form.
func (p PositionState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}
