package shared

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// CurrentStateVersion is the snapshot schema version written by this build.
	CurrentStateVersion = 1
)

// StrategyState represents the persistable state of a single strategy.
// Composite strategies nest their children's states in order.
type StrategyState struct {
	Name     string             `json:"name"`
	Values   map[string]float64 `json:"values,omitempty"`
	Children []*StrategyState   `json:"children,omitempty"`
}

// StateSnapshot represents the versioned persistable state of a trading run,
// exchanged at startup and after every confirmed position transition.
type StateSnapshot struct {
	Version    int            `json:"version"`
	Position   PositionState  `json:"position"`
	EntryPrice float64        `json:"entry_price"`
	EntrySize  float64        `json:"entry_size"`
	EntryTime  time.Time      `json:"entry_time"`
	UpdatedOn  time.Time      `json:"updated_on"`
	Strategy   *StrategyState `json:"strategy,omitempty"`
}

// EncodeState encodes the provided state snapshot for persistence.
func EncodeState(state *StateSnapshot) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("state snapshot cannot be nil")
	}

	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state snapshot: %w", err)
	}

	return b, nil
}

// parseStrategyState parses a strategy state from the provided json data.
func parseStrategyState(data gjson.Result) *StrategyState {
	if !data.Exists() {
		return nil
	}

	state := &StrategyState{
		Name: data.Get("name").String(),
	}

	values := data.Get("values").Map()
	if len(values) > 0 {
		state.Values = make(map[string]float64, len(values))
		for k, v := range values {
			state.Values[k] = v.Float()
		}
	}

	children := data.Get("children").Array()
	for idx := range children {
		state.Children = append(state.Children, parseStrategyState(children[idx]))
	}

	return state
}

// DecodeState parses a state snapshot from the provided json data.
func DecodeState(b []byte) (*StateSnapshot, error) {
	data := gjson.ParseBytes(b)

	version := data.Get("version").Int()
	if version != CurrentStateVersion {
		return nil, fmt.Errorf("%w: unsupported state snapshot version %d", ErrConfig, version)
	}

	position, err := ParsePositionState(data.Get("position").String())
	if err != nil {
		// Older snapshots persisted position states as integers.
		position = PositionState(data.Get("position").Int())
	}

	state := &StateSnapshot{
		Version:    int(version),
		Position:   position,
		EntryPrice: data.Get("entry_price").Float(),
		EntrySize:  data.Get("entry_size").Float(),
		Strategy:   parseStrategyState(data.Get("strategy")),
	}

	if raw := data.Get("entry_time").String(); raw != "" {
		entryTime, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing state snapshot entry time: %w", err)
		}
		state.EntryTime = entryTime
	}

	if raw := data.Get("updated_on").String(); raw != "" {
		updatedOn, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parsing state snapshot update time: %w", err)
		}
		state.UpdatedOn = updatedOn
	}

	return state, nil
}
