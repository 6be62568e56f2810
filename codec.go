package viewstate

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/goliatone/go-viewstate/internal/hydrate"
)

// EncodeSnapshot renders snapshot in its persisted form: a flat JSON object
// of control state keys plus the reserved additional states key.
func EncodeSnapshot(snapshot Snapshot) ([]byte, error) {
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	data, err := json.Marshal(map[string]any(snapshot))
	if err != nil {
		return nil, fmt.Errorf("viewstate: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted snapshot. Delta envelopes come back in
// their map form, which applyViewState accepts as well.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("viewstate: decode snapshot: %w", err)
	}
	if raw == nil {
		return Snapshot{}, nil
	}
	if additional, ok := raw[AdditionalStatesKey]; ok && additional != nil {
		if _, ok := additional.(map[string]any); !ok {
			return nil, fmt.Errorf("viewstate: decode snapshot: %s must be an object, got %T", AdditionalStatesKey, additional)
		}
	}
	return Snapshot(raw), nil
}

// DecodeState hydrates the state stored under key into T.
func DecodeState[T any](snapshot Snapshot, key string) (T, error) {
	var zero T
	value, ok := snapshot[key]
	if !ok || value == nil {
		return zero, fmt.Errorf("viewstate: no state for key %q", key)
	}
	if typed, ok := value.(T); ok {
		return typed, nil
	}
	payload, ok := asStateMap(mergeable(value))
	if !ok {
		return zero, fmt.Errorf("viewstate: state for key %q is %T, not an object", key, value)
	}
	return hydrate.NewDecoder[T]().Decode(hydrate.Context{Key: key}, payload)
}
