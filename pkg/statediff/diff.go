// Package statediff computes and applies forward differences between two
// external control states. States are JSON-shaped maps: nested maps are
// compared key by key, every other value is compared as a whole.
//
// A diff only carries what changed. Keys present in the baseline but missing
// from the target are reported with a nil value, which Patch interprets as a
// removal. As a consequence an explicit nil in a target state is
// indistinguishable from an absent key.
package statediff

import (
	"reflect"

	"github.com/tiendc/go-deepcopy"
)

// Diff returns the changes that turn initial into full. The result is nil when
// both states are equivalent.
func Diff(initial, full map[string]any) map[string]any {
	var out map[string]any
	set := func(key string, value any) {
		if out == nil {
			out = map[string]any{}
		}
		out[key] = value
	}

	for key, target := range full {
		base, ok := initial[key]
		if !ok || base == nil {
			if target != nil {
				set(key, copyValue(target))
			}
			continue
		}
		baseMap, baseIsMap := base.(map[string]any)
		targetMap, targetIsMap := target.(map[string]any)
		if baseIsMap && targetIsMap {
			if nested := Diff(baseMap, targetMap); nested != nil {
				set(key, nested)
			}
			continue
		}
		if !reflect.DeepEqual(base, target) {
			set(key, copyValue(target))
		}
	}

	for key, base := range initial {
		if base == nil {
			continue
		}
		if target, ok := full[key]; !ok || target == nil {
			set(key, nil)
		}
	}
	return out
}

// Patch applies diff on top of current and returns the resulting state.
// current is never modified.
func Patch(current, diff map[string]any) map[string]any {
	out := Copy(current)
	if out == nil {
		out = map[string]any{}
	}
	for key, change := range diff {
		if change == nil {
			delete(out, key)
			continue
		}
		changeMap, changeIsMap := change.(map[string]any)
		existingMap, existingIsMap := out[key].(map[string]any)
		if changeIsMap && existingIsMap {
			out[key] = Patch(existingMap, changeMap)
			continue
		}
		out[key] = copyValue(change)
	}
	return out
}

// Copy returns a deep copy of state.
func Copy(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	var out map[string]any
	if err := deepcopy.Copy(&out, state); err != nil {
		out = make(map[string]any, len(state))
		for key, value := range state {
			out[key] = value
		}
	}
	return out
}

func copyValue(value any) any {
	if m, ok := value.(map[string]any); ok {
		return Copy(m)
	}
	if s, ok := value.([]any); ok {
		var out []any
		if err := deepcopy.Copy(&out, s); err == nil {
			return out
		}
		return append([]any(nil), s...)
	}
	return value
}
