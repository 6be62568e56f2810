package viewstate

import (
	"context"
	"fmt"

	"github.com/goliatone/go-viewstate/pkg/statediff"
)

// StateDiff is the forward difference between two external states of a
// delta-capable control. Passing a StateDiff to ApplyExternalState patches the
// control; passing a plain map replaces its state.
type StateDiff map[string]any

// StateUtil retrieves, diffs and applies the external state of delta-capable
// controls.
type StateUtil interface {
	RetrieveExternalState(ctx context.Context, control Control) (map[string]any, error)
	DiffState(ctx context.Context, control Control, initial, full map[string]any) (StateDiff, error)
	ApplyExternalState(ctx context.Context, control Control, state any) error
}

// ExternalStateHolder is implemented by controls that expose their external
// state directly. DefaultStateUtil works on such controls.
type ExternalStateHolder interface {
	ExternalState() map[string]any
	SetExternalState(state map[string]any) error
}

// DefaultStateUtil implements StateUtil on top of pkg/statediff.
type DefaultStateUtil struct{}

var _ StateUtil = DefaultStateUtil{}

func (DefaultStateUtil) RetrieveExternalState(_ context.Context, control Control) (map[string]any, error) {
	holder, err := externalStateHolder(control)
	if err != nil {
		return nil, err
	}
	state := statediff.Copy(holder.ExternalState())
	if state == nil {
		state = map[string]any{}
	}
	return state, nil
}

func (DefaultStateUtil) DiffState(_ context.Context, _ Control, initial, full map[string]any) (StateDiff, error) {
	diff := statediff.Diff(initial, full)
	if diff == nil {
		return StateDiff{}, nil
	}
	return StateDiff(diff), nil
}

func (DefaultStateUtil) ApplyExternalState(_ context.Context, control Control, state any) error {
	holder, err := externalStateHolder(control)
	if err != nil {
		return err
	}
	switch typed := state.(type) {
	case StateDiff:
		return holder.SetExternalState(statediff.Patch(holder.ExternalState(), typed))
	case map[string]any:
		return holder.SetExternalState(statediff.Copy(typed))
	case nil:
		return nil
	default:
		return fmt.Errorf("viewstate: unsupported external state %T for control %q", state, control.ID())
	}
}

func externalStateHolder(control Control) (ExternalStateHolder, error) {
	if control == nil {
		return nil, ErrNilControl
	}
	holder, ok := control.(ExternalStateHolder)
	if !ok {
		return nil, fmt.Errorf("viewstate: control %q does not expose external state", control.ID())
	}
	return holder, nil
}
