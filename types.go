package viewstate

import (
	"context"
	"errors"
)

// AdditionalStatesKey is the reserved snapshot key holding state contributed
// by the hosting controller rather than by a control.
const AdditionalStatesKey = "$additionalStates"

var (
	// ErrInvalidHandler reports a resolved handler missing the function the
	// current lifecycle phase needs. It is never recovered internally.
	ErrInvalidHandler = errors.New("viewstate: invalid control state handler")
	// ErrReservedKey reports a control whose state key collides with
	// AdditionalStatesKey.
	ErrReservedKey = errors.New("viewstate: control state key is reserved")
	// ErrNilControl reports a nil control handed to a handler or the cache.
	ErrNilControl = errors.New("viewstate: control is nil")
)

// Control is an interactive element hosted by a view.
type Control interface {
	ID() string
}

// Snapshot maps control state keys to opaque per-control state. The
// AdditionalStatesKey entry, when present, holds a map[string]any.
type Snapshot map[string]any

// AdditionalStates returns the hosting controller's non-control state.
func (s Snapshot) AdditionalStates() map[string]any {
	if s == nil {
		return nil
	}
	switch typed := s[AdditionalStatesKey].(type) {
	case map[string]any:
		return typed
	case Snapshot:
		return map[string]any(typed)
	default:
		return nil
	}
}

// NavigationType tells applyViewState why it was invoked.
type NavigationType string

const (
	NavigationTypeInitial   NavigationType = "initial"
	NavigationTypeURLParams NavigationType = "URLParams"
	NavigationTypeXAppState NavigationType = "xAppState"
	NavigationTypeIAppState NavigationType = "iAppState"
	NavigationTypeHybrid    NavigationType = "hybrid"
)

// RestoresAppState reports whether the navigation restores a persisted
// application state rather than arriving with fresh parameters.
func (t NavigationType) RestoresAppState() bool {
	return t == NavigationTypeIAppState || t == NavigationTypeHybrid
}

// NavigationParameter describes the navigation that led to applyViewState.
type NavigationParameter struct {
	NavigationType           NavigationType `json:"navigationType"`
	SelectionVariant         map[string]any `json:"selectionVariant,omitempty"`
	SelectionVariantDefaults map[string]any `json:"selectionVariantDefaults,omitempty"`
	RequiresStandardVariant  bool           `json:"requiresStandardVariant,omitempty"`
}

// DeltaEnvelope pairs the current external state of a delta-capable control
// with the baseline captured for the running epoch.
type DeltaEnvelope struct {
	FullState    map[string]any `json:"fullState"`
	InitialState map[string]any `json:"initialState"`
}

// Handler is the capability record resolved for a control. Retrieve returns
// the control state, Apply restores it and RefreshBinding refreshes data
// bindings. Any of them may be nil; invoking a nil one yields ErrInvalidHandler.
type Handler struct {
	Retrieve       func(ctx context.Context, control Control) (any, error)
	Apply          func(ctx context.Context, control Control, state any, nav *NavigationParameter) error
	RefreshBinding func(ctx context.Context, control Control) error
}

// RefreshHandler exposes only the refresh-binding capability of a handler.
type RefreshHandler struct {
	RefreshBinding func(ctx context.Context, control Control) error
}

// Task is an asynchronous precondition or side effect contributed by a hook.
type Task func(ctx context.Context) error

// ViewState is implemented by Controller and consumed by nested views and
// keep-alive helpers.
type ViewState interface {
	RetrieveViewState(ctx context.Context) (Snapshot, bool, error)
	ApplyViewState(ctx context.Context, snapshot Snapshot, nav NavigationParameter) error
	RefreshViewBindings(ctx context.Context) error
}
