package viewstate

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// Extensions are plain values registered with WithExtensions. Each optional
// interface below is detected by type assertion; contributions of several
// extensions are concatenated in registration order.

// StateControlsAdapter lists the controls whose state is retrieved and applied.
type StateControlsAdapter interface {
	AdaptStateControls(ctx context.Context) ([]Control, error)
}

// BindingRefreshControlsAdapter lists the controls refreshed by
// RefreshViewBindings.
type BindingRefreshControlsAdapter interface {
	AdaptBindingRefreshControls(ctx context.Context) ([]Control, error)
}

// ControlStateHandlerAdapter contributes extra handlers for control.
type ControlStateHandlerAdapter interface {
	AdaptControlStateHandler(control Control) []Handler
}

// BindingRefreshHandlerAdapter contributes extra refresh handlers for control.
type BindingRefreshHandlerAdapter interface {
	AdaptBindingRefreshHandler(control Control) []RefreshHandler
}

// AdditionalStatesRetriever contributes state not bound to a control.
type AdditionalStatesRetriever interface {
	RetrieveAdditionalStates(ctx context.Context) (map[string]any, error)
}

// AdditionalStatesApplier consumes the additional states of a restored
// application state.
type AdditionalStatesApplier interface {
	ApplyAdditionalStates(ctx context.Context, states map[string]any) []Task
}

// NavigationParametersApplier reacts to fresh navigation parameters.
type NavigationParametersApplier interface {
	ApplyNavigationParameters(ctx context.Context, nav NavigationParameter) []Task
}

// FilterBarNavigationApplier is the filter-bar specific variant of
// NavigationParametersApplier. It runs after it.
type FilterBarNavigationApplier interface {
	ApplyNavigationParametersToFilterBar(ctx context.Context, nav NavigationParameter) []Task
}

// BeforeStateAppliedHook contributes preconditions of applyViewState.
type BeforeStateAppliedHook interface {
	OnBeforeStateApplied(ctx context.Context) []Task
}

// AfterStateAppliedHook runs once applyViewState settled, successfully or not.
type AfterStateAppliedHook interface {
	OnAfterStateApplied(ctx context.Context) []Task
}

// InitialStateOnlyPolicy overrides the apply-once default.
type InitialStateOnlyPolicy interface {
	ApplyInitialStateOnly() bool
}

// runTasks runs tasks concurrently and waits for all of them to settle.
// Failures are joined.
func runTasks(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	errs := make([]error, len(tasks))
	var group errgroup.Group
	for i, task := range tasks {
		if task == nil {
			continue
		}
		i, task := i, task
		group.Go(func() error {
			errs[i] = task(ctx)
			return nil
		})
	}
	_ = group.Wait()
	return errors.Join(errs...)
}

func (c *Controller) collectTasks(collect func(ext any) []Task) []Task {
	var tasks []Task
	for _, ext := range c.extensions {
		tasks = append(tasks, collect(ext)...)
	}
	return tasks
}

func (c *Controller) adaptControls(ctx context.Context, refresh bool) ([]Control, error) {
	var controls []Control
	for _, ext := range c.extensions {
		var (
			adapted []Control
			err     error
		)
		if refresh {
			adapter, ok := ext.(BindingRefreshControlsAdapter)
			if !ok {
				continue
			}
			adapted, err = adapter.AdaptBindingRefreshControls(ctx)
		} else {
			adapter, ok := ext.(StateControlsAdapter)
			if !ok {
				continue
			}
			adapted, err = adapter.AdaptStateControls(ctx)
		}
		if err != nil {
			return nil, err
		}
		for _, control := range adapted {
			if control != nil {
				controls = append(controls, control)
			}
		}
	}
	return controls, nil
}

func (c *Controller) retrieveAdditionalStates(ctx context.Context) (map[string]any, error) {
	var additional map[string]any
	for _, ext := range c.extensions {
		retriever, ok := ext.(AdditionalStatesRetriever)
		if !ok {
			continue
		}
		states, err := retriever.RetrieveAdditionalStates(ctx)
		if err != nil {
			return nil, err
		}
		for key, value := range states {
			if additional == nil {
				additional = map[string]any{}
			}
			additional[key] = value
		}
	}
	return additional, nil
}

func (c *Controller) applyInitialStateOnly() bool {
	policy := c.applyOnce
	for _, ext := range c.extensions {
		if p, ok := ext.(InitialStateOnlyPolicy); ok {
			policy = p.ApplyInitialStateOnly()
		}
	}
	return policy
}
