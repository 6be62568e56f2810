package viewstate

import (
	"context"
	"sort"

	"github.com/goliatone/go-viewstate/pkg/activity"
)

// WithActivityHooks attaches activity hooks to the controller. Nil entries
// are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := hooks.Compact()
	return func(cfg *controllerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityConfig overrides the emission defaults. Without it, emission is
// enabled as soon as hooks are attached.
func WithActivityConfig(config activity.Config) Option {
	return func(cfg *controllerConfig) {
		cfg.activityConfig = &config
	}
}

// ActivityHooks returns a copy of the hooks configured on the controller.
func (c *Controller) ActivityHooks() activity.Hooks {
	if c == nil {
		return nil
	}
	return c.hooks.Compact()
}

func (c *Controller) emit(ctx context.Context, event activity.Event) {
	if !c.emitter.Enabled() {
		return
	}
	if err := c.emitter.Emit(ctx, event); err != nil {
		c.logger.Warnw("activity emission failed", "verb", event.Verb, "error", err)
	}
}

// eventInput leaves ViewID to the emitter.
func (c *Controller) eventInput(view activity.ViewContext) activity.ViewStateEventInput {
	return activity.ViewStateEventInput{View: view}
}

func (c *Controller) eventInputWithKeys(view activity.ViewContext, snapshot Snapshot) activity.ViewStateEventInput {
	input := c.eventInput(view)
	if len(snapshot) == 0 {
		return input
	}
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	input.Keys = keys
	return input
}

// baselinesInvalidated is the variant bridge callback. Listeners carry no
// context of their own.
func (c *Controller) baselinesInvalidated(vm VariantManager, keys []string) {
	c.logger.Debugw("baselines invalidated", "control", vm.ID(), "keys", keys)
	input := c.eventInput(activity.ViewContext{
		ControlID:  vm.ID(),
		Key:        c.StateKey(vm),
		VariantKey: vm.CurrentVariantKey(),
	})
	input.Keys = append([]string(nil), keys...)
	c.emit(context.Background(), activity.BuildBaselineInvalidatedEvent(input))
}
