package viewstate

import (
	"context"

	"github.com/goliatone/go-viewstate/internal/hydrate"
	"github.com/goliatone/go-viewstate/pkg/activity"
)

func (c *Controller) registerBuiltins() {
	c.registry.Register(CapabilityVariantManagement, Handler{
		Retrieve: c.retrieveVariantManagement,
		Apply:    c.applyVariantManagement,
	})
	delta := Handler{
		Retrieve: c.retrieveDelta,
		Apply:    c.applyDelta,
	}
	c.registry.Register(CapabilityFilterBar, delta)
	delta.RefreshBinding = refreshBindingOf
	c.registry.Register(CapabilityTable, delta)
	c.registry.Register(CapabilityChart, delta)
	c.registry.Register(CapabilityNestedView, Handler{
		Retrieve:       retrieveNestedView,
		Apply:          applyNestedView,
		RefreshBinding: refreshNestedView,
	})
	c.registry.Register(CapabilityLayout, Handler{
		Retrieve: retrieveLayout,
		Apply:    applyLayout,
	})
	c.registry.Register(CapabilitySingleChoice, Handler{
		Retrieve: retrieveSingleChoice,
		Apply:    applySingleChoice,
	})
}

func (c *Controller) retrieveVariantManagement(_ context.Context, control Control) (any, error) {
	vm, ok := control.(VariantManager)
	if !ok {
		return nil, nil
	}
	return map[string]any{"variantId": vm.CurrentVariantKey()}, nil
}

// applyVariantManagement activates the stored variant. A variant that no
// longer exists falls back to the standard variant and takes the associated
// controls out of delta mode for the lifetime of the controller.
func (c *Controller) applyVariantManagement(ctx context.Context, control Control, state any, nav *NavigationParameter) error {
	vm, ok := control.(VariantManager)
	if !ok {
		return nil
	}

	target := stringField(state, "variantId")
	if nav != nil && nav.RequiresStandardVariant {
		target = vm.StandardVariantKey()
	}
	if target == "" || target == vm.CurrentVariantKey() {
		c.seedAssociated(ctx, vm)
		c.attachVariant(vm)
		return nil
	}

	if !containsString(vm.VariantKeys(), target) {
		fallback := vm.StandardVariantKey()
		c.logger.Warnw("stored variant no longer available, using standard variant",
			"view", c.viewID,
			"control", vm.ID(),
			"variant", target,
			"standard", fallback,
		)
		c.markUnavailable(vm.AssociatedControlIDs())
		c.emit(ctx, activity.BuildVariantUnavailableEvent(c.eventInput(activity.ViewContext{
			ControlID:  vm.ID(),
			Key:        c.StateKey(vm),
			VariantKey: target,
		})))
		target = fallback
	}

	if err := vm.ActivateVariant(ctx, target); err != nil {
		// The previous variant stays active. Its baselines and listeners are
		// still needed so that a later save or select ends the epoch.
		c.logger.Errorw("variant activation failed",
			"view", c.viewID,
			"control", vm.ID(),
			"variant", target,
			"current", vm.CurrentVariantKey(),
			"error", err,
		)
		c.seedAssociated(ctx, vm)
		c.attachVariant(vm)
		return nil
	}
	c.emit(ctx, activity.BuildVariantActivatedEvent(c.eventInput(activity.ViewContext{
		ControlID:  vm.ID(),
		Key:        c.StateKey(vm),
		VariantKey: target,
	})))
	c.seedAssociated(ctx, vm)
	c.attachVariant(vm)
	return nil
}

func (c *Controller) seedAssociated(ctx context.Context, vm VariantManager) {
	if err := c.seedBaselines(ctx, c.scopeControls(), vm); err != nil {
		c.logger.Errorw("seeding variant baselines failed",
			"view", c.viewID,
			"control", vm.ID(),
			"error", err,
		)
	}
}

func (c *Controller) attachVariant(vm VariantManager) {
	ids := vm.AssociatedControlIDs()
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.localKey(id))
	}
	if c.bridge.Attach(vm, keys) {
		c.logger.Debugw("variant listeners attached", "view", c.viewID, "control", vm.ID(), "keys", keys)
	}
}

func (c *Controller) retrieveDelta(ctx context.Context, control Control) (any, error) {
	full, err := c.util.RetrieveExternalState(ctx, control)
	if err != nil {
		c.logger.Errorw("retrieving external state failed",
			"view", c.viewID,
			"control", control.ID(),
			"error", err,
		)
		return nil, nil
	}
	return c.cache.Envelope(c.StateKey(control), full), nil
}

// applyDelta sends the difference against the stored baseline when there is
// one, the full state otherwise.
func (c *Controller) applyDelta(ctx context.Context, control Control, state any, _ *NavigationParameter) error {
	if state == nil {
		return nil
	}
	key := c.StateKey(control)

	var payload any
	envelope, isEnvelope := c.envelopeOf(state, key)
	switch {
	case isEnvelope && len(envelope.InitialState) > 0 && !c.unavailable(key):
		diff, err := c.util.DiffState(ctx, control, envelope.InitialState, envelope.FullState)
		if err != nil {
			c.logger.Errorw("computing state diff failed",
				"view", c.viewID,
				"control", control.ID(),
				"key", key,
				"error", err,
			)
			return nil
		}
		payload = diff
	case isEnvelope:
		payload = envelope.FullState
	default:
		full, ok := asStateMap(state)
		if !ok {
			c.logger.Warnw("ignoring external state of unexpected type",
				"view", c.viewID,
				"control", control.ID(),
				"key", key,
			)
			return nil
		}
		payload = full
	}

	if err := c.util.ApplyExternalState(ctx, control, payload); err != nil {
		c.logger.Errorw("applying external state failed",
			"view", c.viewID,
			"control", control.ID(),
			"key", key,
			"error", err,
		)
	}
	return nil
}

// envelopeOf recognises a DeltaEnvelope and its decoded JSON form.
func (c *Controller) envelopeOf(state any, key string) (DeltaEnvelope, bool) {
	switch typed := state.(type) {
	case DeltaEnvelope:
		return typed, true
	case *DeltaEnvelope:
		if typed == nil {
			return DeltaEnvelope{}, false
		}
		return *typed, true
	}
	payload, ok := asStateMap(state)
	if !ok {
		return DeltaEnvelope{}, false
	}
	if _, ok := payload["fullState"]; !ok {
		return DeltaEnvelope{}, false
	}
	if _, ok := payload["initialState"]; !ok {
		return DeltaEnvelope{}, false
	}
	envelope, err := c.envelopes.Decode(hydrate.Context{ViewID: c.viewID, Key: key}, payload)
	if err != nil {
		c.logger.Warnw("decoding delta envelope failed", "view", c.viewID, "key", key, "error", err)
		return DeltaEnvelope{}, false
	}
	return envelope, true
}

func refreshBindingOf(ctx context.Context, control Control) error {
	if refresher, ok := control.(BindingRefresher); ok {
		return refresher.RefreshBinding(ctx)
	}
	return nil
}

func retrieveNestedView(ctx context.Context, control Control) (any, error) {
	nested := nestedViewState(control)
	if nested == nil {
		return nil, nil
	}
	snapshot, ok, err := nested.RetrieveViewState(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return map[string]any(snapshot), nil
}

func applyNestedView(ctx context.Context, control Control, state any, nav *NavigationParameter) error {
	nested := nestedViewState(control)
	if nested == nil {
		return nil
	}
	snapshot, _ := asStateMap(state)
	var navigation NavigationParameter
	if nav != nil {
		navigation = *nav
	}
	return nested.ApplyViewState(ctx, Snapshot(snapshot), navigation)
}

func refreshNestedView(ctx context.Context, control Control) error {
	if nested := nestedViewState(control); nested != nil {
		return nested.RefreshViewBindings(ctx)
	}
	return nil
}

func nestedViewState(control Control) ViewState {
	if nv, ok := control.(NestedView); ok {
		return nv.NestedViewState()
	}
	return nil
}

func retrieveLayout(_ context.Context, control Control) (any, error) {
	state := map[string]any{}
	if selector, ok := control.(SectionSelector); ok {
		state["selectedSection"] = selector.SelectedSection()
	}
	if toggler, ok := control.(HeaderToggler); ok {
		state["headerExpanded"] = toggler.HeaderExpanded()
	}
	return state, nil
}

func applyLayout(_ context.Context, control Control, state any, _ *NavigationParameter) error {
	payload, ok := asStateMap(state)
	if !ok {
		return nil
	}
	if selector, ok := control.(SectionSelector); ok {
		if section, ok := payload["selectedSection"].(string); ok && section != "" {
			selector.SetSelectedSection(section)
		}
	}
	if toggler, ok := control.(HeaderToggler); ok {
		if expanded, ok := payload["headerExpanded"].(bool); ok {
			toggler.SetHeaderExpanded(expanded)
		}
	}
	return nil
}

func retrieveSingleChoice(_ context.Context, control Control) (any, error) {
	choice, ok := control.(SingleChoice)
	if !ok {
		return nil, nil
	}
	return map[string]any{"selectedKey": choice.SelectedKey()}, nil
}

func applySingleChoice(_ context.Context, control Control, state any, _ *NavigationParameter) error {
	choice, ok := control.(SingleChoice)
	if !ok {
		return nil
	}
	if key := stringField(state, "selectedKey"); key != "" {
		choice.SetSelectedKey(key)
	}
	return nil
}

func asStateMap(state any) (map[string]any, bool) {
	switch typed := state.(type) {
	case map[string]any:
		return typed, true
	case Snapshot:
		return map[string]any(typed), true
	default:
		return nil, false
	}
}

func stringField(state any, field string) string {
	payload, ok := asStateMap(state)
	if !ok {
		return ""
	}
	value, _ := payload[field].(string)
	return value
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
