package viewstate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-viewstate/internal/hydrate"
	"github.com/goliatone/go-viewstate/layering"
	"github.com/goliatone/go-viewstate/pkg/activity"
)

const (
	StateIdle     = "idle"
	StateApplying = "applying"
	StateApplied  = "applied"

	eventBeginApply  = "begin_apply"
	eventSettleApply = "settle_apply"
)

// Controller captures and restores the state of the controls of one view.
type Controller struct {
	viewID     string
	registry   *Registry
	cache      *DeltaCache
	bridge     *VariantBridge
	util       StateUtil
	extensions []any
	logger     *zap.SugaredLogger
	hooks      activity.Hooks
	emitter    *activity.Emitter
	applyOnce  bool
	lifecycle  *fsm.FSM
	envelopes  *hydrate.Decoder[DeltaEnvelope]

	applied    atomic.Bool
	retrieving atomic.Int64

	mu               sync.Mutex
	pending          chan struct{}
	applyDepth       int
	scope            []Control
	variantFallbacks map[string]struct{}
}

var _ ViewState = (*Controller)(nil)

// NewController builds a controller from opts. It fails when a configured
// rule does not compile or the rule engine is unknown.
func NewController(opts ...Option) (*Controller, error) {
	cfg := defaultControllerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := cfg.logger
	if logger == nil && cfg.logLevel != "" {
		built, err := NewLogger(cfg.logLevel)
		if err != nil {
			return nil, err
		}
		logger = built
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		built, err := NewEvaluator(cfg.engine, NewProgramCache(), cfg.functions)
		if err != nil {
			return nil, err
		}
		evaluator = built
	}

	c := &Controller{
		viewID:           cfg.viewID,
		util:             cfg.util,
		extensions:       cfg.extensions,
		logger:           logger,
		hooks:            cfg.activityHooks.Compact(),
		applyOnce:        cfg.applyOnce,
		cache:            cfg.cache,
		envelopes:        hydrate.NewDecoder[DeltaEnvelope](),
		variantFallbacks: map[string]struct{}{},
	}
	if c.util == nil {
		c.util = DefaultStateUtil{}
	}
	if c.cache == nil {
		c.cache = NewDeltaCache()
	}
	c.emitter = activity.NewEmitter(c.hooks, cfg.activityConfigOrDefault()).ForView(c.viewID)
	c.bridge = NewVariantBridge(c.cache, c.baselinesInvalidated)
	c.registry = NewRegistry(
		RegistryWithEvaluator(evaluator),
		RegistryWithLogger(logger),
		RegistryWithExtensions(cfg.extensions...),
	)
	c.registerBuiltins()
	for _, capability := range capabilityPriority {
		if handler, ok := cfg.handlers[capability]; ok {
			c.registry.Register(capability, handler)
		}
	}
	for _, rule := range cfg.rules {
		if err := c.registry.RegisterRule(rule); err != nil {
			return nil, err
		}
	}

	c.lifecycle = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventBeginApply, Src: []string{StateIdle, StateApplied}, Dst: StateApplying},
			{Name: eventSettleApply, Src: []string{StateApplying}, Dst: StateApplied},
		},
		fsm.Callbacks{
			"enter_" + StateApplied: func(_ context.Context, _ *fsm.Event) {
				c.applied.Store(true)
			},
		},
	)
	return c, nil
}

// ViewID returns the view namespace of the controller.
func (c *Controller) ViewID() string { return c.viewID }

// Registry exposes the handler registry, e.g. to register rules.
func (c *Controller) Registry() *Registry { return c.registry }

// DeltaCache exposes the baseline cache.
func (c *Controller) DeltaCache() *DeltaCache { return c.cache }

// State reports the apply lifecycle state: idle, applying or applied.
func (c *Controller) State() string { return c.lifecycle.Current() }

// Applied reports whether an applyViewState call has settled.
func (c *Controller) Applied() bool { return c.applied.Load() }

// AcceptsApply reports whether the next ApplyViewState call would restore
// anything. It is false once a call has settled under apply-once.
func (c *Controller) AcceptsApply() bool {
	return !(c.applyInitialStateOnly() && c.Applied())
}

// StateKey returns the control state key of control: its ID without the
// "<viewID>--" prefix.
func (c *Controller) StateKey(control Control) string {
	if control == nil {
		return ""
	}
	return c.localKey(control.ID())
}

func (c *Controller) localKey(id string) string {
	if c.viewID == "" {
		return id
	}
	return strings.TrimPrefix(id, c.viewID+"--")
}

// RetrieveViewState assembles a snapshot of all in-scope controls. When other
// retrievals are still outstanding once this one settles, the snapshot is
// discarded and ok is false.
func (c *Controller) RetrieveViewState(ctx context.Context) (Snapshot, bool, error) {
	c.retrieving.Add(1)
	snapshot, err := c.retrieve(ctx)
	remaining := c.retrieving.Add(-1)
	if err != nil {
		return nil, false, err
	}
	if remaining != 0 {
		c.logger.Debugw("discarding superseded view state", "outstanding", remaining)
		return nil, false, nil
	}
	c.emit(ctx, activity.BuildStateRetrievedEvent(c.eventInputWithKeys(activity.ViewContext{}, snapshot)))
	return snapshot, true, nil
}

func (c *Controller) retrieve(ctx context.Context) (Snapshot, error) {
	if err := c.waitForApply(ctx); err != nil {
		return nil, err
	}
	controls, err := c.adaptControls(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("viewstate: adapt state controls: %w", err)
	}

	type retrieved struct {
		key   string
		value any
		ok    bool
	}
	results := make([]retrieved, len(controls))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, control := range controls {
		key := c.StateKey(control)
		if key == AdditionalStatesKey {
			c.logger.Warnw("skipping control with reserved state key", "control", control.ID(), "error", ErrReservedKey)
			continue
		}
		i, control := i, control
		group.Go(func() error {
			value, ok, err := c.retrieveControl(groupCtx, control, key)
			if err != nil {
				return err
			}
			results[i] = retrieved{key: key, value: value, ok: ok}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	snapshot := Snapshot{}
	for _, result := range results {
		if !result.ok {
			continue
		}
		if existing, ok := snapshot[result.key]; ok {
			snapshot[result.key] = layering.Merge(mergeable(existing), mergeable(result.value))
			continue
		}
		snapshot[result.key] = result.value
	}

	additional, err := c.retrieveAdditionalStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("viewstate: retrieve additional states: %w", err)
	}
	if len(additional) > 0 {
		snapshot[AdditionalStatesKey] = additional
	}
	return snapshot, nil
}

func (c *Controller) retrieveControl(ctx context.Context, control Control, key string) (any, bool, error) {
	handlers := c.registry.Handlers(control, key)
	var fragments []any
	for i, handler := range handlers {
		if handler.Retrieve == nil {
			return nil, false, fmt.Errorf("%w: handler %d of control %q has no retrieve", ErrInvalidHandler, i, control.ID())
		}
		value, err := handler.Retrieve(ctx, control)
		if err != nil {
			return nil, false, fmt.Errorf("viewstate: retrieve %q: %w", key, err)
		}
		if value != nil {
			fragments = append(fragments, value)
		}
	}
	switch len(fragments) {
	case 0:
		return nil, false, nil
	case 1:
		return fragments[0], true, nil
	}
	for i := range fragments {
		fragments[i] = mergeable(fragments[i])
	}
	return layering.Merge(fragments...), true, nil
}

// mergeable turns typed state into its map form so fragments of different
// handlers merge key by key.
func mergeable(value any) any {
	switch typed := value.(type) {
	case DeltaEnvelope:
		return map[string]any{"fullState": typed.FullState, "initialState": typed.InitialState}
	case Snapshot:
		return map[string]any(typed)
	default:
		return value
	}
}

// ApplyViewState restores snapshot. Variant management controls are applied
// first; every other control follows in the order the extensions listed
// them, one at a time. With apply-once enabled, calls after the first settled
// one are no-ops.
func (c *Controller) ApplyViewState(ctx context.Context, snapshot Snapshot, nav NavigationParameter) (err error) {
	if !c.AcceptsApply() {
		c.logger.Debugw("view state already applied, skipping", "view", c.viewID)
		return nil
	}

	c.beginApply(ctx)
	defer func() {
		c.settleApply(ctx, snapshot, nav, err)
	}()

	if err := runTasks(ctx, c.collectTasks(func(ext any) []Task {
		if hook, ok := ext.(BeforeStateAppliedHook); ok {
			return hook.OnBeforeStateApplied(ctx)
		}
		return nil
	})); err != nil {
		return fmt.Errorf("viewstate: before state applied: %w", err)
	}

	controls, err := c.adaptControls(ctx, false)
	if err != nil {
		return fmt.Errorf("viewstate: adapt state controls: %w", err)
	}
	controls = variantManagementFirst(controls)
	c.setScope(controls)

	if !hasVariantManagement(controls) {
		if err := c.seedBaselines(ctx, controls, nil); err != nil {
			c.logger.Errorw("seeding baselines failed", "error", err)
		}
	}

	for _, control := range controls {
		key := c.StateKey(control)
		if key == AdditionalStatesKey {
			c.logger.Warnw("skipping control with reserved state key", "control", control.ID(), "error", ErrReservedKey)
			continue
		}
		if err := c.applyControl(ctx, control, key, snapshot[key], &nav); err != nil {
			return err
		}
	}

	if nav.NavigationType.RestoresAppState() {
		additional := snapshot.AdditionalStates()
		if err := runTasks(ctx, c.collectTasks(func(ext any) []Task {
			if applier, ok := ext.(AdditionalStatesApplier); ok {
				return applier.ApplyAdditionalStates(ctx, additional)
			}
			return nil
		})); err != nil {
			return fmt.Errorf("viewstate: apply additional states: %w", err)
		}
		return nil
	}

	if err := runTasks(ctx, c.collectTasks(func(ext any) []Task {
		if applier, ok := ext.(NavigationParametersApplier); ok {
			return applier.ApplyNavigationParameters(ctx, nav)
		}
		return nil
	})); err != nil {
		return fmt.Errorf("viewstate: apply navigation parameters: %w", err)
	}
	if err := runTasks(ctx, c.collectTasks(func(ext any) []Task {
		if applier, ok := ext.(FilterBarNavigationApplier); ok {
			return applier.ApplyNavigationParametersToFilterBar(ctx, nav)
		}
		return nil
	})); err != nil {
		return fmt.Errorf("viewstate: apply navigation parameters to filter bar: %w", err)
	}
	return nil
}

func (c *Controller) applyControl(ctx context.Context, control Control, key string, state any, nav *NavigationParameter) error {
	for i, handler := range c.registry.Handlers(control, key) {
		if handler.Apply == nil {
			return fmt.Errorf("%w: handler %d of control %q has no apply", ErrInvalidHandler, i, control.ID())
		}
		if err := handler.Apply(ctx, control, state, nav); err != nil {
			return fmt.Errorf("viewstate: apply %q: %w", key, err)
		}
	}
	return nil
}

func (c *Controller) beginApply(ctx context.Context) {
	c.mu.Lock()
	c.applyDepth++
	if c.pending == nil {
		c.pending = make(chan struct{})
	}
	c.mu.Unlock()
	c.transition(ctx, eventBeginApply)
}

// settleApply runs the after-apply hooks and trips the applied gate. Hook
// failures are logged only.
func (c *Controller) settleApply(ctx context.Context, snapshot Snapshot, nav NavigationParameter, applyErr error) {
	if err := runTasks(ctx, c.collectTasks(func(ext any) []Task {
		if hook, ok := ext.(AfterStateAppliedHook); ok {
			return hook.OnAfterStateApplied(ctx)
		}
		return nil
	})); err != nil {
		c.logger.Errorw("after state applied hook failed", "error", err)
	}
	c.transition(ctx, eventSettleApply)

	c.mu.Lock()
	c.applyDepth--
	if c.applyDepth == 0 && c.pending != nil {
		close(c.pending)
		c.pending = nil
	}
	c.mu.Unlock()

	input := c.eventInputWithKeys(activity.ViewContext{}, snapshot)
	input.NavigationType = string(nav.NavigationType)
	if applyErr != nil {
		input.Metadata = map[string]any{"error": applyErr.Error()}
	}
	c.emit(ctx, activity.BuildStateAppliedEvent(input))
}

func (c *Controller) transition(ctx context.Context, event string) {
	err := c.lifecycle.Event(context.WithoutCancel(ctx), event)
	if err == nil {
		return
	}
	var invalid fsm.InvalidEventError
	var noTransition fsm.NoTransitionError
	if errors.As(err, &invalid) || errors.As(err, &noTransition) {
		c.logger.Debugw("overlapping apply", "event", event, "state", c.lifecycle.Current())
		return
	}
	c.logger.Warnw("apply lifecycle transition failed", "event", event, "error", err)
}

func (c *Controller) waitForApply(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == nil {
		return nil
	}
	select {
	case <-pending:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RefreshViewBindings refreshes the data bindings of the controls listed by
// the binding refresh adapters, one control at a time.
func (c *Controller) RefreshViewBindings(ctx context.Context) error {
	controls, err := c.adaptControls(ctx, true)
	if err != nil {
		return fmt.Errorf("viewstate: adapt binding refresh controls: %w", err)
	}
	for _, control := range variantManagementFirst(controls) {
		key := c.StateKey(control)
		for i, handler := range c.registry.RefreshHandlers(control, key) {
			if handler.RefreshBinding == nil {
				return fmt.Errorf("%w: refresh handler %d of control %q has no refresh binding", ErrInvalidHandler, i, control.ID())
			}
			if err := handler.RefreshBinding(ctx, control); err != nil {
				return fmt.Errorf("viewstate: refresh binding %q: %w", key, err)
			}
		}
	}
	return nil
}

// seedBaselines stores the current external state of the delta-capable
// controls as their new baseline. With vm set only its associated controls
// are seeded.
func (c *Controller) seedBaselines(ctx context.Context, controls []Control, vm VariantManager) error {
	var associated map[string]struct{}
	if vm != nil {
		associated = map[string]struct{}{}
		for _, id := range vm.AssociatedControlIDs() {
			associated[c.localKey(id)] = struct{}{}
		}
	}
	targets := map[string]Control{}
	for _, control := range controls {
		if !IsDeltaCapable(control) {
			continue
		}
		key := c.StateKey(control)
		if associated != nil {
			if _, ok := associated[key]; !ok {
				continue
			}
		}
		targets[key] = control
	}
	return c.cache.Seed(ctx, c.util, targets)
}

func (c *Controller) setScope(controls []Control) {
	c.mu.Lock()
	c.scope = append([]Control(nil), controls...)
	c.mu.Unlock()
}

func (c *Controller) scopeControls() []Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Control(nil), c.scope...)
}

func (c *Controller) markUnavailable(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.variantFallbacks[c.localKey(id)] = struct{}{}
	}
}

func (c *Controller) unavailable(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.variantFallbacks[key]
	return ok
}

func variantManagementFirst(controls []Control) []Control {
	ordered := make([]Control, 0, len(controls))
	for _, control := range controls {
		if CapabilityVariantManagement.Matches(control) {
			ordered = append(ordered, control)
		}
	}
	for _, control := range controls {
		if !CapabilityVariantManagement.Matches(control) {
			ordered = append(ordered, control)
		}
	}
	return ordered
}

func hasVariantManagement(controls []Control) bool {
	for _, control := range controls {
		if CapabilityVariantManagement.Matches(control) {
			return true
		}
	}
	return false
}
