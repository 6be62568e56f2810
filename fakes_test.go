package viewstate

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-viewstate/pkg/statediff"
)

type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *callLog) index(entry string) int {
	for i, e := range l.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

type plainControl struct{ id string }

func (c *plainControl) ID() string { return c.id }

type externalControl struct {
	id        string
	kind      DeltaKind
	log       *callLog
	mu        sync.Mutex
	state     map[string]any
	refreshed int
}

func newFilterBar(id string, state map[string]any, log *callLog) *externalControl {
	return &externalControl{id: id, kind: DeltaKindFilterBar, state: state, log: log}
}

func newTable(id string, state map[string]any, log *callLog) *externalControl {
	return &externalControl{id: id, kind: DeltaKindTable, state: state, log: log}
}

func (c *externalControl) ID() string           { return c.id }
func (c *externalControl) DeltaKind() DeltaKind { return c.kind }

func (c *externalControl) ExternalState() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return statediff.Copy(c.state)
}

func (c *externalControl) SetExternalState(state map[string]any) error {
	c.mu.Lock()
	c.state = statediff.Copy(state)
	c.mu.Unlock()
	c.log.add("set:" + c.id)
	return nil
}

func (c *externalControl) RefreshBinding(context.Context) error {
	c.mu.Lock()
	c.refreshed++
	c.mu.Unlock()
	c.log.add("refresh:" + c.id)
	return nil
}

type variantManager struct {
	id          string
	current     string
	standard    string
	keys        []string
	associated  []string
	activateErr error
	log         *callLog

	mu        sync.Mutex
	onSave    []func()
	onSelect  []func()
	activated []string
}

func newVariantManager(id string, keys []string, associated []string, log *callLog) *variantManager {
	return &variantManager{
		id:         id,
		current:    keys[0],
		standard:   keys[0],
		keys:       keys,
		associated: associated,
		log:        log,
	}
}

func (v *variantManager) ID() string { return v.id }

func (v *variantManager) CurrentVariantKey() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *variantManager) StandardVariantKey() string { return v.standard }

func (v *variantManager) VariantKeys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.keys...)
}

func (v *variantManager) AssociatedControlIDs() []string { return v.associated }

func (v *variantManager) ActivateVariant(_ context.Context, key string) error {
	v.log.add("activate:" + v.id + ":" + key)
	if v.activateErr != nil {
		return v.activateErr
	}
	v.mu.Lock()
	v.current = key
	v.activated = append(v.activated, key)
	v.mu.Unlock()
	return nil
}

func (v *variantManager) OnSave(listener func()) {
	v.mu.Lock()
	v.onSave = append(v.onSave, listener)
	v.mu.Unlock()
}

func (v *variantManager) OnSelect(listener func()) {
	v.mu.Lock()
	v.onSelect = append(v.onSelect, listener)
	v.mu.Unlock()
}

func (v *variantManager) listenerCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.onSave) + len(v.onSelect)
}

// save stores the current configuration as variant key and fires the save
// event the way the widget toolkit does. Only save listeners run.
func (v *variantManager) save(key string) {
	v.mu.Lock()
	if !containsString(v.keys, key) {
		v.keys = append(v.keys, key)
	}
	v.current = key
	listeners := append([]func(){}, v.onSave...)
	v.mu.Unlock()
	fire(listeners)
}

func (v *variantManager) selectVariant(key string) {
	v.mu.Lock()
	v.current = key
	listeners := append([]func(){}, v.onSelect...)
	v.mu.Unlock()
	fire(listeners)
}

func fire(listeners []func()) {
	for _, listener := range listeners {
		listener()
	}
}

type choiceControl struct {
	id       string
	selected string
}

func (c *choiceControl) ID() string                { return c.id }
func (c *choiceControl) SelectedKey() string       { return c.selected }
func (c *choiceControl) SetSelectedKey(key string) { c.selected = key }

type layoutControl struct {
	id       string
	section  string
	expanded bool
}

func (c *layoutControl) ID() string                      { return c.id }
func (c *layoutControl) SelectedSection() string         { return c.section }
func (c *layoutControl) SetSelectedSection(s string)     { c.section = s }
func (c *layoutControl) HeaderExpanded() bool            { return c.expanded }
func (c *layoutControl) SetHeaderExpanded(expanded bool) { c.expanded = expanded }

type nestedControl struct {
	id   string
	view ViewState
}

func (c *nestedControl) ID() string                 { return c.id }
func (c *nestedControl) NestedViewState() ViewState { return c.view }

type describedControl struct {
	id   string
	meta map[string]any
}

func (c *describedControl) ID() string               { return c.id }
func (c *describedControl) Describe() map[string]any { return c.meta }

// host implements every extension hook.
type host struct {
	controls        []Control
	refreshControls []Control
	handlers        map[string][]Handler
	refreshHandlers map[string][]RefreshHandler
	additional      map[string]any
	applyOnce       *bool
	afterErr        error
	log             *callLog

	mu                sync.Mutex
	appliedAdditional []map[string]any
	navigations       []NavigationParameter
}

func (h *host) AdaptStateControls(context.Context) ([]Control, error) {
	h.log.add("adapt")
	return h.controls, nil
}

func (h *host) AdaptBindingRefreshControls(context.Context) ([]Control, error) {
	return h.refreshControls, nil
}

func (h *host) AdaptControlStateHandler(control Control) []Handler {
	return h.handlers[control.ID()]
}

func (h *host) AdaptBindingRefreshHandler(control Control) []RefreshHandler {
	return h.refreshHandlers[control.ID()]
}

func (h *host) RetrieveAdditionalStates(context.Context) (map[string]any, error) {
	return h.additional, nil
}

func (h *host) ApplyAdditionalStates(_ context.Context, states map[string]any) []Task {
	return []Task{func(context.Context) error {
		h.log.add("additional")
		h.mu.Lock()
		h.appliedAdditional = append(h.appliedAdditional, states)
		h.mu.Unlock()
		return nil
	}}
}

func (h *host) ApplyNavigationParameters(_ context.Context, nav NavigationParameter) []Task {
	return []Task{func(context.Context) error {
		h.log.add("navigation")
		h.mu.Lock()
		h.navigations = append(h.navigations, nav)
		h.mu.Unlock()
		return nil
	}}
}

func (h *host) ApplyNavigationParametersToFilterBar(context.Context, NavigationParameter) []Task {
	return []Task{func(context.Context) error {
		h.log.add("navigation:filterbar")
		return nil
	}}
}

func (h *host) OnBeforeStateApplied(context.Context) []Task {
	return []Task{func(context.Context) error {
		h.log.add("before")
		return nil
	}}
}

func (h *host) OnAfterStateApplied(context.Context) []Task {
	return []Task{func(context.Context) error {
		h.log.add("after")
		return h.afterErr
	}}
}

func (h *host) ApplyInitialStateOnly() bool {
	if h.applyOnce == nil {
		return true
	}
	return *h.applyOnce
}

// recordingUtil wraps DefaultStateUtil and logs every call.
type recordingUtil struct {
	DefaultStateUtil
	log *callLog

	mu       sync.Mutex
	payloads []any
}

func (u *recordingUtil) RetrieveExternalState(ctx context.Context, control Control) (map[string]any, error) {
	u.log.add("retrieve:" + control.ID())
	return u.DefaultStateUtil.RetrieveExternalState(ctx, control)
}

func (u *recordingUtil) ApplyExternalState(ctx context.Context, control Control, state any) error {
	u.mu.Lock()
	u.payloads = append(u.payloads, state)
	u.mu.Unlock()
	return u.DefaultStateUtil.ApplyExternalState(ctx, control, state)
}

func (u *recordingUtil) lastPayload() any {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.payloads) == 0 {
		return nil
	}
	return u.payloads[len(u.payloads)-1]
}

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func boolPtr(v bool) *bool { return &v }
