package viewstate

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry resolves the handlers of a control. The internal handler comes
// from the first capability the control satisfies; handlers of matching rules
// follow, then handlers contributed by extensions.
type Registry struct {
	mu        sync.RWMutex
	internal  map[Capability]Handler
	rules     []compiledRule
	evaluator Evaluator
	adapters  []any
	logger    *zap.SugaredLogger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// RegistryWithEvaluator sets the evaluator used to compile rules.
func RegistryWithEvaluator(evaluator Evaluator) RegistryOption {
	return func(r *Registry) {
		if evaluator != nil {
			r.evaluator = evaluator
		}
	}
}

// RegistryWithLogger sets the logger rule failures are reported to.
func RegistryWithLogger(logger *zap.SugaredLogger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// RegistryWithExtensions registers values implementing
// ControlStateHandlerAdapter or BindingRefreshHandlerAdapter.
func RegistryWithExtensions(exts ...any) RegistryOption {
	return func(r *Registry) {
		for _, ext := range exts {
			if ext != nil {
				r.adapters = append(r.adapters, ext)
			}
		}
	}
}

// NewRegistry returns an empty registry. Rules are evaluated with expr unless
// another evaluator is configured.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		internal: map[Capability]Handler{},
		logger:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.evaluator == nil {
		r.evaluator = NewExprEvaluator(ExprWithProgramCache(NewProgramCache()))
	}
	return r
}

// Register sets the internal handler of capability, replacing any previous one.
func (r *Registry) Register(capability Capability, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.internal[capability] = handler
}

// RegisterRule compiles rule.Expression and appends the rule.
func (r *Registry) RegisterRule(rule Rule) error {
	if rule.Expression == "" {
		return fmt.Errorf("viewstate: rule %q: expression must not be empty", rule.Name)
	}
	program, err := r.evaluator.Compile(rule.Expression)
	if err != nil {
		return fmt.Errorf("viewstate: rule %q: %w", rule.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, compiledRule{rule: rule, program: program})
	return nil
}

// Handlers returns the ordered handlers of control. A control matching
// nothing yields an empty list.
func (r *Registry) Handlers(control Control, key string) []Handler {
	if control == nil {
		return nil
	}
	var handlers []Handler
	if handler, ok := r.internalHandler(control); ok {
		handlers = append(handlers, handler)
	}
	handlers = append(handlers, r.ruleHandlers(control, key)...)
	for _, ext := range r.adapters {
		if adapter, ok := ext.(ControlStateHandlerAdapter); ok {
			handlers = append(handlers, adapter.AdaptControlStateHandler(control)...)
		}
	}
	return handlers
}

// RefreshHandlers returns only the refresh-binding side of the handlers of
// control. Handlers without a refresh function are left out unless an
// extension contributed them.
func (r *Registry) RefreshHandlers(control Control, key string) []RefreshHandler {
	if control == nil {
		return nil
	}
	var handlers []RefreshHandler
	if handler, ok := r.internalHandler(control); ok && handler.RefreshBinding != nil {
		handlers = append(handlers, RefreshHandler{RefreshBinding: handler.RefreshBinding})
	}
	for _, handler := range r.ruleHandlers(control, key) {
		if handler.RefreshBinding != nil {
			handlers = append(handlers, RefreshHandler{RefreshBinding: handler.RefreshBinding})
		}
	}
	for _, ext := range r.adapters {
		if adapter, ok := ext.(BindingRefreshHandlerAdapter); ok {
			handlers = append(handlers, adapter.AdaptBindingRefreshHandler(control)...)
		}
	}
	return handlers
}

func (r *Registry) internalHandler(control Control) (Handler, bool) {
	capability := CapabilityOf(control)
	if capability == CapabilityUnknown {
		return Handler{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.internal[capability]
	return handler, ok
}

func (r *Registry) ruleHandlers(control Control, key string) []Handler {
	r.mu.RLock()
	rules := append([]compiledRule(nil), r.rules...)
	r.mu.RUnlock()
	if len(rules) == 0 {
		return nil
	}

	ctx := RuleContext{Control: DescribeControl(control, key)}
	var handlers []Handler
	for _, rule := range rules {
		result, err := rule.program.Evaluate(ctx)
		if err != nil {
			r.logger.Warnw("capability rule failed",
				"rule", rule.rule.Name,
				"engine", evaluatorEngineName(r.evaluator),
				"control", control.ID(),
				"error", err,
			)
			continue
		}
		matched, ok := result.(bool)
		if !ok {
			r.logger.Warnw("capability rule did not yield a bool",
				"rule", rule.rule.Name,
				"control", control.ID(),
				"result", result,
			)
			continue
		}
		if matched {
			handlers = append(handlers, rule.rule.Handler)
		}
	}
	return handlers
}
