package viewstate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Function is a helper that capability rules can call, e.g. a check that a
// control key belongs to a filter bar.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the helpers shared by every rule engine of a
// controller. Names are case-insensitive and stored lowercased, which is
// also the name expr rules call them by.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register adds fn under name. It fails for nil functions, duplicates and
// names that would shadow a rule variable or the call helper.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key, err := ruleFunctionName(name)
	if err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("viewstate: rule function %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("viewstate: rule function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

func ruleFunctionName(name string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "":
		return "", fmt.Errorf("viewstate: rule function name must not be empty")
	case ruleVarNow, ruleVarArgs, ruleVarControl, ruleFuncCall:
		return "", fmt.Errorf("viewstate: rule function %q clashes with a rule identifier", name)
	}
	return key, nil
}

// Has reports whether a function is registered under name.
func (r *FunctionRegistry) Has(name string) bool {
	return r.lookup(name) != nil
}

func (r *FunctionRegistry) lookup(name string) Function {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.functions[strings.ToLower(strings.TrimSpace(name))]
}

// Clone copies the registry so that evaluators keep a stable function set
// while the caller registers more.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	functions := make(map[string]Function, len(r.functions))
	for key, fn := range r.functions {
		functions[key] = fn
	}
	return &FunctionRegistry{functions: functions}
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("viewstate: no rule functions registered")
	}
	fn := r.lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("viewstate: rule function %q not registered", name)
	}
	return fn(args...)
}

// Names lists the registered (lowercased) names in order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for key := range r.functions {
		names = append(names, key)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
