package viewstate

import (
	"fmt"
	"sync"
	"time"
)

// Identifiers every rule engine binds. Registry functions may not reuse them.
const (
	ruleVarNow     = "now"
	ruleVarArgs    = "args"
	ruleVarControl = "control"
	ruleFuncCall   = "call"
)

// RuleContext carries the inputs of a capability rule evaluation.
type RuleContext struct {
	// Control is the descriptor of the control under evaluation, see
	// DescribeControl.
	Control map[string]any
	Args    map[string]any
	Now     *time.Time
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Control == nil {
		ctx.Control = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) controlLabel() string {
	if id, ok := ctx.Control["id"].(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// Evaluator executes rule expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

type memoryProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewProgramCache returns an in-memory ProgramCache safe for concurrent use.
func NewProgramCache() ProgramCache {
	return &memoryProgramCache{programs: map[string]any{}}
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	c.programs[key] = value
	c.mu.Unlock()
}

// Rule contributes Handler to every control whose descriptor satisfies
// Expression.
type Rule struct {
	Name       string
	Expression string
	Handler    Handler
}

type compiledRule struct {
	rule    Rule
	program CompiledRule
}

// DescribeControl builds the descriptor rules are evaluated against.
func DescribeControl(control Control, key string) map[string]any {
	if control == nil {
		return map[string]any{}
	}
	descriptor := map[string]any{
		"id":         control.ID(),
		"key":        key,
		"capability": CapabilityOf(control).String(),
		"type":       fmt.Sprintf("%T", control),
		"metadata":   map[string]any{},
	}
	if describer, ok := control.(Describer); ok {
		if meta := describer.Describe(); len(meta) > 0 {
			copied := make(map[string]any, len(meta))
			for k, v := range meta {
				copied[k] = v
			}
			descriptor["metadata"] = copied
		}
	}
	return descriptor
}

// NewEvaluator returns the evaluator for engine ("expr", "cel" or "js").
// An empty engine selects expr. js is only available with the js_eval build
// tag.
func NewEvaluator(engine string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch engine {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case "js":
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("viewstate: js evaluator requires the js_eval build tag")
		}
		return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry)), nil
	default:
		return nil, fmt.Errorf("viewstate: unknown rule engine %q", engine)
	}
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}
