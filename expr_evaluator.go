package viewstate

import (
	"fmt"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes registry functions to rules by their
// lowercased name, e.g. isfilterkey(control.key).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	options  []exprlang.Option
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.options = e.compileOptions()
	return e
}

// compileOptions declares the rule variables with their concrete types so
// that now.Hour() type-checks against time.Time. The expr builtin now()
// would otherwise shadow the rule clock.
func (e *exprEvaluator) compileOptions() []exprlang.Option {
	options := []exprlang.Option{
		exprlang.Env(exprRuleEnv(RuleContext{Now: &time.Time{}})),
		exprlang.DisableBuiltin(ruleVarNow),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.call(name)))
	}
	return options
}

func exprRuleEnv(ctx RuleContext) map[string]any {
	ctx = ctx.withDefaults()
	return map[string]any{
		ruleVarNow:     *ctx.Now,
		ruleVarArgs:    ctx.Args,
		ruleVarControl: ctx.Control,
	}
}

func (e *exprEvaluator) call(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("expression must not be empty"))
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return exprCompiledRule{program: program, expression: expression}, nil
			}
		}
	}
	program, err := exprlang.Compile(expression, e.options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return exprCompiledRule{program: program, expression: expression}, nil
}

type exprCompiledRule struct {
	program    *exprvm.Program
	expression string
}

func (r exprCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	result, err := exprlang.Run(r.program, exprRuleEnv(ctx))
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.controlLabel(), err)
	}
	return result, nil
}
