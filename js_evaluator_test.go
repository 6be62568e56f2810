//go:build js_eval

package viewstate

import (
	"strings"
	"testing"
	"time"
)

func TestJSEvaluatorInterruptsRunawayRules(t *testing.T) {
	evaluator := NewJSEvaluator(JSWithTimeout(20 * time.Millisecond))
	_, err := evaluator.Evaluate(RuleContext{Control: map[string]any{"id": "lr--table"}}, "(function(){ while (true) {} })()")
	if err == nil {
		t.Fatalf("expected runaway rule to be interrupted")
	}
	if !strings.Contains(err.Error(), "exceeded") || !strings.Contains(err.Error(), "lr--table") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestJSEvaluatorExposesRegistryGlobals(t *testing.T) {
	registry := NewFunctionRegistry()
	_ = registry.Register("double", func(args ...any) (any, error) {
		n, _ := args[0].(int64)
		return n * 2, nil
	})
	evaluator := NewJSEvaluator(JSWithFunctionRegistry(registry))

	result, err := evaluator.Evaluate(RuleContext{}, "double(21) === 42")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result != true {
		t.Fatalf("expected true, got %v", result)
	}
}
