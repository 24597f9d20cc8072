//go:build js_eval

package settings

import (
	"fmt"

	"github.com/dop251/goja"
)

const jsEngine = "js"

type jsEvaluator struct {
	cfg evaluatorConfig
}

// NewJSEvaluator returns an evaluator running expressions in goja. Each
// evaluation gets a fresh runtime.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *jsEvaluator) Engine() string { return jsEngine }

func (e *jsEvaluator) Evaluate(scope ExprScope, expression string) (any, error) {
	if expression == "" {
		return nil, exprFailure(scope, jsEngine, PhaseCompile, expression, errEmptyExpr)
	}
	program, err := compiled(e.cfg.cache, jsEngine, expression, func() (*goja.Program, error) {
		return goja.Compile(scope.Key, fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	})
	if err != nil {
		return nil, exprFailure(scope, jsEngine, PhaseCompile, expression, err)
	}

	vm := goja.New()
	for name, value := range scope.variables() {
		if err := vm.Set(name, value); err != nil {
			return nil, exprFailure(scope, jsEngine, PhaseRun, expression, err)
		}
	}
	if registry := e.cfg.functions; registry != nil {
		call := func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}
		if err := vm.Set("call", call); err != nil {
			return nil, exprFailure(scope, jsEngine, PhaseRun, expression, err)
		}
		for _, name := range registry.Names() {
			name := name
			if err := vm.Set(name, func(arguments ...any) (any, error) {
				return call(name, arguments...)
			}); err != nil {
				return nil, exprFailure(scope, jsEngine, PhaseRun, expression, err)
			}
		}
	}

	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, exprFailure(scope, jsEngine, PhaseRun, expression, err)
	}
	return value.Export(), nil
}

func jsEvaluatorAvailable() bool {
	return true
}
