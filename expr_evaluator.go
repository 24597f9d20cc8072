package settings

import (
	"errors"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

const exprEngine = "expr"

var errEmptyExpr = errors.New("expression must not be empty")

type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator returns the expr-lang evaluator. It is the one a schema
// installs when a field uses FromExpr and no evaluator is configured.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *exprEvaluator) Engine() string { return exprEngine }

func (e *exprEvaluator) Evaluate(scope ExprScope, expression string) (any, error) {
	if expression == "" {
		return nil, exprFailure(scope, exprEngine, PhaseCompile, expression, errEmptyExpr)
	}
	program, err := compiled(e.cfg.cache, exprEngine, expression, func() (*exprvm.Program, error) {
		return exprlang.Compile(expression, e.compileOptions()...)
	})
	if err != nil {
		return nil, exprFailure(scope, exprEngine, PhaseCompile, expression, err)
	}
	result, err := exprlang.Run(program, e.env(scope))
	if err != nil {
		return nil, exprFailure(scope, exprEngine, PhaseRun, expression, err)
	}
	return result, nil
}

// Field names differ between schemas, so programs compile against an open
// environment and resolve variables at run time. The builtin now() is
// disabled so `now` names the load time.
func (e *exprEvaluator) compileOptions() []exprlang.Option {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.DisableBuiltin("now"),
	}
	registry := e.cfg.functions
	for _, name := range registry.Names() {
		name := name
		options = append(options, exprlang.Function(name, func(arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}))
	}
	return options
}

func (e *exprEvaluator) env(scope ExprScope) map[string]any {
	env := scope.variables()
	if registry := e.cfg.functions; registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}
	}
	return env
}
