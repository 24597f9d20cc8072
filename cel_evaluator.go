package settings

import (
	"errors"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

const celEngine = "cel"

type celEvaluator struct {
	cfg evaluatorConfig
}

// NewCELEvaluator returns an evaluator for CEL expressions. Fields are
// declared as dyn variables; registered functions are reachable through
// `call("name")` and `call("name", [args])`.
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: newEvaluatorConfig(opts)}
}

func (e *celEvaluator) Engine() string { return celEngine }

func (e *celEvaluator) Evaluate(scope ExprScope, expression string) (any, error) {
	if expression == "" {
		return nil, exprFailure(scope, celEngine, PhaseCompile, expression, errEmptyExpr)
	}
	vars := scope.variables()
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	// CEL checks variables at compile time, so the cached program depends on
	// the set of settled fields as well as the expression.
	cacheKey := expression + "\x00" + strings.Join(names, "\x00")
	program, err := compiled(e.cfg.cache, celEngine, cacheKey, func() (celgo.Program, error) {
		return e.compile(expression, names)
	})
	if err != nil {
		return nil, exprFailure(scope, celEngine, PhaseCompile, expression, err)
	}
	out, _, err := program.Eval(vars)
	if err != nil {
		return nil, exprFailure(scope, celEngine, PhaseRun, expression, err)
	}
	return out.Value(), nil
}

func (e *celEvaluator) compile(expression string, names []string) (celgo.Program, error) {
	opts := make([]celgo.EnvOption, 0, len(names)+1)
	for _, name := range names {
		switch name {
		case "now":
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
		case "args":
			opts = append(opts, celgo.Variable(name, celgo.MapType(celgo.StringType, celgo.DynType)))
		default:
			opts = append(opts, celgo.Variable(name, celgo.DynType))
		}
	}
	if e.cfg.functions != nil {
		opts = append(opts, e.callFunction())
	}
	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	return env.Program(ast)
}

func (e *celEvaluator) callFunction() celgo.EnvOption {
	return celgo.Function("call",
		celgo.Overload("call_string",
			[]*celgo.Type{celgo.StringType},
			celgo.DynType,
			celgo.UnaryBinding(func(name ref.Val) ref.Val {
				return e.call(name, nil)
			}),
		),
		celgo.Overload("call_string_list",
			[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
			celgo.DynType,
			celgo.BinaryBinding(func(name, args ref.Val) ref.Val {
				return e.call(name, args)
			}),
		),
	)
}

func (e *celEvaluator) call(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.WrapErr(errors.New("call name must be a string"))
	}
	var args []any
	if argsVal != nil {
		list, ok := argsVal.(traits.Lister)
		if !ok {
			return types.WrapErr(errors.New("call arguments must be a list"))
		}
		size, _ := list.Size().(types.Int)
		for i := types.Int(0); i < size; i++ {
			args = append(args, list.Get(i).Value())
		}
	}
	result, err := e.cfg.functions.Call(name, args...)
	if err != nil {
		return types.WrapErr(err)
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
