package settings

import (
	"errors"
	"fmt"
)

// ErrNoEvaluator is reported for FromExpr fields when no evaluator is
// available.
var ErrNoEvaluator = errors.New("settings: evaluator not configured")

// ExprPhase names the step at which a default expression failed.
type ExprPhase string

const (
	PhaseCompile ExprPhase = "compile"
	PhaseRun     ExprPhase = "run"
	PhaseConvert ExprPhase = "convert"
)

// ExprError reports a FromExpr default that could not produce a value.
type ExprError struct {
	Key    string
	Engine string
	Expr   string
	Phase  ExprPhase
	Err    error
}

func (e *ExprError) Error() string {
	if e == nil {
		return "<nil>"
	}
	engine := e.Engine
	if engine == "" {
		engine = "expression"
	}
	return fmt.Sprintf("settings: default %q: %s %s %q: %v", e.Key, engine, e.Phase, e.Expr, e.Err)
}

func (e *ExprError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func exprFailure(scope ExprScope, engine string, phase ExprPhase, expr string, err error) error {
	return &ExprError{Key: scope.Key, Engine: engine, Expr: expr, Phase: phase, Err: err}
}

// asExprError normalises an evaluator error. Errors from custom evaluators are
// wrapped as run failures; ExprErrors get the missing key and engine filled.
func asExprError(key, engine, expr string, err error) *ExprError {
	if err == nil {
		return nil
	}
	var exprErr *ExprError
	if errors.As(err, &exprErr) {
		if exprErr.Key == "" {
			exprErr.Key = key
		}
		if exprErr.Engine == "" {
			exprErr.Engine = engine
		}
		if exprErr.Expr == "" {
			exprErr.Expr = expr
		}
		if exprErr.Phase == "" {
			exprErr.Phase = PhaseRun
		}
		return exprErr
	}
	return &ExprError{Key: key, Engine: engine, Expr: expr, Phase: PhaseRun, Err: err}
}
