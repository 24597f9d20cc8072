package settings

import (
	"fmt"
	"time"
)

// defaultEnv is the per-load state shared by FromExpr defaults. resolved
// holds every field value settled so far, so an expression can read fields
// declared before its own.
type defaultEnv struct {
	codec     Codec
	evaluator Evaluator
	schema    string
	logger    ExprLogger
	args      map[string]any
	now       time.Time
	resolved  map[string]any
}

func (env *defaultEnv) resolve(key string, value any) {
	if env == nil || env.resolved == nil {
		return
	}
	env.resolved[key] = value
}

func (env *defaultEnv) scope(key string) ExprScope {
	fields := make(map[string]any, len(env.resolved))
	for k, v := range env.resolved {
		fields[k] = v
	}
	return ExprScope{
		Key:    key,
		Fields: fields,
		Args:   copyMap(env.args),
		Now:    env.now,
	}
}

// evaluateDefault runs expression and converts its result to V. Results that
// are not already V round-trip through the schema codec.
func evaluateDefault[V any](env *defaultEnv, key, expression string) (V, error) {
	var zero V
	if env == nil || env.evaluator == nil {
		return zero, asExprError(key, "", expression, ErrNoEvaluator)
	}
	engine := env.evaluator.Engine()
	start := time.Now()
	result, err := env.evaluator.Evaluate(env.scope(key), expression)
	var value V
	if err == nil {
		value, err = convertResult[V](env.codec, result)
		if err != nil {
			err = &ExprError{Key: key, Engine: engine, Expr: expression, Phase: PhaseConvert, Err: err}
		}
	}
	exprErr := asExprError(key, engine, expression, err)
	if env.logger != nil {
		event := ExprEvent{
			Schema:   env.schema,
			Key:      key,
			Engine:   engine,
			Expr:     expression,
			Duration: time.Since(start),
		}
		if exprErr != nil {
			event.Phase = exprErr.Phase
			event.Err = exprErr
		}
		env.logger.LogExpr(event)
	}
	if exprErr != nil {
		return zero, exprErr
	}
	return value, nil
}

func convertResult[V any](codec Codec, result any) (V, error) {
	if typed, ok := result.(V); ok {
		return typed, nil
	}
	var out V
	if codec == nil {
		codec = NewJSONCodec()
	}
	text, err := codec.Encode(result)
	if err != nil {
		return out, fmt.Errorf("%T result: %w", result, err)
	}
	if err := codec.Decode(text, &out); err != nil {
		return out, fmt.Errorf("%T result to %s: %w", result, typeOf[V](), err)
	}
	return out, nil
}
