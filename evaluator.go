package settings

import (
	"time"
)

// ExprScope is everything a default expression can read: the values of the
// fields settled before Key, the schema's expression args and the load time.
type ExprScope struct {
	Key    string
	Fields map[string]any
	Args   map[string]any
	Now    time.Time
}

// variables flattens the scope into the top-level bindings shared by every
// engine. `now` and `args` shadow fields with the same key.
func (s ExprScope) variables() map[string]any {
	vars := make(map[string]any, len(s.Fields)+2)
	for key, value := range s.Fields {
		vars[key] = value
	}
	now := s.Now
	if now.IsZero() {
		now = time.Now()
	}
	args := s.Args
	if args == nil {
		args = map[string]any{}
	}
	vars["now"] = now
	vars["args"] = args
	return vars
}

// Evaluator computes FromExpr defaults.
type Evaluator interface {
	// Engine names the expression language, e.g. "expr" or "cel".
	Engine() string
	Evaluate(scope ExprScope, expr string) (any, error)
}

// EvaluatorOption configures the built-in evaluators.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// WithEvaluatorCache reuses compiled programs across evaluations.
func WithEvaluatorCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithEvaluatorFunctions exposes the functions of registry to expressions,
// both by name and through `call(name, args...)`.
func WithEvaluatorFunctions(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.functions = registry.Clone()
	}
}

func newEvaluatorConfig(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// compiled returns the program cached under engine and cacheKey, compiling and
// storing it on a miss. Without a cache every call compiles.
func compiled[P any](cache ProgramCache, engine, cacheKey string, compile func() (P, error)) (P, error) {
	key := engine + ":" + cacheKey
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return program, nil
			}
		}
	}
	program, err := compile()
	if err != nil {
		return program, err
	}
	if cache != nil {
		cache.Set(key, program)
	}
	return program, nil
}
