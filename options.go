package settings

import (
	"strings"
	"time"
)

// Option configures a Schema.
type Option func(*schemaConfig)

type schemaConfig struct {
	name         string
	codec        Codec
	logger       Logger
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	exprLogger   ExprLogger
	exprArgs     map[string]any
	clock        func() time.Time
	errs         []error
}

func applyOptions(opts []Option) schemaConfig {
	cfg := schemaConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.codec == nil {
		cfg.codec = NewJSONCodec()
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	if cfg.exprLogger == nil {
		cfg.exprLogger = noopLogger{}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return cfg
}

// WithName labels the schema in load events and exported documents.
func WithName(name string) Option {
	return func(cfg *schemaConfig) {
		cfg.name = strings.TrimSpace(name)
	}
}

// WithCodec replaces the default JSON codec.
func WithCodec(codec Codec) Option {
	return func(cfg *schemaConfig) {
		if codec != nil {
			cfg.codec = codec
		}
	}
}

// WithEvaluator configures the evaluator used by FromExpr defaults. When no
// evaluator is configured an expr-lang evaluator is created on demand.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *schemaConfig) {
		cfg.evaluator = e
	}
}

// WithExprArgs exposes args to default expressions under the `args` binding.
// The map is copied.
func WithExprArgs(args map[string]any) Option {
	return func(cfg *schemaConfig) {
		cfg.exprArgs = copyMap(args)
	}
}

// WithClock overrides the time source bound to `now` in default expressions.
func WithClock(clock func() time.Time) Option {
	return func(cfg *schemaConfig) {
		cfg.clock = clock
	}
}

func copyMap(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return nil
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
