package settings

import (
	"context"
	"log/slog"
	"time"
)

// LoadEvent summarises one Schema.Load call.
type LoadEvent struct {
	Schema                string
	Fields                int
	Decoded               int
	Defaulted             int
	DeserializationErrors []FieldError
	UnknownFields         []string
	DefaultErrors         []FieldError
	Duration              time.Duration
}

// HasDiagnostics reports whether the load produced any diagnostics.
func (e LoadEvent) HasDiagnostics() bool {
	return len(e.DeserializationErrors) > 0 || len(e.UnknownFields) > 0 || len(e.DefaultErrors) > 0
}

// Logger records load events.
type Logger interface {
	LogLoad(LoadEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LoadEvent)

// LogLoad implements Logger.
func (f LoggerFunc) LogLoad(event LoadEvent) {
	if f != nil {
		f(event)
	}
}

// ExprEvent describes one FromExpr evaluation. Phase and Err are set when it
// failed.
type ExprEvent struct {
	Schema   string
	Key      string
	Engine   string
	Expr     string
	Phase    ExprPhase
	Duration time.Duration
	Err      error
}

// ExprLogger records expression evaluations.
type ExprLogger interface {
	LogExpr(ExprEvent)
}

// ExprLoggerFunc adapts a function to ExprLogger.
type ExprLoggerFunc func(ExprEvent)

// LogExpr implements ExprLogger.
func (f ExprLoggerFunc) LogExpr(event ExprEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogLoad(LoadEvent) {}
func (noopLogger) LogExpr(ExprEvent) {}

// WithLogger attaches a load logger to the schema. A logger that also
// implements ExprLogger receives expression events unless WithExprLogger
// sets another one.
func WithLogger(logger Logger) Option {
	return func(cfg *schemaConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
		if exprLogger, ok := logger.(ExprLogger); ok && cfg.exprLogger == nil {
			cfg.exprLogger = exprLogger
		}
	}
}

// WithExprLogger attaches an expression logger to the schema.
func WithExprLogger(logger ExprLogger) Option {
	return func(cfg *schemaConfig) {
		if logger == nil {
			cfg.exprLogger = noopLogger{}
			return
		}
		cfg.exprLogger = logger
	}
}

type slogLogger struct {
	logger *slog.Logger
}

// SlogLogger reports load and expression events through logger. Events with
// diagnostics or failures are logged at warn level, the rest at debug level.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return slogLogger{logger: logger}
}

func (l slogLogger) LogLoad(event LoadEvent) {
	level := slog.LevelDebug
	if event.HasDiagnostics() {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("schema", event.Schema),
		slog.Int("fields", event.Fields),
		slog.Int("decoded", event.Decoded),
		slog.Int("defaulted", event.Defaulted),
		slog.Duration("duration", event.Duration),
	}
	if len(event.UnknownFields) > 0 {
		attrs = append(attrs, slog.Any("unknown_fields", event.UnknownFields))
	}
	for _, fe := range event.DeserializationErrors {
		attrs = append(attrs, slog.String("decode_error."+fe.Key, fe.Message))
	}
	for _, fe := range event.DefaultErrors {
		attrs = append(attrs, slog.String("default_error."+fe.Key, fe.Message))
	}
	l.logger.LogAttrs(context.Background(), level, "settings loaded", attrs...)
}

func (l slogLogger) LogExpr(event ExprEvent) {
	attrs := []slog.Attr{
		slog.String("schema", event.Schema),
		slog.String("key", event.Key),
		slog.String("engine", event.Engine),
		slog.String("expr", event.Expr),
		slog.Duration("duration", event.Duration),
	}
	if event.Err != nil {
		attrs = append(attrs, slog.String("phase", string(event.Phase)), slog.Any("error", event.Err))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "settings default expression failed", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "settings default expression", attrs...)
}
