package settings

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Schema is the immutable field table of a record type. Build it once per
// type and share it; it is safe for concurrent Load calls.
type Schema[R any] struct {
	fields []FieldSpec[R]
	byKey  map[string]int
	cfg    schemaConfig
}

// NewSchema validates fields and binds them to the returned schema. Keys must
// be non-empty and unique, including skipped fields.
func NewSchema[R any](fields []FieldSpec[R], opts ...Option) (*Schema[R], error) {
	cfg := applyOptions(opts)
	if len(cfg.errs) > 0 {
		return nil, errors.Join(cfg.errs...)
	}
	byKey := make(map[string]int, len(fields))
	hasExpr := false
	for i, field := range fields {
		if field == nil {
			return nil, fmt.Errorf("settings: field %d is nil", i)
		}
		desc := field.Describe()
		if desc.Key == "" {
			return nil, fmt.Errorf("%w: field %d", ErrEmptyKey, i)
		}
		if _, exists := byKey[desc.Key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, desc.Key)
		}
		if err := checkAccessor(field); err != nil {
			return nil, err
		}
		if field.boundTo() != nil {
			return nil, fmt.Errorf("%w: %s", ErrFieldBound, desc.Key)
		}
		byKey[desc.Key] = i
		if !desc.Skip && desc.Default == DefaultKindExpr {
			hasExpr = true
		}
	}

	if hasExpr && cfg.evaluator == nil {
		cfg.evaluator = NewExprEvaluator(
			WithEvaluatorCache(cfg.programCache),
			WithEvaluatorFunctions(cfg.functions),
		)
	}

	schema := &Schema[R]{
		fields: append([]FieldSpec[R](nil), fields...),
		byKey:  byKey,
		cfg:    cfg,
	}
	for i, field := range schema.fields {
		field.bind(schema, i)
	}
	return schema, nil
}

// MustSchema is NewSchema for package-level declarations; it panics on a
// malformed field table.
func MustSchema[R any](fields []FieldSpec[R], opts ...Option) *Schema[R] {
	schema, err := NewSchema(fields, opts...)
	if err != nil {
		panic(err)
	}
	return schema
}

func checkAccessor[R any](field FieldSpec[R]) error {
	type accessorChecker interface{ hasAccessor() bool }
	if checker, ok := field.(accessorChecker); ok && !checker.hasAccessor() {
		return fmt.Errorf("%w: %s", ErrNilAccessor, field.Key())
	}
	return nil
}

func (f *Field[R, V]) hasAccessor() bool {
	return f.access != nil
}

// Name returns the label configured with WithName.
func (s *Schema[R]) Name() string {
	return s.cfg.name
}

// Keys returns the keys of all non-skipped fields in declaration order.
func (s *Schema[R]) Keys() []string {
	keys := make([]string, 0, len(s.fields))
	for _, field := range s.fields {
		if field.Skipped() {
			continue
		}
		keys = append(keys, field.Key())
	}
	return keys
}

// Descriptors returns the descriptor of every declared field, skipped ones
// included, in declaration order.
func (s *Schema[R]) Descriptors() []Descriptor {
	out := make([]Descriptor, len(s.fields))
	for i, field := range s.fields {
		out[i] = field.Describe()
	}
	return out
}

// Codec returns the codec used for field values.
func (s *Schema[R]) Codec() Codec {
	return s.cfg.codec
}

// Load builds a record from a persisted snapshot. It never fails: fields that
// are absent or fail to decode take their default and start dirty, decoded
// fields start clean, and problems are reported in the result. Skipped fields
// always take their default and are never read from the snapshot.
func (s *Schema[R]) Load(snapshot map[string]string) LoadResult[R] {
	start := time.Now()
	rec := s.newRecord()
	env := s.newDefaultEnv()
	result := LoadResult[R]{Value: rec}

	decoded, defaulted := 0, 0
	for i, field := range s.fields {
		key := field.Key()
		if field.Skipped() {
			if err := field.resolveDefault(env, &rec.value); err != nil {
				result.DefaultErrors = append(result.DefaultErrors, newFieldError(key, err))
			}
			continue
		}
		if text, ok := snapshot[key]; ok {
			err := field.decode(s.cfg.codec, text, &rec.value)
			if err == nil {
				env.resolve(key, field.lookup(&rec.value))
				decoded++
				continue
			}
			result.DeserializationErrors = append(result.DeserializationErrors, newFieldError(key, err))
		}
		if err := field.resolveDefault(env, &rec.value); err != nil {
			result.DefaultErrors = append(result.DefaultErrors, newFieldError(key, err))
		}
		env.resolve(key, field.lookup(&rec.value))
		rec.dirty.set(i)
		defaulted++
	}
	result.UnknownFields = s.unknownKeys(snapshot)

	s.cfg.logger.LogLoad(LoadEvent{
		Schema:                s.cfg.name,
		Fields:                decoded + defaulted,
		Decoded:               decoded,
		Defaulted:             defaulted,
		DeserializationErrors: result.DeserializationErrors,
		UnknownFields:         result.UnknownFields,
		DefaultErrors:         result.DefaultErrors,
		Duration:              time.Since(start),
	})
	return result
}

// Defaults builds a record holding only default values, with no pending
// changes. Use Load(nil) instead when the defaults should be written back.
func (s *Schema[R]) Defaults() *Record[R] {
	rec := s.Load(nil).Value
	rec.dirty.reset()
	return rec
}

func (s *Schema[R]) unknownKeys(snapshot map[string]string) []string {
	var unknown []string
	for key := range snapshot {
		if _, idx := s.field(key); idx >= 0 {
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)
	return unknown
}

// field returns the non-skipped field declared under key.
func (s *Schema[R]) field(key string) (FieldSpec[R], int) {
	idx, ok := s.byKey[key]
	if !ok || s.fields[idx].Skipped() {
		return nil, -1
	}
	return s.fields[idx], idx
}

func (s *Schema[R]) newRecord() *Record[R] {
	return &Record[R]{
		schema: s,
		dirty:  newDirtySet(len(s.fields)),
	}
}

func (s *Schema[R]) newDefaultEnv() *defaultEnv {
	return &defaultEnv{
		codec:     s.cfg.codec,
		evaluator: s.cfg.evaluator,
		schema:    s.cfg.name,
		logger:    s.cfg.exprLogger,
		args:      s.cfg.exprArgs,
		now:       s.cfg.clock(),
		resolved:  make(map[string]any, len(s.fields)),
	}
}
