package settings

import (
	"fmt"
	"reflect"
)

// DefaultKind names the policy used to produce a field's default value.
type DefaultKind string

const (
	// DefaultKindType resolves to the Go zero value of the field type.
	DefaultKindType DefaultKind = "type"
	// DefaultKindFixed resolves to a value captured at declaration time.
	DefaultKindFixed DefaultKind = "fixed"
	// DefaultKindFunc calls a function every time a default is needed.
	DefaultKindFunc DefaultKind = "func"
	// DefaultKindExpr evaluates an expression with the schema evaluator.
	DefaultKindExpr DefaultKind = "expr"
)

// DefaultPolicy produces the value a field takes when the snapshot has no
// usable entry for it. The zero DefaultPolicy behaves like TypeDefault.
type DefaultPolicy[V any] struct {
	kind  DefaultKind
	value V
	fn    func() V
	expr  string
}

// Fixed uses value as the default. Reference types (maps, slices, pointers)
// are shared between records, so prefer FromFunc for those.
func Fixed[V any](value V) DefaultPolicy[V] {
	return DefaultPolicy[V]{kind: DefaultKindFixed, value: value}
}

// FromFunc calls fn each time a default is resolved.
func FromFunc[V any](fn func() V) DefaultPolicy[V] {
	if fn == nil {
		return TypeDefault[V]()
	}
	return DefaultPolicy[V]{kind: DefaultKindFunc, fn: fn}
}

// TypeDefault uses the zero value of V.
func TypeDefault[V any]() DefaultPolicy[V] {
	return DefaultPolicy[V]{kind: DefaultKindType}
}

// FromExpr evaluates expr with the schema's Evaluator. The expression sees the
// values of fields resolved earlier in the same load, keyed by field key.
func FromExpr[V any](expr string) DefaultPolicy[V] {
	return DefaultPolicy[V]{kind: DefaultKindExpr, expr: expr}
}

// Kind reports the policy kind.
func (p DefaultPolicy[V]) Kind() DefaultKind {
	if p.kind == "" {
		return DefaultKindType
	}
	return p.kind
}

// Expr returns the expression of a DefaultKindExpr policy.
func (p DefaultPolicy[V]) Expr() string {
	return p.expr
}

// FieldOption configures a field declaration.
type FieldOption func(*fieldConfig)

type fieldConfig struct {
	skip        bool
	description string
}

// Skip excludes the field from load, change tracking and persistence.
func Skip() FieldOption {
	return func(cfg *fieldConfig) {
		cfg.skip = true
	}
}

// WithDescription attaches human-readable documentation used by schema
// exporters.
func WithDescription(description string) FieldOption {
	return func(cfg *fieldConfig) {
		cfg.description = description
	}
}

// FieldSpec is the type-erased view of a Field that a Schema stores. It is
// implemented only by *Field.
type FieldSpec[R any] interface {
	Key() string
	Skipped() bool
	Describe() Descriptor

	boundTo() any
	bind(owner any, index int)
	decode(codec Codec, text string, rec *R) error
	encode(codec Codec, rec *R) (string, error)
	resolveDefault(env *defaultEnv, rec *R) error
	lookup(rec *R) any
	assign(rec *R, value any) error
}

// Field declares one persisted field of record type R holding a V.
type Field[R any, V any] struct {
	key    string
	access func(*R) *V
	policy DefaultPolicy[V]
	cfg    fieldConfig

	owner any
	index int
}

// Define declares a field. access must return the address of the field's
// storage inside the record value.
func Define[R any, V any](key string, access func(*R) *V, policy DefaultPolicy[V], opts ...FieldOption) *Field[R, V] {
	cfg := fieldConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Field[R, V]{
		key:    key,
		access: access,
		policy: policy,
		cfg:    cfg,
		index:  -1,
	}
}

// Key returns the persistence key.
func (f *Field[R, V]) Key() string {
	return f.key
}

// Skipped reports whether the field is excluded from persistence.
func (f *Field[R, V]) Skipped() bool {
	return f.cfg.skip
}

// Policy returns the declared default policy.
func (f *Field[R, V]) Policy() DefaultPolicy[V] {
	return f.policy
}

// Describe returns the static descriptor of the field.
func (f *Field[R, V]) Describe() Descriptor {
	desc := Descriptor{
		Key:         f.key,
		Skip:        f.cfg.skip,
		Default:     f.policy.Kind(),
		Expr:        f.policy.expr,
		Description: f.cfg.description,
		Type:        typeOf[V](),
	}
	switch desc.Default {
	case DefaultKindFixed:
		desc.DefaultValue = f.policy.value
		desc.HasDefaultValue = true
	case DefaultKindType:
		var zero V
		desc.DefaultValue = zero
		desc.HasDefaultValue = true
	}
	return desc
}

func (f *Field[R, V]) boundTo() any {
	return f.owner
}

func (f *Field[R, V]) bind(owner any, index int) {
	f.owner = owner
	f.index = index
}

func (f *Field[R, V]) slot(rec *R) *V {
	return f.access(rec)
}

func (f *Field[R, V]) decode(codec Codec, text string, rec *R) error {
	var value V
	if err := codec.Decode(text, &value); err != nil {
		return &DecodeError{Key: f.key, Text: text, Err: err}
	}
	*f.slot(rec) = value
	return nil
}

func (f *Field[R, V]) encode(codec Codec, rec *R) (string, error) {
	text, err := codec.Encode(*f.slot(rec))
	if err != nil {
		return "", &EncodeError{Key: f.key, Err: err}
	}
	return text, nil
}

func (f *Field[R, V]) resolveDefault(env *defaultEnv, rec *R) error {
	slot := f.slot(rec)
	switch f.policy.Kind() {
	case DefaultKindFixed:
		*slot = f.policy.value
	case DefaultKindFunc:
		*slot = f.policy.fn()
	case DefaultKindExpr:
		value, err := evaluateDefault[V](env, f.key, f.policy.expr)
		if err != nil {
			var zero V
			*slot = zero
			return err
		}
		*slot = value
	default:
		var zero V
		*slot = zero
	}
	return nil
}

func (f *Field[R, V]) lookup(rec *R) any {
	return *f.slot(rec)
}

func (f *Field[R, V]) assign(rec *R, value any) error {
	typed, ok := value.(V)
	if !ok {
		if value != nil || !nilable(typeOf[V]()) {
			return fmt.Errorf("%w: field %q expects %s, got %T", ErrTypeMismatch, f.key, typeOf[V](), value)
		}
	}
	*f.slot(rec) = typed
	return nil
}

func typeOf[V any]() reflect.Type {
	return reflect.TypeOf((*V)(nil)).Elem()
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// Descriptor is the static, type-erased description of a declared field.
type Descriptor struct {
	Key             string
	Skip            bool
	Default         DefaultKind
	DefaultValue    any
	HasDefaultValue bool
	Expr            string
	Description     string
	Type            reflect.Type
}
