package settings

import "fmt"

// Record is one loaded instance of a schema: the record value plus a dirty
// bit per field. A Record is not safe for concurrent use; guard it with a
// single lock when sharing it between goroutines.
type Record[R any] struct {
	schema *Schema[R]
	value  R
	dirty  dirtySet
}

// Change is one field that needs persisting, with its encoded value.
type Change struct {
	Key   string `json:"key" yaml:"key" toml:"key"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// Changes is an ordered list of pending writes.
type Changes []Change

// Map returns the changes keyed by field key.
func (c Changes) Map() map[string]string {
	out := make(map[string]string, len(c))
	for _, change := range c {
		out[change.Key] = change.Value
	}
	return out
}

// Keys returns the changed keys in order.
func (c Changes) Keys() []string {
	keys := make([]string, len(c))
	for i, change := range c {
		keys[i] = change.Key
	}
	return keys
}

// Schema returns the schema the record was loaded with.
func (r *Record[R]) Schema() *Schema[R] {
	return r.schema
}

// Value returns a shallow copy of the record value.
func (r *Record[R]) Value() R {
	return r.value
}

// Get returns the current value of field.
func Get[R any, V any](rec *Record[R], field *Field[R, V]) V {
	mustOwn(rec, field)
	return *field.slot(&rec.value)
}

// Set overwrites the value of field and marks it dirty, even when value equals
// the current value. Skipped fields are written but never tracked.
func Set[R any, V any](rec *Record[R], field *Field[R, V], value V) {
	mustOwn(rec, field)
	*field.slot(&rec.value) = value
	rec.touch(field.index, field.Skipped())
}

// Update mutates field in place through fn and marks it dirty.
func Update[R any, V any](rec *Record[R], field *Field[R, V], fn func(*V)) {
	mustOwn(rec, field)
	if fn == nil {
		return
	}
	fn(field.slot(&rec.value))
	rec.touch(field.index, field.Skipped())
}

func mustOwn[R any, V any](rec *Record[R], field *Field[R, V]) {
	if rec == nil || field == nil {
		panic("settings: nil record or field")
	}
	if field.owner != any(rec.schema) {
		panic(fmt.Sprintf("settings: field %q is not declared by this record's schema", field.key))
	}
}

func (r *Record[R]) touch(index int, skipped bool) {
	if skipped {
		return
	}
	r.dirty.set(index)
}

// Lookup returns the value stored under key. Unknown and skipped keys fail
// with ErrUnknownField.
func (r *Record[R]) Lookup(key string) (any, error) {
	field, idx := r.schema.field(key)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return field.lookup(&r.value), nil
}

// Assign is the dynamic counterpart of Set. value must have the field's exact
// type; nil is accepted for nilable types.
func (r *Record[R]) Assign(key string, value any) error {
	field, idx := r.schema.field(key)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if err := field.assign(&r.value, value); err != nil {
		return err
	}
	r.dirty.set(idx)
	return nil
}

// AssignText decodes text with the schema codec and assigns the result. The
// field is left untouched when decoding fails.
func (r *Record[R]) AssignText(key, text string) error {
	field, idx := r.schema.field(key)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	if err := field.decode(r.schema.cfg.codec, text, &r.value); err != nil {
		return err
	}
	r.dirty.set(idx)
	return nil
}

// IsDirty reports whether key has a pending change.
func (r *Record[R]) IsDirty(key string) bool {
	_, idx := r.schema.field(key)
	return idx >= 0 && r.dirty.has(idx)
}

// DirtyKeys returns the keys with pending changes in declaration order.
func (r *Record[R]) DirtyKeys() []string {
	var keys []string
	for i, field := range r.schema.fields {
		if r.dirty.has(i) {
			keys = append(keys, field.Key())
		}
	}
	return keys
}

// Changes encodes every dirty field in declaration order. It does not clear
// dirty bits; an *EncodeError means an in-memory value cannot be represented
// and no partial list is returned.
func (r *Record[R]) Changes() (Changes, error) {
	var changes Changes
	for i, field := range r.schema.fields {
		if !r.dirty.has(i) {
			continue
		}
		text, err := field.encode(r.schema.cfg.codec, &r.value)
		if err != nil {
			return nil, err
		}
		changes = append(changes, Change{Key: field.Key(), Value: text})
	}
	return changes, nil
}

// MarkSaved clears every dirty bit. Call it only after the list returned by
// the preceding Changes call has been durably persisted.
func (r *Record[R]) MarkSaved() {
	r.dirty.reset()
}
