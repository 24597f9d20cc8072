package settings

import "errors"

// LoadResult is the outcome of Schema.Load. Value is always usable; the
// remaining fields report what had to be repaired along the way.
type LoadResult[R any] struct {
	Value                 *Record[R]
	DeserializationErrors []FieldError
	UnknownFields         []string
	DefaultErrors         []FieldError
}

// OK reports whether the snapshot loaded without any diagnostics.
func (r LoadResult[R]) OK() bool {
	return len(r.DeserializationErrors) == 0 && len(r.UnknownFields) == 0 && len(r.DefaultErrors) == 0
}

// Err joins decode and default failures into one error. Unknown fields are
// not errors and are not included.
func (r LoadResult[R]) Err() error {
	var errs []error
	for i := range r.DeserializationErrors {
		errs = append(errs, &r.DeserializationErrors[i])
	}
	for i := range r.DefaultErrors {
		errs = append(errs, &r.DefaultErrors[i])
	}
	return errors.Join(errs...)
}
