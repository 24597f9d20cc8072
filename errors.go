package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownField is returned by the dynamic accessors for keys that are not
	// declared (or are skipped) in the record schema.
	ErrUnknownField = errors.New("settings: unknown field")
	// ErrTypeMismatch is returned when Assign receives a value of the wrong type.
	ErrTypeMismatch = errors.New("settings: type mismatch")

	// ErrEmptyKey indicates a field declared without a persistence key.
	ErrEmptyKey = errors.New("settings: field key must not be empty")
	// ErrDuplicateKey indicates two fields of one schema share a key.
	ErrDuplicateKey = errors.New("settings: field keys must be unique")
	// ErrNilAccessor indicates a field declared without an accessor.
	ErrNilAccessor = errors.New("settings: field accessor must not be nil")
	// ErrFieldBound indicates a field handle already registered with another schema.
	ErrFieldBound = errors.New("settings: field already belongs to a schema")
)

// DecodeError reports a stored value that could not be parsed into the
// field's type.
type DecodeError struct {
	Key  string
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: decode field %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EncodeError reports a dirty value that could not be serialized. It signals
// an inconsistent in-memory value rather than bad stored data.
type EncodeError struct {
	Key string
	Err error
}

func (e *EncodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: encode field %q: %v", e.Key, e.Err)
}

func (e *EncodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FieldError is a load diagnostic tied to one field key. Message carries the
// codec or evaluator message without the settings prefix.
type FieldError struct {
	Key     string
	Message string
	Err     error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

func newFieldError(key string, err error) FieldError {
	cause := err
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) && decodeErr.Err != nil {
		cause = decodeErr.Err
	}
	var exprErr *ExprError
	if errors.As(err, &exprErr) && exprErr.Err != nil {
		cause = exprErr.Err
	}
	return FieldError{Key: key, Message: cause.Error(), Err: err}
}
