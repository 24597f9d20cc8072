package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
)

// ErrEmptyInput is returned when the payload holds no JSON value at all.
var ErrEmptyInput = errors.New("hydrate: empty input")

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder converts a single JSON text into a typed Go value. Unlike
// json.Unmarshal it never merges into the existing target, rejects trailing
// data, and treats a literal null as a type mismatch for targets that cannot
// hold nil. Slices and maps accept null as their nil value, which is what a
// nil slice or map encodes to.
type Decoder struct {
	configureDec []func(*json.Decoder)
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber() DecoderOption {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields() DecoderOption {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithDecoderConfig allows callers to configure the json.Decoder directly.
func WithDecoderConfig(configure func(*json.Decoder)) DecoderOption {
	return func(d *Decoder) {
		if configure != nil {
			d.configureDec = append(d.configureDec, configure)
		}
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode parses text into target, which must be a non-nil pointer. target is
// only written when decoding succeeds.
func (d *Decoder) Decode(text string, target any) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("hydrate: target must be a non-nil pointer, got %T", target)
	}
	elemType := rv.Elem().Type()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}
	if trimmed == "null" && !acceptsNull(elemType) {
		return fmt.Errorf("invalid type: null, expected %s", elemType)
	}

	decoder := json.NewDecoder(strings.NewReader(text))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}

	fresh := reflect.New(elemType)
	if err := decoder.Decode(fresh.Interface()); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("trailing data after %s value", elemType)
	}

	rv.Elem().Set(fresh.Elem())
	return nil
}

func acceptsNull(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	default:
		return false
	}
}
