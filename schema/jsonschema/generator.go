// Package jsonschema describes a settings schema as a JSON Schema document:
// one property per persisted key, typed after the field's Go type, with the
// default the field would take when the key is missing.
package jsonschema

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	settings "github.com/goliatone/go-settings"
)

// Enum is implemented by value types restricted to a fixed set of values. The
// values are written as the property's enum.
type Enum interface {
	EnumValues() []any
}

var (
	timeType        = reflect.TypeOf(time.Time{})
	durationType    = reflect.TypeOf(time.Duration(0))
	enumType        = reflect.TypeOf((*Enum)(nil)).Elem()
	textMarshalType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// Generate builds the JSON Schema document of schema.
func Generate[R any](schema *settings.Schema[R], opts ...Option) (map[string]any, error) {
	if schema == nil {
		return nil, fmt.Errorf("jsonschema: schema is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	doc := map[string]any{
		"$schema": cfg.dialect,
		"type":    "object",
	}
	if cfg.id != "" {
		doc["$id"] = cfg.id
	}
	title := cfg.title
	if title == "" {
		title = schema.Name()
	}
	if title != "" {
		doc["title"] = title
	}
	if cfg.description != "" {
		doc["description"] = cfg.description
	}
	if cfg.strict {
		doc["additionalProperties"] = false
	}

	properties := map[string]any{}
	var skipped []string
	for _, desc := range schema.Descriptors() {
		if desc.Skip {
			skipped = append(skipped, desc.Key)
			continue
		}
		property, err := fieldSchema(schema.Codec(), desc)
		if err != nil {
			return nil, err
		}
		properties[desc.Key] = property
	}
	doc["properties"] = properties
	if cfg.skipped && len(skipped) > 0 {
		doc["x-skipped"] = skipped
	}
	return doc, nil
}

// Marshal generates the document and renders it as indented JSON.
func Marshal[R any](schema *settings.Schema[R], opts ...Option) ([]byte, error) {
	doc, err := Generate(schema, opts...)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("jsonschema: encode document: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func fieldSchema(codec settings.Codec, desc settings.Descriptor) (map[string]any, error) {
	property, err := typeSchema(desc.Type, map[reflect.Type]bool{})
	if err != nil {
		return nil, fmt.Errorf("jsonschema: field %q: %w", desc.Key, err)
	}
	if desc.Description != "" {
		property["description"] = desc.Description
	}
	property["x-default-policy"] = string(desc.Default)
	if desc.Expr != "" {
		property["x-default-expr"] = desc.Expr
	}
	if desc.HasDefaultValue {
		value, err := encodeDefault(codec, desc.DefaultValue)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: field %q default: %w", desc.Key, err)
		}
		property["default"] = value
	}
	return property, nil
}

// encodeDefault renders value the way it would be stored.
func encodeDefault(codec settings.Codec, value any) (any, error) {
	text, err := codec.Encode(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return text, nil
	}
	return out, nil
}

func typeSchema(rt reflect.Type, seen map[reflect.Type]bool) (map[string]any, error) {
	if rt == nil {
		return map[string]any{}, nil
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}

	var schema map[string]any
	switch {
	case rt == timeType:
		schema = map[string]any{"type": "string", "format": "date-time"}
	case rt == durationType:
		schema = map[string]any{"type": "integer", "format": "duration-ns"}
	case rt.Kind() != reflect.Struct && reflect.PointerTo(rt).Implements(textMarshalType):
		schema = map[string]any{"type": "string"}
	default:
		var err error
		schema, err = kindSchema(rt, seen)
		if err != nil {
			return nil, err
		}
	}

	if rt.Implements(enumType) {
		if values := reflect.Zero(rt).Interface().(Enum).EnumValues(); len(values) > 0 {
			schema["enum"] = values
		}
	}
	return schema, nil
}

func kindSchema(rt reflect.Type, seen map[reflect.Type]bool) (map[string]any, error) {
	switch rt.Kind() {
	case reflect.Interface:
		return map[string]any{}, nil
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Struct:
		return structSchema(rt, seen)
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s unsupported", rt.Key())
		}
		items, err := typeSchema(rt.Elem(), seen)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "object", "additionalProperties": items}, nil
	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
			return map[string]any{"type": "string", "contentEncoding": "base64"}, nil
		}
		items, err := typeSchema(rt.Elem(), seen)
		if err != nil {
			return nil, err
		}
		schema := map[string]any{"type": "array", "items": items}
		if rt.Kind() == reflect.Array {
			schema["minItems"] = rt.Len()
			schema["maxItems"] = rt.Len()
		}
		return schema, nil
	default:
		return nil, fmt.Errorf("type %s cannot be represented", rt)
	}
}

func structSchema(rt reflect.Type, seen map[reflect.Type]bool) (map[string]any, error) {
	if seen[rt] {
		return nil, fmt.Errorf("recursive type %s unsupported", rt)
	}
	seen[rt] = true
	defer delete(seen, rt)

	properties := map[string]any{}
	var required []string
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := field.Name
		omitEmpty := false
		if tag := field.Tag.Get("json"); tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, part := range parts[1:] {
				if part == "omitempty" || part == "omitzero" {
					omitEmpty = true
				}
			}
		}
		child, err := typeSchema(field.Type, seen)
		if err != nil {
			return nil, err
		}
		properties[name] = child
		if !omitEmpty {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema, nil
}
