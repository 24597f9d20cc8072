package settings

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-settings/internal/hydrate"
)

// Codec converts field values to and from their persisted text form. Decode
// must fail on malformed input or type mismatches and must leave target
// untouched when it does.
type Codec interface {
	Encode(value any) (string, error)
	Decode(text string, target any) error
}

// JSONOption configures the JSON codec.
type JSONOption func(*jsonConfig)

type jsonConfig struct {
	decoderOptions []hydrate.DecoderOption
	escapeHTML     bool
}

// WithDisallowUnknownFields rejects stored objects carrying fields the Go type
// does not declare.
func WithDisallowUnknownFields() JSONOption {
	return func(cfg *jsonConfig) {
		cfg.decoderOptions = append(cfg.decoderOptions, hydrate.WithDisallowUnknownFields())
	}
}

// WithUseNumber decodes numbers held in interface values as json.Number.
func WithUseNumber() JSONOption {
	return func(cfg *jsonConfig) {
		cfg.decoderOptions = append(cfg.decoderOptions, hydrate.WithUseNumber())
	}
}

// WithEscapeHTML toggles HTML escaping of encoded strings (default: off).
func WithEscapeHTML(escape bool) JSONOption {
	return func(cfg *jsonConfig) {
		cfg.escapeHTML = escape
	}
}

// JSONCodec is the default field codec.
type JSONCodec struct {
	decoder    *hydrate.Decoder
	escapeHTML bool
}

// NewJSONCodec constructs a strict JSON codec.
func NewJSONCodec(opts ...JSONOption) *JSONCodec {
	cfg := jsonConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &JSONCodec{
		decoder:    hydrate.NewDecoder(cfg.decoderOptions...),
		escapeHTML: cfg.escapeHTML,
	}
}

// Encode implements Codec.
func (c *JSONCodec) Encode(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(c != nil && c.escapeHTML)
	if err := enc.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode implements Codec.
func (c *JSONCodec) Decode(text string, target any) error {
	if c == nil || c.decoder == nil {
		return hydrate.NewDecoder().Decode(text, target)
	}
	return c.decoder.Decode(text, target)
}
