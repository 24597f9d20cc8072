package jsonschema

import "strings"

// DefaultDialect is the $schema URI written when none is configured.
const DefaultDialect = "https://json-schema.org/draft/2020-12/schema"

type config struct {
	dialect     string
	id          string
	title       string
	description string
	skipped     bool
	strict      bool
}

func defaultConfig() config {
	return config{dialect: DefaultDialect}
}

// Option configures document generation.
type Option func(*config)

// WithDialect overrides the $schema URI. Empty values keep the default.
func WithDialect(uri string) Option {
	return func(cfg *config) {
		if uri = strings.TrimSpace(uri); uri != "" {
			cfg.dialect = uri
		}
	}
}

// WithID sets the $id of the document.
func WithID(id string) Option {
	return func(cfg *config) {
		cfg.id = strings.TrimSpace(id)
	}
}

// WithTitle sets the document title. The schema name is used otherwise.
func WithTitle(title string) Option {
	return func(cfg *config) {
		cfg.title = strings.TrimSpace(title)
	}
}

// WithDescription sets the document description.
func WithDescription(description string) Option {
	return func(cfg *config) {
		cfg.description = description
	}
}

// WithSkipped lists skipped fields under x-skipped. They never appear as
// properties because they are not persisted.
func WithSkipped() Option {
	return func(cfg *config) {
		cfg.skipped = true
	}
}

// WithStrict sets additionalProperties to false. Loads tolerate unknown keys,
// so documents are open by default.
func WithStrict() Option {
	return func(cfg *config) {
		cfg.strict = true
	}
}
