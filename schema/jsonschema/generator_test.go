package jsonschema_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/schema/jsonschema"
)

type Mode string

func (Mode) EnumValues() []any { return []any{"auto", "manual"} }

type Window struct {
	Width  int `json:"width"`
	Height int `json:"height,omitempty"`
}

type Profile struct {
	Mode    Mode
	Volume  float64
	Tags    []string
	Window  Window
	Limits  map[string]int
	Started time.Time
	Secret  string
}

func newProfileSchema(t *testing.T) *settings.Schema[Profile] {
	t.Helper()
	schema, err := settings.NewSchema([]settings.FieldSpec[Profile]{
		settings.Define("mode", func(p *Profile) *Mode { return &p.Mode }, settings.Fixed(Mode("auto")),
			settings.WithDescription("Playback mode")),
		settings.Define("volume", func(p *Profile) *float64 { return &p.Volume },
			settings.FromExpr[float64](`mode == "auto" ? 0.5 : 1`)),
		settings.Define("tags", func(p *Profile) *[]string { return &p.Tags }, settings.TypeDefault[[]string]()),
		settings.Define("window", func(p *Profile) *Window { return &p.Window }, settings.Fixed(Window{Width: 800})),
		settings.Define("limits", func(p *Profile) *map[string]int { return &p.Limits },
			settings.FromFunc(func() map[string]int { return map[string]int{"daily": 3} })),
		settings.Define("started", func(p *Profile) *time.Time { return &p.Started }, settings.TypeDefault[time.Time]()),
		settings.Define("secret", func(p *Profile) *string { return &p.Secret }, settings.TypeDefault[string](),
			settings.Skip()),
	}, settings.WithName("profile"))
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return schema
}

func TestMarshalGolden(t *testing.T) {
	out, err := jsonschema.Marshal(newProfileSchema(t),
		jsonschema.WithID("https://example.com/profile.json"),
		jsonschema.WithSkipped(),
	)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden.json"),
	)
	g.Assert(t, "profile", out)
}

func TestGenerateOptions(t *testing.T) {
	doc, err := jsonschema.Generate(newProfileSchema(t),
		jsonschema.WithTitle("Player profile"),
		jsonschema.WithDescription("per-user player settings"),
		jsonschema.WithDialect("http://json-schema.org/draft-07/schema#"),
		jsonschema.WithStrict(),
	)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if doc["title"] != "Player profile" {
		t.Fatalf("expected title override, got %v", doc["title"])
	}
	if doc["$schema"] != "http://json-schema.org/draft-07/schema#" {
		t.Fatalf("expected dialect override, got %v", doc["$schema"])
	}
	if doc["additionalProperties"] != false {
		t.Fatalf("expected strict document, got %v", doc["additionalProperties"])
	}
	if _, ok := doc["x-skipped"]; ok {
		t.Fatalf("skipped keys are listed only on request")
	}
	properties := doc["properties"].(map[string]any)
	if _, ok := properties["secret"]; ok {
		t.Fatalf("skipped field must not be a property")
	}
	if len(properties) != 6 {
		t.Fatalf("expected 6 properties, got %d", len(properties))
	}
}

func TestGenerateRejectsUnsupportedTypes(t *testing.T) {
	type Broken struct {
		Callback func()
	}
	schema := settings.MustSchema([]settings.FieldSpec[Broken]{
		settings.Define("callback", func(b *Broken) *func() { return &b.Callback }, settings.TypeDefault[func()]()),
	})
	_, err := jsonschema.Generate(schema)
	if err == nil || !strings.Contains(err.Error(), `field "callback"`) {
		t.Fatalf("expected unsupported type error, got %v", err)
	}

	if _, err := jsonschema.Generate[Broken](nil); err == nil {
		t.Fatalf("expected error for nil schema")
	}
}

func TestGenerateReportsUnencodableDefault(t *testing.T) {
	type Gauge struct{ Level float64 }
	schema := settings.MustSchema([]settings.FieldSpec[Gauge]{
		settings.Define("level", func(g *Gauge) *float64 { return &g.Level }, settings.Fixed(math.Inf(1))),
	})
	if _, err := jsonschema.Generate(schema); err == nil {
		t.Fatalf("expected default encoding error")
	}
}

func TestMarshalIsValidJSON(t *testing.T) {
	out, err := jsonschema.Marshal(newProfileSchema(t))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["title"] != "profile" {
		t.Fatalf("expected schema name as title, got %v", decoded["title"])
	}
}
