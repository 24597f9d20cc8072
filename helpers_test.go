package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

type Theme string

const (
	ThemeDark  Theme = "Dark"
	ThemeLight Theme = "Light"
)

func (t *Theme) UnmarshalJSON(raw []byte) error {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return err
	}
	switch Theme(name) {
	case ThemeDark, ThemeLight:
		*t = Theme(name)
		return nil
	}
	return fmt.Errorf("unknown variant %q, expected Dark or Light", name)
}

type testPrefs struct {
	Theme  Theme
	Notify bool
	Lang   string
	Token  string
}

type prefsFields struct {
	theme  *Field[testPrefs, Theme]
	notify *Field[testPrefs, bool]
	lang   *Field[testPrefs, string]
	token  *Field[testPrefs, string]
}

func newPrefsSchema(t *testing.T, opts ...Option) (*Schema[testPrefs], prefsFields) {
	t.Helper()
	fields := prefsFields{
		theme: Define("theme", func(p *testPrefs) *Theme { return &p.Theme }, Fixed(ThemeDark)),
		notify: Define("notify", func(p *testPrefs) *bool { return &p.Notify },
			FromFunc(func() bool { return true })),
		lang: Define("lang", func(p *testPrefs) *string { return &p.Lang },
			FromFunc(func() string { return "en" })),
		token: Define("token", func(p *testPrefs) *string { return &p.Token },
			TypeDefault[string](), Skip()),
	}
	schema, err := NewSchema([]FieldSpec[testPrefs]{
		fields.theme, fields.notify, fields.lang, fields.token,
	}, opts...)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return schema, fields
}

func loadFixture[T any](t *testing.T, name string) T {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("unable to resolve caller for fixture %q", name)
	}
	path := filepath.Join(filepath.Dir(file), "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %q: %v", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("failed to unmarshal fixture %q: %v", path, err)
	}
	return out
}
