package prefs

import (
	"errors"
	"fmt"
	"testing"

	settings "github.com/goliatone/go-settings"
)

func TestDefaults(t *testing.T) {
	schema, _, err := NewSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	got := schema.Defaults().Value()
	want := Preferences{Theme: ThemeSystem, Notify: true, Lang: "en", FontSize: 14, RecentFiles: []string{}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if keys := schema.Keys(); len(keys) != 5 {
		t.Fatalf("session token must not be persisted, keys=%v", keys)
	}
}

func TestFontSizeFollowsLanguage(t *testing.T) {
	schema, fields, err := NewSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	result := schema.Load(map[string]string{"lang": `"ja"`})
	if err := result.Err(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := settings.Get(result.Value, fields.FontSize); got != 16 {
		t.Fatalf("expected font size 16 for ja, got %d", got)
	}
	if !result.Value.IsDirty("font_size") || result.Value.IsDirty("lang") {
		t.Fatalf("unexpected dirty keys %v", result.Value.DirtyKeys())
	}
}

func TestThemeRejectsUnknownValue(t *testing.T) {
	schema, fields, err := NewSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	result := schema.Load(map[string]string{"theme": `"sepia"`})
	if len(result.DeserializationErrors) != 1 || result.DeserializationErrors[0].Key != "theme" {
		t.Fatalf("expected theme decode error, got %+v", result.DeserializationErrors)
	}
	if got := settings.Get(result.Value, fields.Theme); got != ThemeSystem {
		t.Fatalf("expected default theme, got %q", got)
	}

	var decodeErr *settings.DecodeError
	err = result.Value.AssignText("theme", `"neon"`)
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestAddRecent(t *testing.T) {
	schema, fields, err := NewSchema()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	rec := schema.Defaults()
	for i := 0; i < MaxRecentFiles+2; i++ {
		AddRecent(rec, fields, fmt.Sprintf("file-%d.go", i))
	}
	AddRecent(rec, fields, "file-5.go")

	files := settings.Get(rec, fields.RecentFiles)
	if len(files) != MaxRecentFiles {
		t.Fatalf("expected %d files, got %d", MaxRecentFiles, len(files))
	}
	if files[0] != "file-5.go" || files[1] != "file-11.go" {
		t.Fatalf("unexpected order %v", files)
	}
	for i, a := range files {
		for _, b := range files[i+1:] {
			if a == b {
				t.Fatalf("duplicate entry %q in %v", a, files)
			}
		}
	}
	if !rec.IsDirty("recent_files") {
		t.Fatalf("expected recent_files to be dirty")
	}
}

func TestEnumValues(t *testing.T) {
	values := Theme("").EnumValues()
	if len(values) != 3 || values[0] != "system" {
		t.Fatalf("unexpected enum values %v", values)
	}
}
