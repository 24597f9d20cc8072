// Package prefs declares the editor preferences record managed by
// settingsctl.
package prefs

import (
	"encoding/json"
	"fmt"
	"slices"

	settings "github.com/goliatone/go-settings"
)

// Domain is the store domain preferences are saved under.
const Domain = "preferences"

// MaxRecentFiles caps the recent files list.
const MaxRecentFiles = 10

// Theme is the colour scheme of the editor.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
)

// EnumValues lists the accepted themes.
func (Theme) EnumValues() []any {
	return []any{string(ThemeSystem), string(ThemeDark), string(ThemeLight)}
}

// UnmarshalJSON rejects themes outside EnumValues.
func (t *Theme) UnmarshalJSON(raw []byte) error {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return err
	}
	switch Theme(name) {
	case ThemeSystem, ThemeDark, ThemeLight:
		*t = Theme(name)
		return nil
	}
	return fmt.Errorf("unknown theme %q", name)
}

// Preferences is the persisted preferences record. SessionToken lives only in
// memory.
type Preferences struct {
	Theme        Theme
	Notify       bool
	Lang         string
	FontSize     int
	RecentFiles  []string
	SessionToken string
}

// Fields holds the typed handles of one preferences schema.
type Fields struct {
	Theme        *settings.Field[Preferences, Theme]
	Notify       *settings.Field[Preferences, bool]
	Lang         *settings.Field[Preferences, string]
	FontSize     *settings.Field[Preferences, int]
	RecentFiles  *settings.Field[Preferences, []string]
	SessionToken *settings.Field[Preferences, string]
}

// NewSchema declares a preferences schema. Each call returns fresh field
// handles bound to the new schema.
func NewSchema(opts ...settings.Option) (*settings.Schema[Preferences], Fields, error) {
	fields := Fields{
		Theme: settings.Define("theme", func(p *Preferences) *Theme { return &p.Theme },
			settings.Fixed(ThemeSystem), settings.WithDescription("Colour scheme")),
		Notify: settings.Define("notify", func(p *Preferences) *bool { return &p.Notify },
			settings.FromFunc(func() bool { return true }), settings.WithDescription("Desktop notifications")),
		Lang: settings.Define("lang", func(p *Preferences) *string { return &p.Lang },
			settings.Fixed("en"), settings.WithDescription("Interface language")),
		FontSize: settings.Define("font_size", func(p *Preferences) *int { return &p.FontSize },
			settings.FromExpr[int](`lang in ["ja", "zh", "ko"] ? 16 : 14`), settings.WithDescription("Editor font size in points")),
		RecentFiles: settings.Define("recent_files", func(p *Preferences) *[]string { return &p.RecentFiles },
			settings.FromFunc(func() []string { return []string{} }), settings.WithDescription("Most recently opened files")),
		SessionToken: settings.Define("session_token", func(p *Preferences) *string { return &p.SessionToken },
			settings.TypeDefault[string](), settings.Skip()),
	}
	opts = append([]settings.Option{settings.WithName(Domain)}, opts...)
	schema, err := settings.NewSchema([]settings.FieldSpec[Preferences]{
		fields.Theme,
		fields.Notify,
		fields.Lang,
		fields.FontSize,
		fields.RecentFiles,
		fields.SessionToken,
	}, opts...)
	if err != nil {
		return nil, Fields{}, err
	}
	return schema, fields, nil
}

// AddRecent moves path to the front of the recent files list, dropping
// duplicates and entries beyond MaxRecentFiles.
func AddRecent(rec *settings.Record[Preferences], fields Fields, path string) {
	settings.Update(rec, fields.RecentFiles, func(files *[]string) {
		next := make([]string, 0, len(*files)+1)
		next = append(next, path)
		for _, existing := range *files {
			if existing != path && !slices.Contains(next, existing) {
				next = append(next, existing)
			}
		}
		if len(next) > MaxRecentFiles {
			next = next[:MaxRecentFiles]
		}
		*files = next
	})
}
