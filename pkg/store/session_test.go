package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/store"
)

type editorPrefs struct {
	Theme    string
	FontSize int
	Lang     string
	Recent   []string
}

type editorFields struct {
	theme    *settings.Field[editorPrefs, string]
	fontSize *settings.Field[editorPrefs, int]
	lang     *settings.Field[editorPrefs, string]
	recent   *settings.Field[editorPrefs, []string]
}

func newEditorSchema(t *testing.T) (*settings.Schema[editorPrefs], editorFields) {
	t.Helper()
	fields := editorFields{
		theme:    settings.Define("theme", func(p *editorPrefs) *string { return &p.Theme }, settings.Fixed("dark")),
		fontSize: settings.Define("font_size", func(p *editorPrefs) *int { return &p.FontSize }, settings.Fixed(12)),
		lang:     settings.Define("lang", func(p *editorPrefs) *string { return &p.Lang }, settings.FromFunc(func() string { return "en" })),
		recent:   settings.Define("recent", func(p *editorPrefs) *[]string { return &p.Recent }, settings.TypeDefault[[]string]()),
	}
	schema, err := settings.NewSchema([]settings.FieldSpec[editorPrefs]{
		fields.theme, fields.fontSize, fields.lang, fields.recent,
	}, settings.WithName("editor"))
	require.NoError(t, err)
	return schema, fields
}

func TestSessionSaveCycle(t *testing.T) {
	ctx := context.Background()
	schema, fields := newEditorSchema(t)
	backend := store.NewMemoryStore(testOptions()...)
	capture := &activity.CaptureHook{}
	ref := userRef(t, "42")

	session, err := store.Open(ctx, backend, schema, ref, store.WithActivity(capture), store.WithActor("actor-1", "tenant-1"))
	require.NoError(t, err)
	assert.True(t, session.Diagnostics().OK())
	assert.Nil(t, session.Diagnostics().Value)
	assert.Equal(t, editorPrefs{Theme: "dark", FontSize: 12, Lang: "en"}, session.Value())
	assert.Empty(t, session.Meta().ETag)

	// Nothing stored: every default is pending.
	changes, err := session.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"theme", "font_size", "lang", "recent"}, changes.Keys())
	assert.Equal(t, "v1", session.Meta().ETag)

	changes, err = session.Save(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes, "a clean record writes nothing")

	require.NoError(t, session.With(func(rec *settings.Record[editorPrefs]) error {
		settings.Set(rec, fields.theme, "light")
		settings.Update(rec, fields.recent, func(files *[]string) {
			*files = append(*files, "main.go")
		})
		return nil
	}))
	changes, err = session.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": `"light"`, "recent": `["main.go"]`}, changes.Map())
	assert.Equal(t, "v2", session.Meta().ETag)

	snapshot, _, _, err := backend.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"theme":     `"light"`,
		"font_size": "12",
		"lang":      `"en"`,
		"recent":    `["main.go"]`,
	}, snapshot)

	assert.Equal(t, []string{activity.VerbSettingsLoaded, activity.VerbSettingsSaved, activity.VerbSettingsSaved}, capture.Verbs())
	last, ok := capture.Last()
	require.True(t, ok)
	assert.Equal(t, "user/42/editor", last.Ref)
	assert.Equal(t, "actor-1", last.ActorID)
	assert.Equal(t, "tenant-1", last.TenantID)
	assert.Equal(t, []string{"theme", "recent"}, last.Keys)
	assert.Equal(t, "v2", last.Scope.ETag)
}

func TestSessionReopenIsClean(t *testing.T) {
	ctx := context.Background()
	schema, _ := newEditorSchema(t)
	backend := store.NewMemoryStore()
	ref := userRef(t, "42")

	first, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)
	_, err = first.Save(ctx)
	require.NoError(t, err)

	second, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)
	require.NoError(t, second.With(func(rec *settings.Record[editorPrefs]) error {
		assert.Empty(t, rec.DirtyKeys())
		return nil
	}))
	assert.Equal(t, first.Value(), second.Value())
}

func TestSessionDetectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	schema, fields := newEditorSchema(t)
	backend := store.NewMemoryStore()
	ref := userRef(t, "42")

	seed, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)
	_, err = seed.Save(ctx)
	require.NoError(t, err)

	a, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)
	b, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)

	require.NoError(t, a.With(func(rec *settings.Record[editorPrefs]) error {
		settings.Set(rec, fields.lang, "fr")
		return nil
	}))
	require.NoError(t, b.With(func(rec *settings.Record[editorPrefs]) error {
		settings.Set(rec, fields.lang, "de")
		return nil
	}))

	_, err = a.Save(ctx)
	require.NoError(t, err)
	_, err = b.Save(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrETagMismatch))
	require.NoError(t, b.With(func(rec *settings.Record[editorPrefs]) error {
		assert.True(t, rec.IsDirty("lang"), "a rejected save keeps the change pending")
		return nil
	}))

	require.NoError(t, b.Reload(ctx))
	assert.Equal(t, "fr", b.Value().Lang)
}

func TestSessionFirstSaveDetectsConcurrentCreator(t *testing.T) {
	ctx := context.Background()
	schema, fields := newEditorSchema(t)
	backend := store.NewMemoryStore()
	ref := userRef(t, "42")

	a, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)
	b, err := store.Open(ctx, backend, schema, ref)
	require.NoError(t, err)

	require.NoError(t, a.With(func(rec *settings.Record[editorPrefs]) error {
		settings.Set(rec, fields.lang, "fr")
		return nil
	}))
	_, err = a.Save(ctx)
	require.NoError(t, err)

	_, err = b.Save(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrETagMismatch))

	snapshot, meta, ok, err := backend.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"fr"`, snapshot["lang"])
	assert.Equal(t, "v1", meta.ETag)

	require.NoError(t, b.Reload(ctx))
	assert.Equal(t, "fr", b.Value().Lang)
	_, err = b.Save(ctx)
	require.NoError(t, err, "nothing pending after reload")
}

func TestSessionFallbackScopes(t *testing.T) {
	ctx := context.Background()
	schema, fields := newEditorSchema(t)
	backend := store.NewMemoryStore()
	system, err := store.StandardScope("system", "")
	require.NoError(t, err)
	_, err = backend.Save(ctx, store.Ref{Domain: "editor", Scope: system}, []settings.Change{
		{Key: "theme", Value: `"solarized"`},
		{Key: "font_size", Value: "14"},
	}, store.Meta{})
	require.NoError(t, err)

	ref := userRef(t, "42")
	session, err := store.Open(ctx, backend, schema, ref, store.WithFallbackScopes(system))
	require.NoError(t, err)
	assert.Equal(t, "solarized", session.Value().Theme)
	assert.Equal(t, 14, session.Value().FontSize)

	require.NoError(t, session.With(func(rec *settings.Record[editorPrefs]) error {
		assert.Equal(t, []string{"lang", "recent"}, rec.DirtyKeys(), "inherited values are not pending")
		settings.Set(rec, fields.theme, "light")
		return nil
	}))
	_, err = session.Save(ctx)
	require.NoError(t, err)

	userSnapshot, _, _, err := backend.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": `"light"`, "lang": `"en"`, "recent": "null"}, userSnapshot)

	systemSnapshot, _, _, err := backend.Load(ctx, store.Ref{Domain: "editor", Scope: system})
	require.NoError(t, err)
	assert.Equal(t, `"solarized"`, systemSnapshot["theme"], "saves only write the session scope")

	trace := session.Trace("theme")
	require.Len(t, trace.Layers, 2)
	assert.Equal(t, "user", trace.Layers[0].Scope.Name)
	assert.Equal(t, `"light"`, trace.Layers[0].Value)
	assert.Equal(t, "system", trace.Layers[1].Scope.Name)
	assert.True(t, trace.Layers[0].Effective)
	assert.False(t, trace.Layers[1].Effective)

	resolution := session.Resolution()
	assert.Equal(t, []string{"theme"}, resolution.Shadowed("system"))
	source, ok := resolution.Source("font_size")
	require.True(t, ok)
	assert.Equal(t, "system", source.Name)
	resolution.Layers[0].Snapshot["theme"] = `"changed"`
	assert.Equal(t, "light", session.Value().Theme)
	assert.Equal(t, `"light"`, session.Trace("theme").Layers[0].Value, "Resolution returns a copy")

	require.NoError(t, session.Reset(ctx, "theme"))
	assert.Equal(t, "solarized", session.Value().Theme)
	assert.Equal(t, "en", session.Value().Lang)
}

func TestSessionResetWholeSnapshot(t *testing.T) {
	ctx := context.Background()
	schema, fields := newEditorSchema(t)
	backend := store.NewMemoryStore()
	capture := &activity.CaptureHook{}
	ref := userRef(t, "42")

	session, err := store.Open(ctx, backend, schema, ref, store.WithActivity(capture))
	require.NoError(t, err)
	require.NoError(t, session.With(func(rec *settings.Record[editorPrefs]) error {
		settings.Set(rec, fields.fontSize, 20)
		return nil
	}))
	_, err = session.Save(ctx)
	require.NoError(t, err)

	require.NoError(t, session.Reset(ctx))
	assert.Equal(t, 12, session.Value().FontSize)
	assert.Empty(t, session.Meta().ETag)

	_, _, ok, err := backend.Load(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)

	last, ok := capture.Last()
	require.True(t, ok)
	assert.Equal(t, activity.VerbSettingsReset, last.Verb)
}

func TestSessionKeepsLoadDiagnostics(t *testing.T) {
	ctx := context.Background()
	schema, _ := newEditorSchema(t)
	backend := store.NewMemoryStore()
	capture := &activity.CaptureHook{}
	ref := userRef(t, "42")
	_, err := backend.Save(ctx, ref, []settings.Change{
		{Key: "font_size", Value: `"big"`},
		{Key: "legacy", Value: "1"},
		{Key: "theme", Value: `"light"`},
	}, store.Meta{})
	require.NoError(t, err)

	session, err := store.Open(ctx, backend, schema, ref, store.WithActivity(capture))
	require.NoError(t, err)

	diag := session.Diagnostics()
	assert.False(t, diag.OK())
	assert.Equal(t, []string{"legacy"}, diag.UnknownFields)
	require.Len(t, diag.DeserializationErrors, 1)
	assert.Equal(t, "font_size", diag.DeserializationErrors[0].Key)
	assert.Equal(t, 12, session.Value().FontSize)
	assert.Equal(t, "light", session.Value().Theme)

	loaded, ok := capture.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"legacy"}, loaded.Unknown)
	assert.Equal(t, []string{"font_size"}, loaded.Failed)
}

func TestSessionIgnoresHookFailures(t *testing.T) {
	ctx := context.Background()
	schema, _ := newEditorSchema(t)
	failing := activity.HookFunc(func(context.Context, activity.Event) error {
		return errors.New("sink down")
	})

	session, err := store.Open(ctx, store.NewMemoryStore(), schema, userRef(t, "1"), store.WithActivity(failing))
	require.NoError(t, err)
	_, err = session.Save(ctx)
	assert.NoError(t, err)
}

func TestOpenValidatesArguments(t *testing.T) {
	ctx := context.Background()
	schema, _ := newEditorSchema(t)

	_, err := store.Open[editorPrefs](ctx, nil, schema, userRef(t, "1"))
	assert.Error(t, err)
	_, err = store.Open[editorPrefs](ctx, store.NewMemoryStore(), nil, userRef(t, "1"))
	assert.Error(t, err)
	_, err = store.Open(ctx, store.NewMemoryStore(), schema, store.Ref{Domain: "editor"})
	assert.ErrorIs(t, err, store.ErrScopeNameRequired)
}
