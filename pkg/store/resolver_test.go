package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/store"
)

func seedLayers(t *testing.T, s store.Store) (system, tenant, user store.Scope) {
	t.Helper()
	ctx := context.Background()
	var err error
	system, err = store.StandardScope("system", "")
	require.NoError(t, err)
	tenant, err = store.StandardScope("tenant", "acme")
	require.NoError(t, err)
	user, err = store.StandardScope("user", "42")
	require.NoError(t, err)

	_, err = s.Save(ctx, store.Ref{Domain: "editor", Scope: system}, []settings.Change{
		{Key: "theme", Value: `"Dark"`},
		{Key: "lang", Value: `"en"`},
		{Key: "notify", Value: "true"},
	}, store.Meta{})
	require.NoError(t, err)
	_, err = s.Save(ctx, store.Ref{Domain: "editor", Scope: tenant}, []settings.Change{
		{Key: "lang", Value: `"de"`},
	}, store.Meta{})
	require.NoError(t, err)
	_, err = s.Save(ctx, store.Ref{Domain: "editor", Scope: user}, []settings.Change{
		{Key: "theme", Value: `"Light"`},
	}, store.Meta{})
	require.NoError(t, err)
	return system, tenant, user
}

func TestResolverMergesStrongestFirst(t *testing.T) {
	s := store.NewMemoryStore(testOptions()...)
	system, tenant, user := seedLayers(t, s)

	// Scope order in the call does not matter; priority does.
	resolution, err := store.Resolver{Store: s}.Resolve(context.Background(), "editor", system, user, tenant)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"theme":  `"Light"`,
		"lang":   `"de"`,
		"notify": "true",
	}, resolution.Snapshot)
	require.Len(t, resolution.Layers, 3)
	assert.Equal(t, "user", resolution.Layers[0].Scope.Name)
	assert.Equal(t, "tenant", resolution.Layers[1].Scope.Name)
	assert.Equal(t, "system", resolution.Layers[2].Scope.Name)

	source, ok := resolution.Source("lang")
	require.True(t, ok)
	assert.Equal(t, "tenant", source.Name)
	_, ok = resolution.Source("missing")
	assert.False(t, ok)

	layer, ok := resolution.Layer("user")
	require.True(t, ok)
	assert.Equal(t, "v1", layer.Meta.ETag)
}

func TestResolverTrace(t *testing.T) {
	s := store.NewMemoryStore(testOptions()...)
	system, tenant, user := seedLayers(t, s)

	resolution, err := store.Resolver{Store: s}.Resolve(context.Background(), "editor", user, tenant, system)
	require.NoError(t, err)

	trace := resolution.Trace("theme")
	assert.Equal(t, "theme", trace.Key)
	require.Len(t, trace.Layers, 3)
	assert.True(t, trace.Layers[0].Found)
	assert.Equal(t, `"Light"`, trace.Layers[0].Value)
	assert.False(t, trace.Layers[1].Found)
	assert.True(t, trace.Layers[2].Found)
	assert.Equal(t, `"Dark"`, trace.Layers[2].Value)
	assert.NotEmpty(t, trace.Layers[0].SnapshotID)
	assert.True(t, trace.Layers[0].Effective)
	assert.False(t, trace.Layers[2].Effective)
	assert.Empty(t, resolution.Trace("missing").Layers[0].Value)

	payload, err := trace.ToJSON()
	require.NoError(t, err)
	decoded, err := store.TraceFromJSON(payload)
	require.NoError(t, err)
	assert.Equal(t, trace, decoded)

	_, err = store.TraceFromJSON([]byte("{"))
	assert.Error(t, err)
}

func TestResolutionShadowed(t *testing.T) {
	s := store.NewMemoryStore()
	system, tenant, user := seedLayers(t, s)

	resolution, err := store.Resolver{Store: s}.Resolve(context.Background(), "editor", user, tenant, system)
	require.NoError(t, err)

	assert.Equal(t, []string{"lang", "theme"}, resolution.Shadowed("system"))
	assert.Empty(t, resolution.Shadowed("tenant"))
	assert.Empty(t, resolution.Shadowed("user"))
	assert.Empty(t, resolution.Shadowed("org"))
}

func TestResolverSkipsMissingLayers(t *testing.T) {
	s := store.NewMemoryStore()
	user, err := store.StandardScope("user", "1")
	require.NoError(t, err)

	resolution, err := store.Resolver{Store: s}.Resolve(context.Background(), "editor", user)
	require.NoError(t, err)
	assert.Empty(t, resolution.Layers)
	assert.NotNil(t, resolution.Snapshot)
	assert.Empty(t, resolution.Snapshot)
}

func TestResolverValidatesScopes(t *testing.T) {
	s := store.NewMemoryStore()
	resolver := store.Resolver{Store: s}
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "editor")
	assert.Error(t, err)

	_, err = resolver.Resolve(ctx, "", store.NewScope("system", 1))
	assert.Error(t, err)

	_, err = resolver.Resolve(ctx, "editor", store.NewScope("", 1))
	assert.True(t, errors.Is(err, store.ErrScopeNameRequired))

	_, err = resolver.Resolve(ctx, "editor", store.NewScope("system", 1), store.NewScope("system", 2))
	assert.True(t, errors.Is(err, store.ErrDuplicateScopeName))

	_, err = resolver.Resolve(ctx, "editor",
		store.NewScope("system", 100),
		store.NewScope("user", 100, store.WithScopeID("1")),
	)
	assert.True(t, errors.Is(err, store.ErrPriorityOrder))

	_, err = store.Resolver{}.Resolve(ctx, "editor", store.NewScope("system", 1))
	assert.Error(t, err)
}

func TestResolverDoesNotAliasStore(t *testing.T) {
	s := store.NewMemoryStore()
	system, _, _ := seedLayers(t, s)

	resolution, err := store.Resolver{Store: s}.Resolve(context.Background(), "editor", system)
	require.NoError(t, err)
	resolution.Snapshot["theme"] = `"Light"`

	snapshot, _, _, err := s.Load(context.Background(), store.Ref{Domain: "editor", Scope: system})
	require.NoError(t, err)
	assert.Equal(t, `"Dark"`, snapshot["theme"])
}
