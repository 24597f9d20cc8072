package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/internal/prefs"
	"github.com/goliatone/go-settings/pkg/store"
)

// workspace bundles what a command needs to act on one preferences ref.
type workspace struct {
	store   store.Store
	schema  *settings.Schema[prefs.Preferences]
	fields  prefs.Fields
	session *store.Session[prefs.Preferences]
	close   func() error
}

func (w *workspace) Close() error {
	if w == nil || w.close == nil {
		return nil
	}
	return w.close()
}

// openStore builds the backend selected by --store and --path.
func openStore(ctx context.Context, opts *RootOptions) (store.Store, func() error, error) {
	noop := func() error { return nil }
	switch opts.Store {
	case "memory":
		return store.NewMemoryStore(), noop, nil
	case "sqlite":
		path := opts.Path
		if path == "" {
			path = filepath.Join("settings", "settings.db")
		}
		db, err := store.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		format, err := store.ParseFormat(opts.Store)
		if err != nil {
			return nil, nil, err
		}
		root := opts.Path
		if root == "" {
			root = "settings"
		}
		fs, err := store.NewFileStore(root, format)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil
	}
}

// parseScope turns "name[:id]" into a standard scope.
func parseScope(spec string) (store.Scope, error) {
	name, id, _ := strings.Cut(strings.TrimSpace(spec), ":")
	return store.StandardScope(name, id)
}

func (o *RootOptions) ref() (store.Ref, error) {
	scope, err := store.StandardScope(o.Scope, o.ScopeID)
	if err != nil {
		return store.Ref{}, err
	}
	return store.Ref{Domain: o.Domain, Scope: scope}, nil
}

// openWorkspace loads the preferences of the configured ref.
func openWorkspace(ctx context.Context, opts *RootOptions) (*workspace, error) {
	ref, err := opts.ref()
	if err != nil {
		return nil, err
	}
	var fallbacks []store.Scope
	for _, spec := range opts.Fallbacks {
		scope, err := parseScope(spec)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", spec, err)
		}
		fallbacks = append(fallbacks, scope)
	}

	backend, closeStore, err := openStore(ctx, opts)
	if err != nil {
		return nil, err
	}
	schema, fields, err := prefs.NewSchema(settings.WithLogger(settings.SlogLogger(opts.logger)))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	sessionOpts := []store.SessionOption{
		store.WithSessionLogger(opts.logger),
		store.WithActivity(logHook(opts.logger)),
		store.WithActor(opts.Actor, ""),
	}
	if len(fallbacks) > 0 {
		sessionOpts = append(sessionOpts, store.WithFallbackScopes(fallbacks...))
	}
	session, err := store.Open(ctx, backend, schema, ref, sessionOpts...)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	return &workspace{
		store:   backend,
		schema:  schema,
		fields:  fields,
		session: session,
		close:   closeStore,
	}, nil
}
