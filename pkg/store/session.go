package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/layering"
	"github.com/goliatone/go-settings/pkg/activity"
)

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	fallbacks []Scope
	hooks     activity.Hooks
	activity  activity.Config
	logger    *slog.Logger
}

// WithFallbackScopes resolves keys missing from the session scope through
// weaker scopes (for example tenant and system under a user scope). Saves
// still write to the session scope only.
func WithFallbackScopes(scopes ...Scope) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.fallbacks = append(cfg.fallbacks, scopes...)
	}
}

// WithActivity registers hooks notified of loads, saves and resets.
func WithActivity(hooks ...activity.ActivityHook) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithActor stamps emitted activity events with the acting user and tenant.
func WithActor(actorID, tenantID string) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.activity.ActorID = actorID
		cfg.activity.TenantID = tenantID
	}
}

// WithSessionLogger routes session logs (activity failures, reloads) to
// logger.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.logger = logger
	}
}

// Session ties one stored ref to one loaded record. All access to the record
// goes through the session lock, so a Session may be shared between
// goroutines.
type Session[R any] struct {
	mu         sync.Mutex
	store      Store
	schema     *settings.Schema[R]
	ref        Ref
	id         string
	cfg        sessionConfig
	emitter    *activity.Emitter
	record     *settings.Record[R]
	result     settings.LoadResult[R]
	meta       Meta
	resolution Resolution
}

// Open loads ref from store into a new record of schema.
func Open[R any](ctx context.Context, store Store, schema *settings.Schema[R], ref Ref, opts ...SessionOption) (*Session[R], error) {
	if store == nil {
		return nil, fmt.Errorf("store: session store is required")
	}
	if schema == nil {
		return nil, fmt.Errorf("store: session schema is required")
	}
	id, err := ref.Identifier()
	if err != nil {
		return nil, err
	}

	cfg := sessionConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	cfg.activity.Enabled = len(cfg.hooks) > 0

	s := &Session[R]{
		store:   store,
		schema:  schema,
		ref:     ref,
		id:      id,
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.hooks, cfg.activity),
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.emit(ctx, activity.BuildSettingsLoadedEvent(s.loadedEvent()))
	return s, nil
}

func (s *Session[R]) load(ctx context.Context) error {
	var (
		snapshot map[string]string
		meta     Meta
	)
	if len(s.cfg.fallbacks) > 0 {
		scopes := append([]Scope{s.ref.Scope}, s.cfg.fallbacks...)
		resolution, err := Resolver{Store: s.store}.Resolve(ctx, s.ref.Domain, scopes...)
		if err != nil {
			return err
		}
		if layer, ok := resolution.Layer(s.ref.Scope.Name); ok {
			meta = layer.Meta
		}
		snapshot = resolution.Snapshot
		s.resolution = resolution
	} else {
		stored, storedMeta, ok, err := s.store.Load(ctx, s.ref)
		if err != nil {
			return fmt.Errorf("store: load %s: %w", s.id, err)
		}
		s.resolution = Resolution{Domain: s.ref.Domain}
		if ok {
			s.resolution.Layers = []Layer{{Scope: s.ref.Scope, Snapshot: stored, Meta: storedMeta}}
		}
		s.resolution.merge()
		snapshot, meta = s.resolution.Snapshot, storedMeta
	}

	result := s.schema.Load(snapshot)
	s.record = result.Value
	s.result = result
	s.meta = meta
	if !result.OK() {
		s.cfg.logger.Warn("settings loaded with diagnostics",
			slog.String("ref", s.id),
			slog.Any("unknown_fields", result.UnknownFields),
			slog.Int("decode_errors", len(result.DeserializationErrors)),
			slog.Int("default_errors", len(result.DefaultErrors)),
		)
	}
	return nil
}

// Ref returns the ref the session reads and writes.
func (s *Session[R]) Ref() Ref {
	return s.ref
}

// With runs fn against the record while holding the session lock. fn must not
// keep the record after it returns.
func (s *Session[R]) With(fn func(*settings.Record[R]) error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.record)
}

// Value returns a shallow copy of the current record value.
func (s *Session[R]) Value() R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Value()
}

// Meta returns the metadata of the stored snapshot of the session scope.
func (s *Session[R]) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMeta(s.meta)
}

// Diagnostics returns the load diagnostics of the latest load. Value is nil;
// use With to reach the record.
func (s *Session[R]) Diagnostics() settings.LoadResult[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.result
	out.Value = nil
	return out
}

// Trace reports how the stored layers contributed to key.
func (s *Session[R]) Trace(key string) Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolution.Trace(key)
}

// Resolution returns a copy of the layers behind the loaded record.
func (s *Session[R]) Resolution() Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.resolution
	out.Layers = make([]Layer, len(s.resolution.Layers))
	for i, layer := range s.resolution.Layers {
		out.Layers[i] = Layer{Scope: layer.Scope, Snapshot: layering.Clone(layer.Snapshot), Meta: cloneMeta(layer.Meta)}
	}
	out.merge()
	return out
}

// Save persists every pending change of the record and clears the dirty set.
// The write is conditional on the ETag seen at load time, or on nothing being
// stored when the load found nothing; a concurrent writer makes it fail with
// ErrETagMismatch and leaves the record dirty. It returns the changes that
// were written.
func (s *Session[R]) Save(ctx context.Context) (settings.Changes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changes, err := s.record.Changes()
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, nil
	}
	etag := s.meta.ETag
	if etag == "" {
		etag = ETagNone
	}
	meta, err := s.store.Save(ctx, s.ref, changes, Meta{ETag: etag})
	if err != nil {
		return nil, fmt.Errorf("store: save %s: %w", s.id, err)
	}
	s.record.MarkSaved()
	s.meta = meta
	s.resolution = s.resolution.withSaved(s.ref.Scope, changes, meta)

	event := s.event(changes.Keys())
	event.Changes = changes.Map()
	s.emit(ctx, activity.BuildSettingsSavedEvent(event))
	return changes, nil
}

// Reload discards the record, including unsaved changes, and loads the
// stored snapshot again.
func (s *Session[R]) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}
	s.emit(ctx, activity.BuildSettingsLoadedEvent(s.loadedEvent()))
	return nil
}

// Reset removes keys (or the whole snapshot when none are given) from the
// session scope and reloads, so the removed keys fall back to weaker scopes or
// their defaults.
func (s *Session[R]) Reset(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, s.ref, keys...); err != nil {
		return fmt.Errorf("store: reset %s: %w", s.id, err)
	}
	if err := s.load(ctx); err != nil {
		return err
	}
	s.emit(ctx, activity.BuildSettingsResetEvent(s.event(keys)))
	return nil
}

func (s *Session[R]) loadedEvent() activity.Event {
	event := s.event(s.record.DirtyKeys())
	event.Unknown = s.result.UnknownFields
	for _, fe := range s.result.DeserializationErrors {
		event.Failed = append(event.Failed, fe.Key)
	}
	for _, fe := range s.result.DefaultErrors {
		event.Failed = append(event.Failed, fe.Key)
	}
	return event
}

func (s *Session[R]) event(keys []string) activity.Event {
	return activity.Event{
		Domain: s.ref.Domain,
		Ref:    s.id,
		Keys:   keys,
		Scope: activity.ScopeContext{
			Name:       s.ref.Scope.Name,
			Label:      s.ref.Scope.Label,
			Priority:   s.ref.Scope.Priority,
			ID:         s.ref.Scope.ID,
			SnapshotID: s.meta.SnapshotID,
			ETag:       s.meta.ETag,
		},
	}
}

func (s *Session[R]) emit(ctx context.Context, event activity.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.cfg.logger.Warn("settings activity hook failed",
			slog.String("verb", event.Verb),
			slog.String("ref", s.id),
			slog.Any("error", err),
		)
	}
}

// withSaved folds a successful save into the layer of scope.
func (r Resolution) withSaved(scope Scope, changes settings.Changes, meta Meta) Resolution {
	out := Resolution{Domain: r.Domain}
	saved := false
	for _, layer := range r.Layers {
		if layer.Scope.Name == scope.Name {
			layer = Layer{Scope: layer.Scope, Snapshot: applyChanges(layer.Snapshot, changes), Meta: meta}
			saved = true
		}
		out.Layers = append(out.Layers, layer)
	}
	if !saved {
		out.Layers = append(out.Layers, Layer{Scope: scope, Snapshot: applyChanges(nil, changes), Meta: meta})
		sort.SliceStable(out.Layers, func(i, j int) bool {
			return out.Layers[i].Scope.Priority > out.Layers[j].Scope.Priority
		})
	}
	out.merge()
	return out
}
