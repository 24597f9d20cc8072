package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	settings "github.com/goliatone/go-settings"
)

var (
	// ErrETagMismatch indicates a Save based on a stale snapshot.
	ErrETagMismatch = errors.New("store: etag mismatch")
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("scope: name must be provided")
	// ErrDuplicateScopeName indicates a resolver received the same scope twice.
	ErrDuplicateScopeName = errors.New("scope: names must be unique")
	// ErrPriorityOrder indicates duplicate scope priorities.
	ErrPriorityOrder = errors.New("scope: priorities must be strictly ordered")
	// ErrStoreClosed is returned by stores used after Close.
	ErrStoreClosed = errors.New("store: closed")
)

// ETagNone as the requested ETag makes Save succeed only when nothing is
// stored under the ref yet.
const ETagNone = "none"

const (
	// Recommended priorities for common layering patterns. Higher numbers win.
	ScopePrioritySystem = 100
	ScopePriorityTenant = 200
	ScopePriorityOrg    = 300
	ScopePriorityTeam   = 400
	ScopePriorityUser   = 500
)

// Scope models a named precedence bucket (system, tenant, user, etc.). Higher
// priority values represent stronger layers. ID selects the tenant, org, team
// or user the snapshot belongs to.
type Scope struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Priority int    `json:"priority"`
	ID       string `json:"id,omitempty"`
}

// ScopeOption configures a Scope on creation.
type ScopeOption func(*Scope)

// WithScopeLabel sets a human-friendly label on the scope.
func WithScopeLabel(label string) ScopeOption {
	return func(s *Scope) {
		s.Label = label
	}
}

// WithScopeID sets the owner id of a tenant, org, team or user scope.
func WithScopeID(id string) ScopeOption {
	return func(s *Scope) {
		s.ID = id
	}
}

// NewScope builds a Scope. Validation is deferred to Ref.Identifier and the
// Resolver so callers can assemble scopes before deciding precedence.
func NewScope(name string, priority int, opts ...ScopeOption) Scope {
	scope := Scope{Name: name, Priority: priority}
	for _, opt := range opts {
		if opt != nil {
			opt(&scope)
		}
	}
	return scope
}

// StandardScope returns one of the canonical system, tenant, org, team or
// user scopes with its recommended priority.
func StandardScope(name, id string) (Scope, error) {
	switch name {
	case "system":
		return NewScope("system", ScopePrioritySystem, WithScopeLabel("System Defaults")), nil
	case "tenant":
		return NewScope("tenant", ScopePriorityTenant, WithScopeLabel("Tenant"), WithScopeID(id)), nil
	case "org":
		return NewScope("org", ScopePriorityOrg, WithScopeLabel("Organization"), WithScopeID(id)), nil
	case "team":
		return NewScope("team", ScopePriorityTeam, WithScopeLabel("Team"), WithScopeID(id)), nil
	case "user":
		return NewScope("user", ScopePriorityUser, WithScopeLabel("User"), WithScopeID(id)), nil
	default:
		return Scope{}, fmt.Errorf("unsupported scope name %q", name)
	}
}

// Ref identifies one persisted snapshot for one settings domain.
type Ref struct {
	Domain string
	Scope  Scope
}

// Identifier returns the canonical storage key of the ref.
func (r Ref) Identifier() (string, error) {
	if r.Domain == "" {
		return "", fmt.Errorf("domain is required")
	}
	switch r.Scope.Name {
	case "":
		return "", ErrScopeNameRequired
	case "system":
		return fmt.Sprintf("system/%s", r.Domain), nil
	case "tenant", "org", "team", "user":
		if r.Scope.ID == "" {
			return "", fmt.Errorf("missing id for scope %q", r.Scope.Name)
		}
		if strings.Contains(r.Scope.ID, "/") {
			return "", fmt.Errorf("invalid id %q for scope %q", r.Scope.ID, r.Scope.Name)
		}
		return fmt.Sprintf("%s/%s/%s", r.Scope.Name, r.Scope.ID, r.Domain), nil
	default:
		return "", fmt.Errorf("unsupported scope name %q", r.Scope.Name)
	}
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty" toml:"snapshot_id,omitempty" msgpack:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty" toml:"etag,omitempty" msgpack:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty" toml:"updated_at,omitempty" msgpack:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty" toml:"extra,omitempty" msgpack:"extra,omitempty"`
}

// Store loads and saves the snapshot of a single ref. Implementations must be
// safe for concurrent use.
type Store interface {
	// Load returns the stored snapshot. ok is false when nothing is stored
	// under ref.
	Load(ctx context.Context, ref Ref) (snapshot map[string]string, meta Meta, ok bool, err error)
	// Save upserts changes into the snapshot of ref and returns the new
	// metadata. Keys not named in changes are kept.
	Save(ctx context.Context, ref Ref, changes []settings.Change, meta Meta) (Meta, error)
	// Delete removes keys from the snapshot of ref, or the whole snapshot
	// when no keys are given.
	Delete(ctx context.Context, ref Ref, keys ...string) error
}

// Option configures the stores of this package.
type Option func(*options)

type options struct {
	clock  func() time.Time
	nextID func() string
}

// WithClock overrides the time source used for Meta.UpdatedAt.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator overrides the SnapshotID generator.
func WithIDGenerator(next func() string) Option {
	return func(o *options) {
		if next != nil {
			o.nextID = next
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		clock:  func() time.Time { return time.Now().UTC() },
		nextID: NewSnapshotID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// NewSnapshotID returns a time-ordered UUIDv7 string.
func NewSnapshotID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// nextMeta validates the caller's ETag against the stored metadata and
// returns the metadata of the snapshot about to be written. An empty
// requested ETag is unconditional.
func (o options) nextMeta(stored Meta, exists bool, requested Meta) (Meta, error) {
	switch {
	case requested.ETag == "":
	case requested.ETag == ETagNone:
		if exists {
			return stored, fmt.Errorf("%w: expected nothing stored, got %q", ErrETagMismatch, stored.ETag)
		}
	case !exists:
		return stored, fmt.Errorf("%w: expected %q, nothing stored", ErrETagMismatch, requested.ETag)
	case stored.ETag != "" && requested.ETag != stored.ETag:
		return stored, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, requested.ETag, stored.ETag)
	}
	out := Meta{
		SnapshotID: o.nextID(),
		ETag:       nextETag(stored.ETag),
		UpdatedAt:  o.clock(),
		Extra:      cloneExtra(stored.Extra),
	}
	if requested.Extra != nil {
		out.Extra = cloneExtra(requested.Extra)
	}
	return out, nil
}

// nextETag bumps a "v<N>" tag. Tags in any other form restart at v1.
func nextETag(current string) string {
	if n, err := strconv.Atoi(strings.TrimPrefix(current, "v")); err == nil && strings.HasPrefix(current, "v") && n > 0 {
		return "v" + strconv.Itoa(n+1)
	}
	return "v1"
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = cloneExtra(meta.Extra)
	return out
}

func cloneExtra(extra map[string]string) map[string]string {
	if extra == nil {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func cloneSnapshot(snapshot map[string]string) map[string]string {
	out := make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	return out
}

func applyChanges(snapshot map[string]string, changes []settings.Change) map[string]string {
	out := cloneSnapshot(snapshot)
	for _, change := range changes {
		out[change.Key] = change.Value
	}
	return out
}
