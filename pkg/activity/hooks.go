// Package activity fans settings lifecycle events out to audit hooks.
package activity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// Event is one settings lifecycle occurrence: a load, save or reset of the
// snapshot stored under Ref. IDs are plain strings so callers are not tied to
// a UUID type.
type Event struct {
	Verb     string
	ActorID  string
	TenantID string
	Channel  string
	Domain   string
	// Ref is the store identifier of the snapshot, e.g. "user/42/editor".
	Ref   string
	Scope ScopeContext
	// Keys lists the field keys the event is about: written keys for saves,
	// defaulted keys for loads, removed keys for resets.
	Keys []string
	// Changes holds the encoded values written by a save.
	Changes map[string]string
	// Unknown and Failed carry load diagnostics.
	Unknown []string
	Failed  []string
	// Metadata carries caller extras; it never overrides the fields above
	// in Fields.
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Valid reports whether event names a verb and the snapshot it refers to.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.Verb) != "" && strings.TrimSpace(e.Ref) != ""
}

// Notify forwards the event to all hooks, returning a joined error if any fail.
// Events failing Valid are dropped silently.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent trims identifiers, detaches slices and maps from the
// caller, sorts Unknown and stamps a missing OccurredAt. An empty Ref falls
// back to the domain.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.TrimSpace(event.Verb)
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	normalized.Domain = strings.TrimSpace(event.Domain)
	normalized.Ref = strings.TrimSpace(event.Ref)
	if normalized.Ref == "" {
		normalized.Ref = normalized.Domain
	}
	normalized.Keys = cloneStrings(event.Keys)
	normalized.Failed = cloneStrings(event.Failed)
	normalized.Unknown = cloneStrings(event.Unknown)
	sort.Strings(normalized.Unknown)
	if len(event.Changes) > 0 {
		normalized.Changes = make(map[string]string, len(event.Changes))
		for key, value := range event.Changes {
			normalized.Changes[key] = value
		}
	} else {
		normalized.Changes = nil
	}
	normalized.Metadata = cloneMap(event.Metadata)
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

// Fields flattens the event into a single map for sinks that store free-form
// data. Empty fields are omitted.
func (e Event) Fields() map[string]any {
	fields := cloneMap(e.Metadata)
	if fields == nil {
		fields = map[string]any{}
	}
	set := func(key string, value any, ok bool) {
		if ok {
			fields[key] = value
		}
	}
	set("domain", e.Domain, e.Domain != "")
	set("ref", e.Ref, e.Ref != "")
	set("keys", cloneStrings(e.Keys), len(e.Keys) > 0)
	set("unknown_fields", cloneStrings(e.Unknown), len(e.Unknown) > 0)
	set("failed_fields", cloneStrings(e.Failed), len(e.Failed) > 0)
	if len(e.Changes) > 0 {
		changes := make(map[string]string, len(e.Changes))
		for key, value := range e.Changes {
			changes[key] = value
		}
		fields["changes"] = changes
	}
	if e.Scope.Name != "" {
		fields["scope_name"] = e.Scope.Name
		fields["scope_priority"] = e.Scope.Priority
		set("scope_label", e.Scope.Label, e.Scope.Label != "")
		set("scope_id", e.Scope.ID, e.Scope.ID != "")
	}
	set("snapshot_id", e.Scope.SnapshotID, e.Scope.SnapshotID != "")
	set("etag", e.Scope.ETag, e.Scope.ETag != "")
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
