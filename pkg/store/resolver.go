package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/goliatone/go-settings/layering"
)

// Layer is one stored snapshot that took part in a resolution.
type Layer struct {
	Scope    Scope             `json:"scope"`
	Snapshot map[string]string `json:"snapshot"`
	Meta     Meta              `json:"meta"`
}

// Trace captures, for one key, how every resolved layer contributed to the
// effective value.
type Trace struct {
	Key    string       `json:"key"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a specific scope contributed to a traced key.
type Provenance struct {
	Scope      Scope  `json:"scope"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Key        string `json:"key"`
	Value      string `json:"value,omitempty"`
	Found      bool   `json:"found"`
	Effective  bool   `json:"effective"`
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Resolution is the flat snapshot produced by merging scoped layers. Layers
// are ordered strongest first; scopes with nothing stored are absent.
type Resolution struct {
	Domain   string
	Snapshot map[string]string
	Layers   []Layer

	winners map[string]int
}

// merge rebuilds Snapshot from Layers.
func (r *Resolution) merge() {
	r.Snapshot, r.winners = layering.MergeWithWinners(r.snapshots()...)
}

func (r Resolution) snapshots() []map[string]string {
	out := make([]map[string]string, len(r.Layers))
	for i, layer := range r.Layers {
		out[i] = layer.Snapshot
	}
	return out
}

// Trace reports every layer's contribution to key, strongest first.
func (r Resolution) Trace(key string) Trace {
	winner, won := r.winners[key]
	trace := Trace{Key: key, Layers: make([]Provenance, 0, len(r.Layers))}
	for i, layer := range r.Layers {
		value, ok := layer.Snapshot[key]
		trace.Layers = append(trace.Layers, Provenance{
			Scope:      layer.Scope,
			SnapshotID: layer.Meta.SnapshotID,
			Key:        key,
			Value:      value,
			Found:      ok,
			Effective:  won && winner == i,
		})
	}
	return trace
}

// Source returns the scope whose value won key.
func (r Resolution) Source(key string) (Scope, bool) {
	idx, ok := r.winners[key]
	if !ok || idx >= len(r.Layers) {
		return Scope{}, false
	}
	return r.Layers[idx].Scope, true
}

// Layer returns the resolved layer of the named scope.
func (r Resolution) Layer(name string) (Layer, bool) {
	if idx := r.layerIndex(name); idx >= 0 {
		return r.Layers[idx], true
	}
	return Layer{}, false
}

// Shadowed returns, sorted, the keys stored in the named scope that a
// stronger scope overrides.
func (r Resolution) Shadowed(name string) []string {
	return layering.Shadowed(r.layerIndex(name), r.snapshots()...)
}

func (r Resolution) layerIndex(name string) int {
	for i, layer := range r.Layers {
		if layer.Scope.Name == name {
			return i
		}
	}
	return -1
}

// Resolver loads one domain across several scopes and merges the stored
// snapshots, the strongest scope winning each key.
type Resolver struct {
	Store Store
}

// Resolve loads every scope and merges the snapshots that exist. Scopes must
// have unique names and distinct priorities. When no scope has anything
// stored the resolution holds an empty snapshot.
func (r Resolver) Resolve(ctx context.Context, domain string, scopes ...Scope) (Resolution, error) {
	if r.Store == nil {
		return Resolution{}, fmt.Errorf("store: resolver store is required")
	}
	if domain == "" {
		return Resolution{}, fmt.Errorf("store: domain is required")
	}
	if len(scopes) == 0 {
		return Resolution{}, fmt.Errorf("store: at least one scope is required")
	}
	ordered, err := orderScopes(scopes)
	if err != nil {
		return Resolution{}, err
	}

	resolution := Resolution{Domain: domain}
	for _, scope := range ordered {
		snapshot, meta, ok, err := r.Store.Load(ctx, Ref{Domain: domain, Scope: scope})
		if err != nil {
			return Resolution{}, fmt.Errorf("store: load %q for scope %q: %w", domain, scope.Name, err)
		}
		if !ok {
			continue
		}
		resolution.Layers = append(resolution.Layers, Layer{Scope: scope, Snapshot: layering.Clone(snapshot), Meta: meta})
	}
	resolution.merge()
	return resolution, nil
}

// orderScopes validates scopes and sorts them strongest first.
func orderScopes(scopes []Scope) ([]Scope, error) {
	seen := make(map[string]struct{}, len(scopes))
	ordered := make([]Scope, len(scopes))
	for i, scope := range scopes {
		if scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seen[scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, scope.Name)
		}
		seen[scope.Name] = struct{}{}
		ordered[i] = scope
	}

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Priority == ordered[j].Priority {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].Priority > ordered[j].Priority
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Priority <= ordered[i].Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, ordered[i].Priority)
		}
	}
	return ordered, nil
}
