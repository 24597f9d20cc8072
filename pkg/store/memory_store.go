package store

import (
	"context"
	"sync"

	settings "github.com/goliatone/go-settings"
)

// MemoryStore is an in-memory Store intended for tests, examples and the
// CLI's memory backend. It keys snapshots by Ref.Identifier().
type MemoryStore struct {
	mu      sync.RWMutex
	opts    options
	records map[string]memoryRecord
}

type memoryRecord struct {
	snapshot map[string]string
	meta     Meta
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts:    applyOptions(opts),
		records: map[string]memoryRecord{},
	}
}

func (s *MemoryStore) Load(ctx context.Context, ref Ref) (map[string]string, Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return cloneSnapshot(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(ctx context.Context, ref Ref, changes []settings.Change, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[key]
	next, err := s.opts.nextMeta(record.meta, exists, meta)
	if err != nil {
		return cloneMeta(record.meta), err
	}
	s.records[key] = memoryRecord{
		snapshot: applyChanges(record.snapshot, changes),
		meta:     next,
	}
	return cloneMeta(next), nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref Ref, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := ref.Identifier()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return nil
	}
	if len(keys) == 0 {
		delete(s.records, id)
		return nil
	}
	snapshot := cloneSnapshot(record.snapshot)
	for _, key := range keys {
		delete(snapshot, key)
	}
	record.snapshot = snapshot
	record.meta.ETag = nextETag(record.meta.ETag)
	record.meta.SnapshotID = s.opts.nextID()
	record.meta.UpdatedAt = s.opts.clock()
	s.records[id] = record
	return nil
}
