package settings

import "sync"

// ProgramCache keeps compiled expression programs keyed by engine and
// expression. Share one cache between schemas to compile each expression
// once per process.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache sets the cache of the built-in expr evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *schemaConfig) {
		cfg.programCache = cache
	}
}

type programCache struct {
	programs sync.Map
}

// NewProgramCache returns an in-memory cache safe for concurrent loads.
func NewProgramCache() ProgramCache {
	return &programCache{}
}

func (c *programCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *programCache) Set(key string, value any) {
	c.programs.Store(key, value)
}
