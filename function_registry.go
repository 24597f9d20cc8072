package settings

import (
	"fmt"
	"sort"
	"sync"
	"unicode"
)

// Function is a host function callable from default expressions.
type Function func(args ...any) (any, error)

// names bound by every engine; functions cannot shadow them.
var reservedNames = map[string]struct{}{"now": {}, "args": {}, "call": {}}

// FunctionRegistry holds the host functions of a schema's expressions. Names
// are case-sensitive identifiers.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: make(map[string]Function)}
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("settings: function %q is nil", name)
	}
	if !isIdentifier(name) {
		return fmt.Errorf("settings: function name %q is not an identifier", name)
	}
	if _, reserved := reservedNames[name]; reserved {
		return fmt.Errorf("settings: function name %q is reserved", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, exists := r.functions[name]; exists {
		return fmt.Errorf("settings: function %q already registered", name)
	}
	r.functions[name] = fn
	return nil
}

// Lookup returns the function registered under name.
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("settings: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone copies the registry so later registrations do not leak into
// evaluators built from it.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for name, fn := range r.functions {
		clone.functions[name] = fn
	}
	return clone
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

// WithFunctionRegistry exposes the functions of registry to the schema's
// default expressions when the built-in expr evaluator is used.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *schemaConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers one function for the schema's default
// expressions. An invalid registration makes NewSchema fail.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *schemaConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}
