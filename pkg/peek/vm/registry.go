package vm

import (
	"context"
	"sort"
	"sync"
)

// Callable is anything a function-call statement can invoke.
type Callable interface {
	Call(ctx context.Context, host Host, args []any, kwargs *Dict) (any, error)
}

// Metadata describes a callable for help output.
type Metadata struct {
	Description string
	Options     *Dict // option name to default value, in display order
}

// Describer is implemented by callables that carry help metadata.
type Describer interface {
	Describe() Metadata
}

// FuncType is the signature of a plain function callable.
type FuncType func(ctx context.Context, host Host, args []any, kwargs *Dict) (any, error)

// Builtin adapts a function and its metadata to Callable.
type Builtin struct {
	Fn          FuncType
	Description string
	Options     *Dict
}

func (b *Builtin) Call(ctx context.Context, host Host, args []any, kwargs *Dict) (any, error) {
	return b.Fn(ctx, host, args, kwargs)
}

func (b *Builtin) Describe() Metadata {
	return Metadata{Description: b.Description, Options: b.Options}
}

// Registry resolves names over two tiers: built-in names first, then
// names exported by extensions. Both tiers may be replaced while a
// session runs, so access is synchronized.
type Registry struct {
	mu         sync.RWMutex
	builtins   map[string]any
	extensions map[string]any
}

// NewRegistry creates a registry with the given built-in names.
func NewRegistry(builtins map[string]any) *Registry {
	r := &Registry{
		builtins:   make(map[string]any, len(builtins)),
		extensions: make(map[string]any),
	}
	for name, v := range builtins {
		r.builtins[name] = v
	}
	return r
}

// Resolve looks a name up in the built-in tier, then the extension tier.
func (r *Registry) Resolve(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if v, ok := r.builtins[name]; ok {
		return v, true
	}
	v, ok := r.extensions[name]
	return v, ok
}

// Define adds or replaces a built-in name.
func (r *Registry) Define(name string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[name] = v
}

// SetExtensions replaces the whole extension tier.
func (r *Registry) SetExtensions(exports map[string]any) {
	next := make(map[string]any, len(exports))
	for name, v := range exports {
		next[name] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions = next
}

// Names returns every resolvable name, sorted. A name present in both
// tiers appears once.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.builtins)+len(r.extensions))
	for name := range r.builtins {
		seen[name] = true
	}
	for name := range r.extensions {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns the callable names, sorted.
func (r *Registry) Functions() []string {
	var names []string
	for _, name := range r.Names() {
		if v, ok := r.Resolve(name); ok {
			if _, ok := v.(Callable); ok {
				names = append(names, name)
			}
		}
	}
	return names
}

// NameOf finds the name a callable is registered under.
func (r *Registry) NameOf(c Callable) (string, bool) {
	for _, name := range r.Names() {
		if v, ok := r.Resolve(name); ok && v == c {
			return name, true
		}
	}
	return "", false
}
