package core

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Registry maps types to handlers. It is read-mostly: lookups take a read
// lock and cache their resolution; every mutation drops the cache.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[reflect.Type]Handler
	resolved    map[reflect.Type]match
	builtins    []Handler
	initialized bool
	logger      *zap.Logger
}

// match is a resolved lookup. embed is the field index path of the embedded
// ancestor the handler was found on; addr asks for that field's address and
// elem for the value an embedded pointer points to.
type match struct {
	handler Handler
	deref   bool
	embed   []int
	addr    bool
	elem    bool
}

func (m match) found() bool {
	return m.handler != nil
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBuiltins supplies the handlers installed by Initialize.
func WithBuiltins(handlers ...Handler) RegistryOption {
	return func(r *Registry) {
		r.builtins = append(r.builtins, handlers...)
	}
}

// WithRegistryLogger sets the logger used for registration diagnostics.
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry constructs an empty registry. Built-ins are installed lazily by Initialize.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		handlers: make(map[reflect.Type]Handler),
		resolved: make(map[reflect.Type]match),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize installs the built-in handlers once. Later calls are no-ops until
// Clear. Built-ins never replace a handler registered earlier for the same type.
func (r *Registry) Initialize() {
	r.mu.RLock()
	done := r.initialized
	r.mu.RUnlock()
	if done {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.initialized {
		return
	}
	for _, h := range r.builtins {
		if h == nil || h.Type() == nil {
			continue
		}
		if _, exists := r.handlers[h.Type()]; exists {
			continue
		}
		r.handlers[h.Type()] = h
	}
	r.initialized = true
	clear(r.resolved)
	r.logger.Debug("handler registry initialized", zap.Int("handlers", len(r.handlers)))
}

// Register installs h for its exact type. An existing handler for the same
// type is replaced.
func (r *Registry) Register(h Handler) error {
	if h == nil || h.Type() == nil {
		return ErrNilHandler
	}
	t := h.Type()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		r.logger.Warn("replacing registered handler", zap.Stringer("type", t))
	}
	r.handlers[t] = h
	clear(r.resolved)
	return nil
}

// Unregister removes the handler for exactly t and reports whether one existed.
func (r *Registry) Unregister(t reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; !exists {
		return false
	}
	delete(r.handlers, t)
	clear(r.resolved)
	return true
}

// Clear empties the registry and resets the initialized flag.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handlers)
	clear(r.resolved)
	r.initialized = false
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []reflect.Type {
	r.mu.RLock()
	types := lo.Keys(r.handlers)
	r.mu.RUnlock()
	slices.SortFunc(types, func(a, b reflect.Type) int {
		return strings.Compare(a.String(), b.String())
	})
	return types
}

// Lookup returns the handler serving t, if any.
func (r *Registry) Lookup(t reflect.Type) (Handler, bool) {
	m := r.resolve(t)
	return m.handler, m.found()
}

// interfaces returns the registered interface types, used for capability reports.
func (r *Registry) interfaces() []reflect.Type {
	return lo.Filter(r.Types(), func(t reflect.Type, _ int) bool {
		return t.Kind() == reflect.Interface
	})
}

func (r *Registry) resolve(t reflect.Type) match {
	if t == nil {
		return match{}
	}

	r.mu.RLock()
	if m, ok := r.resolved[t]; ok {
		r.mu.RUnlock()
		return m
	}
	m := r.resolveLocked(t)
	r.mu.RUnlock()

	r.mu.Lock()
	r.resolved[t] = m
	r.mu.Unlock()
	return m
}

// resolveLocked applies the lookup order: exact type, pointee type, nearest
// embedded ancestor, then the most specific implemented interface.
func (r *Registry) resolveLocked(t reflect.Type) match {
	if h, ok := r.handlers[t]; ok {
		return match{handler: h}
	}

	base := t
	deref := false
	if t.Kind() == reflect.Pointer {
		base = t.Elem()
		deref = true
		if h, ok := r.handlers[base]; ok {
			return match{handler: h, deref: true}
		}
	}

	if base.Kind() == reflect.Struct {
		if m, ok := r.embeddedMatch(base); ok {
			m.deref = deref
			return m
		}
	}

	var candidates []reflect.Type
	for key := range r.handlers {
		if key.Kind() != reflect.Interface {
			continue
		}
		if t.Implements(key) {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return match{}
	}
	slices.SortFunc(candidates, func(a, b reflect.Type) int {
		if a.NumMethod() != b.NumMethod() {
			return b.NumMethod() - a.NumMethod()
		}
		return strings.Compare(a.String(), b.String())
	})
	return match{handler: r.handlers[candidates[0]]}
}

// embeddedMatch walks embedded struct fields breadth first so the ancestor
// closest to t wins; fields at the same distance are tried in declaration order.
func (r *Registry) embeddedMatch(t reflect.Type) (match, bool) {
	type node struct {
		typ   reflect.Type
		index []int
	}
	queue := []node{{typ: t}}
	visited := map[reflect.Type]struct{}{t: {}}

	for len(queue) > 0 {
		next := make([]node, 0)
		for _, n := range queue {
			for i := 0; i < n.typ.NumField(); i++ {
				f := n.typ.Field(i)
				if !f.Anonymous {
					continue
				}
				ft := f.Type
				elem := ft
				if elem.Kind() == reflect.Pointer {
					elem = elem.Elem()
				}
				if elem.Kind() != reflect.Struct {
					continue
				}
				index := append(slices.Clone(n.index), i)
				if h, ok := r.handlers[ft]; ok {
					return match{handler: h, embed: index}, true
				}
				if ft.Kind() != reflect.Pointer {
					if h, ok := r.handlers[reflect.PointerTo(ft)]; ok {
						return match{handler: h, embed: index, addr: true}, true
					}
				} else if h, ok := r.handlers[elem]; ok {
					return match{handler: h, embed: index, elem: true}, true
				}
				if _, seen := visited[elem]; !seen {
					visited[elem] = struct{}{}
					next = append(next, node{typ: elem, index: index})
				}
			}
		}
		queue = next
	}
	return match{}, false
}
