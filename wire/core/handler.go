package core

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Handler converts one object of its declared type into a wire mapping.
//
// Handlers are stateless and owned by a Registry. Nested values must be pushed
// back through the Walker so the engine keeps tracking references and budgets.
type Handler interface {
	Type() reflect.Type
	Serialize(w Walker, obj any, depth Depth) (*Object, error)
}

// Walker is the engine surface available to a handler while it runs.
type Walker interface {
	// Depth returns the depth the handler was invoked at.
	Depth() Depth
	// Path returns the path of the value being handled.
	Path() string
	// Member processes a nested value under the given member name and returns
	// its wire form (or a back-reference marker when it was already visited).
	Member(name string, value any) any
	// Members appends the reflective member dump of obj to dst.
	Members(dst *Object, obj any)
	// Reference renders a short reference (type, identity, display name).
	Reference(value any) any
}

type handlerFunc[T any] struct {
	typ reflect.Type
	fn  func(Walker, T, Depth) (*Object, error)
}

// HandlerFor adapts a typed function into a Handler keyed by T. When T is an
// interface type the handler serves every type implementing it.
func HandlerFor[T any](fn func(w Walker, v T, depth Depth) (*Object, error)) Handler {
	return &handlerFunc[T]{typ: reflect.TypeFor[T](), fn: fn}
}

func (h *handlerFunc[T]) Type() reflect.Type {
	return h.typ
}

func (h *handlerFunc[T]) Serialize(w Walker, obj any, depth Depth) (*Object, error) {
	v, ok := obj.(T)
	if !ok {
		return nil, errors.Newf("handler for %s cannot serialize %T", h.typ, obj)
	}
	return h.fn(w, v, depth)
}
