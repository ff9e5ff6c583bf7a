package core

import (
	"errors"
	"reflect"
	"testing"
)

type shape interface {
	Area() float64
}

type namedShape interface {
	shape
	Label() string
}

type unit struct {
	ID int64
}

type square struct {
	unit
	Side float64
}

func (s *square) Area() float64 { return s.Side * s.Side }

type labelledSquare struct {
	square
	Text string
}

func (s *labelledSquare) Label() string { return s.Text }

func staticHandler(t reflect.Type, label string) Handler {
	return &stubHandler{typ: t, label: label}
}

type stubHandler struct {
	typ   reflect.Type
	label string
}

func (h *stubHandler) Type() reflect.Type { return h.typ }

func (h *stubHandler) Serialize(Walker, any, Depth) (*Object, error) {
	return NewObject(1).Set("handler", h.label), nil
}

func labelOf(t *testing.T, h Handler) string {
	t.Helper()
	stub, ok := h.(*stubHandler)
	if !ok {
		t.Fatalf("unexpected handler type %T", h)
	}
	return stub.label
}

func TestRegistryExactMatchWins(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(staticHandler(reflect.TypeFor[*square](), "square")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := r.Register(staticHandler(reflect.TypeFor[shape](), "shape")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	h, ok := r.Lookup(reflect.TypeFor[*square]())
	if !ok || labelOf(t, h) != "square" {
		t.Fatalf("expected exact handler for *square")
	}
}

func TestRegistryResolvesPointeeAndAncestors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(staticHandler(reflect.TypeFor[unit](), "unit")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	for _, typ := range []reflect.Type{
		reflect.TypeFor[*unit](),
		reflect.TypeFor[square](),
		reflect.TypeFor[*labelledSquare](),
	} {
		h, ok := r.Lookup(typ)
		if !ok || labelOf(t, h) != "unit" {
			t.Fatalf("expected unit handler for %s", typ)
		}
	}

	if err := r.Register(staticHandler(reflect.TypeFor[square](), "square")); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	h, ok := r.Lookup(reflect.TypeFor[labelledSquare]())
	if !ok || labelOf(t, h) != "square" {
		t.Fatalf("expected the nearest ancestor to win after registration")
	}
}

func TestRegistryPrefersMostSpecificInterface(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(staticHandler(reflect.TypeFor[shape](), "shape"))
	_ = r.Register(staticHandler(reflect.TypeFor[namedShape](), "named"))

	h, ok := r.Lookup(reflect.TypeFor[*labelledSquare]())
	if !ok || labelOf(t, h) != "named" {
		t.Fatalf("expected the interface with more methods to win")
	}
	h, ok = r.Lookup(reflect.TypeFor[*square]())
	if !ok || labelOf(t, h) != "shape" {
		t.Fatalf("expected shape handler for *square")
	}
	if _, ok := r.Lookup(reflect.TypeFor[unit]()); ok {
		t.Fatalf("expected no handler for unit")
	}
}

func TestRegistryUnregisterAndClear(t *testing.T) {
	r := NewRegistry(WithBuiltins(staticHandler(reflect.TypeFor[unit](), "builtin")))
	_ = r.Register(staticHandler(reflect.TypeFor[unit](), "user"))

	r.Initialize()
	h, ok := r.Lookup(reflect.TypeFor[unit]())
	if !ok || labelOf(t, h) != "user" {
		t.Fatalf("Initialize must not replace a user registration")
	}

	if !r.Unregister(reflect.TypeFor[unit]()) {
		t.Fatalf("expected Unregister to report removal")
	}
	if r.Unregister(reflect.TypeFor[unit]()) {
		t.Fatalf("expected second Unregister to report nothing removed")
	}
	if _, ok := r.Lookup(reflect.TypeFor[square]()); ok {
		t.Fatalf("expected cached resolution to be dropped after Unregister")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("expected empty registry after Clear, got %d", r.Len())
	}
	r.Initialize()
	h, ok = r.Lookup(reflect.TypeFor[unit]())
	if !ok || labelOf(t, h) != "builtin" {
		t.Fatalf("expected built-ins to be reinstalled after Clear")
	}
}

func TestRegistryInitializeIsIdempotent(t *testing.T) {
	r := NewRegistry(WithBuiltins(staticHandler(reflect.TypeFor[unit](), "builtin")))
	r.Initialize()
	r.Unregister(reflect.TypeFor[unit]())
	r.Initialize()
	if r.Len() != 0 {
		t.Fatalf("expected second Initialize to be a no-op, got %d handlers", r.Len())
	}
}

func TestRegistryRejectsNilHandler(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}
	if err := r.Register(staticHandler(nil, "none")); !errors.Is(err, ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler for a handler without type, got %v", err)
	}
}

func TestRegistryTypesAreSorted(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(staticHandler(reflect.TypeFor[square](), "b"))
	_ = r.Register(staticHandler(reflect.TypeFor[labelledSquare](), "a"))
	types := r.Types()
	if len(types) != 2 || types[0].String() > types[1].String() {
		t.Fatalf("expected types sorted by name, got %v", types)
	}
}
