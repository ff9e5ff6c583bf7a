package core

import (
	"reflect"
	"strings"
)

const (
	// RootPath labels the serialization root (the empty path stack).
	RootPath = "root"

	pathDelimiter = "."
)

type identity struct {
	typ    reflect.Type
	addr   uintptr
	length int
}

// Tracker records, for one serialization pass, the path at which every
// reference-typed value was first seen. It is not safe for concurrent use and
// must not be shared between overlapping passes.
type Tracker struct {
	segments []string
	seen     map[identity]string
	order    []identity
}

// checkpoint captures the tracker state so a discarded branch can be undone.
type checkpoint struct {
	segments int
	order    int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[identity]string)}
}

// Enter pushes a member segment and returns the resulting path.
func (t *Tracker) Enter(segment string) string {
	t.segments = append(t.segments, segment)
	return t.Path()
}

// EnterIndex pushes an index segment and returns the resulting path.
func (t *Tracker) EnterIndex(i int) string {
	return t.Enter(indexSegment(i))
}

// Exit pops the last segment. Exiting an empty stack is a no-op.
func (t *Tracker) Exit() {
	if len(t.segments) == 0 {
		return
	}
	t.segments = t.segments[:len(t.segments)-1]
}

// Path renders the current stack, or RootPath when it is empty.
func (t *Tracker) Path() string {
	if len(t.segments) == 0 {
		return RootPath
	}
	var b strings.Builder
	for i, seg := range t.segments {
		if i > 0 && !strings.HasPrefix(seg, "[") {
			b.WriteString(pathDelimiter)
		}
		b.WriteString(seg)
	}
	return b.String()
}

// Depth returns the number of segments on the stack.
func (t *Tracker) Depth() int {
	return len(t.segments)
}

// AddReference records v at the current path the first time its identity is
// seen and returns true. Later sightings return false. Values without an
// identity (value types, nil, empty slices) are never recorded and always
// return true.
func (t *Tracker) AddReference(v reflect.Value) bool {
	id, ok := identityOf(v)
	if !ok {
		return true
	}
	if _, seen := t.seen[id]; seen {
		return false
	}
	t.seen[id] = t.Path()
	t.order = append(t.order, id)
	return true
}

// ReferencePath returns the path recorded for v's identity.
func (t *Tracker) ReferencePath(v reflect.Value) (string, bool) {
	id, ok := identityOf(v)
	if !ok {
		return "", false
	}
	path, seen := t.seen[id]
	return path, seen
}

// Len returns the number of identities recorded.
func (t *Tracker) Len() int {
	return len(t.seen)
}

// Reset clears the stack and all recorded identities.
func (t *Tracker) Reset() {
	t.segments = t.segments[:0]
	t.order = t.order[:0]
	clear(t.seen)
}

func (t *Tracker) checkpoint() checkpoint {
	return checkpoint{segments: len(t.segments), order: len(t.order)}
}

// rollback forgets every identity recorded after cp and restores the stack.
func (t *Tracker) rollback(cp checkpoint) {
	for _, id := range t.order[cp.order:] {
		delete(t.seen, id)
	}
	t.order = t.order[:cp.order]
	if cp.segments <= len(t.segments) {
		t.segments = t.segments[:cp.segments]
	}
}

// identityOf returns the identity of reference-typed values. The dynamic type
// is part of the key so a struct pointer and a pointer to its first field stay
// distinct. Slices are keyed by their backing array and length; empty slices
// and byte slices render atomically and carry no identity.
func identityOf(v reflect.Value) (identity, bool) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return identity{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return identity{}, false
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return identity{}, false
		}
		return identity{typ: v.Type(), addr: v.Pointer()}, true
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 || v.Type().Elem().Kind() == reflect.Uint8 {
			return identity{}, false
		}
		return identity{typ: v.Type(), addr: v.Pointer(), length: v.Len()}, true
	}
	return identity{}, false
}
