package core

import (
	"encoding"
	"math"
	"reflect"
	"strconv"
)

// Object is an insertion-ordered mapping from member name to wire value.
//
// Wire values are nil, bool, int64, uint64, float64, string, *Object and []any.
// The zero value is ready to use; a nil *Object behaves as an empty mapping for reads.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject allocates an Object with room for capacity members.
func NewObject(capacity int) *Object {
	return &Object{
		keys:   make([]string, 0, capacity),
		values: make(map[string]any, capacity),
	}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (o *Object) Set(key string, value any) *Object {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
	return o
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil || o.values == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining members.
func (o *Object) Delete(key string) {
	if o == nil || o.values == nil {
		return
	}
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the member names in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for each member in order until fn returns false.
func (o *Object) Range(fn func(key string, value any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// MarshalJSON encodes the object preserving member order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return Encode(o, false)
}

// IsDirectlyRepresentable reports whether v passes through the engine unchanged:
// nil, booleans, integers, floats and strings, including named types of those kinds.
func IsDirectlyRepresentable(v any) bool {
	if v == nil {
		return true
	}
	return isPrimitiveKind(reflect.TypeOf(v).Kind())
}

func isPrimitiveKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	}
	return false
}

// primitiveValue converts a primitive-kinded value into its wire form.
func primitiveValue(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return floatValue(v.Float())
	case reflect.String:
		return v.String()
	}
	return nil
}

// floatValue keeps finite floats as numbers and spells out the others so the
// tree always encodes.
func floatValue(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// textValue renders types implementing encoding.TextMarshaler as atomic strings.
func textValue(v reflect.Value) (string, bool) {
	if !v.IsValid() || !v.Type().Implements(textMarshalerType) {
		return "", false
	}
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return "", false
	}
	m, ok := v.Interface().(encoding.TextMarshaler)
	if !ok {
		return "", false
	}
	text, err := m.MarshalText()
	if err != nil {
		return "", false
	}
	return string(text), true
}

func indexSegment(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
