package core

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Identifiable is implemented by host-owned objects that carry a stable,
// host-assigned identity.
type Identifiable interface {
	InstanceID() int64
}

// Named is implemented by objects with a human-readable display name.
type Named interface {
	DisplayName() string
}

// Property is an explicitly described computed member.
type Property struct {
	Name string
	Get  func() (any, error)
}

// PropertySource exposes computed members in addition to exported fields.
// Properties are read in the order returned.
type PropertySource interface {
	WireProperties() []Property
}

var (
	identifiableType   = reflect.TypeOf((*Identifiable)(nil)).Elem()
	namedType          = reflect.TypeOf((*Named)(nil)).Elem()
	propertySourceType = reflect.TypeOf((*PropertySource)(nil)).Elem()

	// wellKnownCapabilities are reported at Deep alongside registered interfaces.
	wellKnownCapabilities = []reflect.Type{
		identifiableType,
		namedType,
		propertySourceType,
		reflect.TypeOf((*fmt.Stringer)(nil)).Elem(),
		reflect.TypeOf((*error)(nil)).Elem(),
		reflect.TypeOf((*json.Marshaler)(nil)).Elem(),
		textMarshalerType,
	}
)

// TypeName returns the display name used on the wire for t.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return derefType(t).String()
}

func typeNameOf(v any) string {
	if v == nil {
		return "nil"
	}
	return TypeName(reflect.TypeOf(v))
}
