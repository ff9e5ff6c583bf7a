package core

import (
	"reflect"
	"strings"
	"sync"
)

const wireTagKey = "wire"

// TypeMetadata captures the readable members of a struct type.
type TypeMetadata struct {
	Type      reflect.Type
	Members   []MemberDescriptor
	Ancestors []reflect.Type
}

// MemberDescriptor stores metadata for an individual exported field.
type MemberDescriptor struct {
	Name      string
	WireName  string
	Index     []int
	Type      reflect.Type
	Kind      reflect.Kind
	IsPointer bool
	Promoted  bool
	OmitEmpty bool
}

var typeMetadataCache sync.Map // map[reflect.Type]*TypeMetadata

// GetTypeMetadata returns cached metadata for the provided struct instance or
// type. Pointers are dereferenced; non-struct targets yield ErrNotStruct.
func GetTypeMetadata(target any) (*TypeMetadata, error) {
	t, err := normalizeToStructType(target)
	if err != nil {
		return nil, err
	}

	if meta, ok := typeMetadataCache.Load(t); ok {
		return meta.(*TypeMetadata), nil
	}

	meta := buildTypeMetadata(t)
	actual, _ := typeMetadataCache.LoadOrStore(t, meta)
	return actual.(*TypeMetadata), nil
}

// ResetTypeMetadataCache clears computed metadata; primarily intended for tests.
func ResetTypeMetadataCache() {
	typeMetadataCache.Clear()
}

func buildTypeMetadata(t reflect.Type) *TypeMetadata {
	meta := &TypeMetadata{
		Type:      t,
		Members:   make([]MemberDescriptor, 0, t.NumField()),
		Ancestors: embeddedAncestors(t),
	}

	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() {
			continue
		}
		if field.Anonymous && derefType(field.Type).Kind() == reflect.Struct {
			// Promoted fields are listed on their own.
			continue
		}

		md, skip := describeMember(field)
		if skip {
			continue
		}
		meta.Members = append(meta.Members, md)
	}

	return meta
}

func describeMember(field reflect.StructField) (MemberDescriptor, bool) {
	tagValue := field.Tag.Get(wireTagKey)
	if tagValue == "-" {
		return MemberDescriptor{}, true
	}

	md := MemberDescriptor{
		Name:      field.Name,
		WireName:  field.Name,
		Index:     field.Index,
		Type:      field.Type,
		Kind:      derefType(field.Type).Kind(),
		IsPointer: field.Type.Kind() == reflect.Pointer,
		Promoted:  len(field.Index) > 1,
	}

	if tagValue != "" {
		parts := strings.Split(tagValue, ",")
		if name := strings.TrimSpace(parts[0]); name != "" {
			md.WireName = name
		}
		for _, opt := range parts[1:] {
			if strings.TrimSpace(opt) == "omitempty" {
				md.OmitEmpty = true
			}
		}
	}

	return md, false
}

// embeddedAncestors lists the embedded struct types of t breadth first.
func embeddedAncestors(t reflect.Type) []reflect.Type {
	var out []reflect.Type
	queue := []reflect.Type{t}
	visited := map[reflect.Type]struct{}{t: {}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := 0; i < cur.NumField(); i++ {
			f := cur.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := derefType(f.Type)
			if ft.Kind() != reflect.Struct {
				continue
			}
			if _, seen := visited[ft]; seen {
				continue
			}
			visited[ft] = struct{}{}
			out = append(out, ft)
			queue = append(queue, ft)
		}
	}
	return out
}

func normalizeToStructType(target any) (reflect.Type, error) {
	var t reflect.Type

	switch val := target.(type) {
	case nil:
		return nil, ErrNotStruct
	case reflect.Type:
		t = val
	default:
		t = reflect.TypeOf(target)
	}

	t = derefType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}
	return t, nil
}

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
