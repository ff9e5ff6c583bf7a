package core

import (
	"cmp"
	"encoding/base64"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// fallback reflects v at level l. It returns the wire value and, for structs,
// the names of the members that were emitted.
func (p *pass) fallback(v reflect.Value, l level) (any, []string) {
	if s, ok := textValue(v); ok {
		return s, nil
	}

	d := derefValue(v)
	if !d.IsValid() {
		return nil, nil
	}
	if s, ok := textValue(d); ok {
		return s, nil
	}

	switch d.Kind() {
	case reflect.Struct:
		return p.reflectStruct(v, d, l)
	case reflect.Slice, reflect.Array:
		return p.collection(d, l), nil
	case reflect.Map:
		return p.mapValue(d, l), nil
	case reflect.Complex64, reflect.Complex128:
		return strconv.FormatComplex(d.Complex(), 'g', -1, 128), nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return NewObject(1).Set("type", TypeName(d.Type())), nil
	}
	if isPrimitiveKind(d.Kind()) {
		return primitiveValue(d), nil
	}
	return NewObject(1).Set("type", TypeName(d.Type())), nil
}

// reflectStruct renders a struct. v is the value as found (possibly a
// pointer) so pointer-receiver capabilities are visible; d is the struct.
func (p *pass) reflectStruct(v, d reflect.Value, l level) (*Object, []string) {
	owner := TypeName(d.Type())
	out := p.header(v, d.Type(), l)
	if !l.walksMembers() {
		return out, nil
	}

	meta, err := GetTypeMetadata(d.Type())
	if err != nil {
		p.fail(owner, owner, errors.Mark(err, ErrMemberAccess))
		return out, nil
	}

	var emitted []string
	for _, md := range meta.Members {
		if p.engine.skipped(md.Name) {
			continue
		}
		fv, err := d.FieldByIndexErr(md.Index)
		if err != nil {
			p.failAt(owner, md.WireName, errors.Mark(errors.Wrapf(err, "read %s.%s", owner, md.Name), ErrMemberAccess))
			continue
		}
		if !fv.CanInterface() {
			p.failAt(owner, md.WireName, errors.Mark(errors.Newf("%s.%s is not readable", owner, md.Name), ErrMemberAccess))
			continue
		}
		if md.OmitEmpty && fv.IsZero() {
			continue
		}
		out.Set(md.WireName, p.member(md.WireName, fv, l))
		emitted = append(emitted, md.WireName)
	}

	emitted = append(emitted, p.properties(out, v, owner, l)...)

	if l == levelDeep {
		if len(meta.Ancestors) > 0 {
			out.Set("ancestors", lo.Map(meta.Ancestors, func(t reflect.Type, _ int) any {
				return TypeName(t)
			}))
		}
		if caps := p.capabilities(v.Type()); len(caps) > 0 {
			out.Set("capabilities", caps)
		}
	}
	return out, emitted
}

// appendMembers is the Walker.Members entry point used by handlers that want
// the reflective member dump next to their own fields.
func (p *pass) appendMembers(dst *Object, v, d reflect.Value, l level) {
	if dst == nil {
		return
	}
	full, _ := p.reflectStruct(v, d, max(l, levelSummary))
	full.Range(func(key string, value any) bool {
		if !dst.Has(key) {
			dst.Set(key, value)
		}
		return true
	})
}

// header emits the identifying members every struct rendering starts with.
func (p *pass) header(v reflect.Value, t reflect.Type, l level) *Object {
	out := NewObject(8)
	out.Set("type", TypeName(t))
	if !v.CanInterface() {
		return out
	}
	owner := TypeName(t)
	obj := v.Interface()

	if id, ok := obj.(Identifiable); ok {
		if val, err := safeCall(id.InstanceID); err != nil {
			p.failAt(owner, "instance_id", err)
		} else {
			out.Set("instance_id", val)
		}
	}
	if l >= levelRef {
		if named, ok := obj.(Named); ok {
			if val, err := safeCall(named.DisplayName); err != nil {
				p.failAt(owner, "name", err)
			} else {
				out.Set("name", val)
			}
		}
	}
	return out
}

// properties reads explicitly described computed members. Each property is
// isolated: a failing getter is recorded and the rest still run.
func (p *pass) properties(out *Object, v reflect.Value, owner string, l level) []string {
	if !v.CanInterface() {
		return nil
	}
	src, ok := v.Interface().(PropertySource)
	if !ok {
		return nil
	}
	props, err := safeCall(src.WireProperties)
	if err != nil {
		p.failAt(owner, "properties", err)
		return nil
	}

	var emitted []string
	for _, prop := range props {
		if prop.Name == "" || prop.Get == nil || p.engine.skipped(prop.Name) {
			continue
		}
		val, err := safeGet(prop.Get)
		if err != nil {
			p.failAt(owner, prop.Name, errors.Wrapf(err, "read %s.%s", owner, prop.Name))
			continue
		}
		out.Set(prop.Name, p.member(prop.Name, reflect.ValueOf(val), l))
		emitted = append(emitted, prop.Name)
	}
	return emitted
}

// capabilities lists the well-known and registered interfaces t implements.
func (p *pass) capabilities(t reflect.Type) []any {
	seen := make(map[reflect.Type]struct{})
	var caps []any
	for _, iface := range append(slices.Clone(wellKnownCapabilities), p.engine.registry.interfaces()...) {
		if _, dup := seen[iface]; dup {
			continue
		}
		seen[iface] = struct{}{}
		if t.Implements(iface) {
			caps = append(caps, iface.String())
		}
	}
	return caps
}

// collection renders slices and arrays. The count is always present; items
// are listed only at levels that walk members.
func (p *pass) collection(d reflect.Value, l level) any {
	if d.Kind() == reflect.Slice && d.Type().Elem().Kind() == reflect.Uint8 {
		return base64.StdEncoding.EncodeToString(d.Bytes())
	}

	n := d.Len()
	out := NewObject(4)
	out.Set("type", TypeName(d.Type()))
	out.Set("count", int64(n))
	if !l.walksMembers() {
		return out
	}

	limit := min(n, p.engine.maxElements)
	items := make([]any, 0, limit)
	parent := l.elementParent()
	for i := 0; i < limit; i++ {
		items = append(items, p.member(indexSegment(i), d.Index(i), parent))
	}
	out.Set("items", items)
	if limit < n {
		p.truncated = true
		out.Set("truncated", true)
	}
	return out
}

// mapValue renders maps as an entry list ordered by key.
func (p *pass) mapValue(d reflect.Value, l level) any {
	n := d.Len()
	out := NewObject(4)
	out.Set("type", TypeName(d.Type()))
	out.Set("count", int64(n))
	if !l.walksMembers() {
		return out
	}

	keys := d.MapKeys()
	slices.SortFunc(keys, compareKeys)

	limit := min(n, p.engine.maxElements)
	entries := make([]any, 0, limit)
	parent := l.elementParent()
	for _, k := range keys[:limit] {
		label := keyLabel(k)
		entries = append(entries, NewObject(2).
			Set("key", keyValue(k)).
			Set("value", p.member("["+label+"]", d.MapIndex(k), parent)))
	}
	out.Set("entries", entries)
	if limit < n {
		p.truncated = true
		out.Set("truncated", true)
	}
	return out
}

// reference renders a short reference to v without visiting it.
func (p *pass) reference(v reflect.Value) *Object {
	d := derefValue(v)
	if !d.IsValid() {
		return NewObject(1).Set("type", TypeName(v.Type()))
	}
	if d.Kind() != reflect.Struct {
		return NewObject(1).Set("type", TypeName(d.Type()))
	}
	return p.header(v, d.Type(), levelRef)
}

// truncatedRef stands in for a value the budget did not allow to expand.
func (p *pass) truncatedRef(v reflect.Value) *Object {
	return p.reference(v).Set("truncated", true)
}

// failAt records a failure for member while its path segment is on the stack.
func (p *pass) failAt(owner, member string, err error) {
	if !errors.Is(err, ErrMemberAccess) && !errors.Is(err, ErrHandlerFailure) && !errors.Is(err, ErrUnexpected) {
		err = errors.Mark(err, ErrMemberAccess)
	}
	p.tracker.Enter(member)
	defer p.tracker.Exit()
	p.fail(owner, member, err)
}

func safeCall[T any](fn func() T) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r, ErrMemberAccess)
		}
	}()
	return fn(), nil
}

func safeGet(get func() (any, error)) (val any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered(r, ErrMemberAccess)
		}
	}()
	val, err = get()
	if err != nil {
		err = errors.Mark(err, ErrMemberAccess)
	}
	return val, err
}

func keyValue(k reflect.Value) any {
	k = unwrapInterface(k)
	if !k.IsValid() {
		return nil
	}
	if isPrimitiveKind(k.Kind()) {
		return primitiveValue(k)
	}
	if s, ok := textValue(k); ok {
		return s
	}
	return keyLabel(k)
}

func keyLabel(k reflect.Value) string {
	k = unwrapInterface(k)
	if !k.IsValid() {
		return "nil"
	}
	if s, ok := textValue(k); ok {
		return s
	}
	if k.CanInterface() {
		return fmt.Sprint(k.Interface())
	}
	return k.String()
}

// compareKeys orders map keys numerically when both are numbers of the same
// family and by their text form otherwise.
func compareKeys(a, b reflect.Value) int {
	a, b = unwrapInterface(a), unwrapInterface(b)
	if a.IsValid() && b.IsValid() {
		switch {
		case a.CanInt() && b.CanInt():
			return cmp.Compare(a.Int(), b.Int())
		case a.CanUint() && b.CanUint():
			return cmp.Compare(a.Uint(), b.Uint())
		case a.CanFloat() && b.CanFloat():
			return cmp.Compare(a.Float(), b.Float())
		case a.Kind() == reflect.String && b.Kind() == reflect.String:
			return cmp.Compare(a.String(), b.String())
		}
	}
	return cmp.Compare(keyLabel(a), keyLabel(b))
}
