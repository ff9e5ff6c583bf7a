package core

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// pass holds the mutable state of one top-level serialization call.
type pass struct {
	engine    *Engine
	tracker   *Tracker
	id        string
	nodes     int
	nesting   int
	truncated bool
	failed    []MemberError
}

// member processes a value found under segment inside a value materialized at
// parent. The path context is entered before the reference check and released
// on every exit, including panics.
func (p *pass) member(segment string, v reflect.Value, parent level) (out any) {
	v = unwrapInterface(v)
	if !v.IsValid() {
		return nil
	}
	if isPrimitiveKind(v.Kind()) {
		return primitiveValue(v)
	}
	if isNilable(v.Kind()) && v.IsNil() {
		return nil
	}

	p.tracker.Enter(segment)
	defer p.tracker.Exit()
	defer func() {
		if r := recover(); r != nil {
			out = nil
			p.fail(TypeName(v.Type()), segment, recovered(r, ErrUnexpected))
		}
	}()

	if !p.tracker.AddReference(v) {
		path, _ := p.tracker.ReferencePath(v)
		p.engine.recorder.CircularReference()
		return circularMarker(path)
	}
	return p.process(v, parent)
}

// process is the single recursive entry point for nested values: primitives
// pass through, handled types use their handler, everything else is reflected
// one notch shallower than parent.
func (p *pass) process(v reflect.Value, parent level) any {
	v = unwrapInterface(v)
	if !v.IsValid() {
		return nil
	}
	if isPrimitiveKind(v.Kind()) {
		return primitiveValue(v)
	}
	if isNilable(v.Kind()) && v.IsNil() {
		return nil
	}

	if !p.admit() {
		return p.truncatedRef(v)
	}

	if m := p.engine.registry.resolve(v.Type()); m.found() {
		l := parent.nested(true)
		if out, ok := p.callHandler(m, v, l); ok {
			return out
		}
		out, _ := p.fallback(v, l)
		return out
	}

	if isContainerKind(derefValue(v).Kind()) {
		out, _ := p.fallback(v, parent)
		return out
	}

	out, _ := p.fallback(v, parent.nested(false))
	return out
}

// admit charges one node against the budget. Nesting is the deeper of the
// path stack and the handler call stack.
func (p *pass) admit() bool {
	if p.nodes >= p.engine.maxNodes || max(p.tracker.Depth(), p.nesting) >= p.engine.maxNesting {
		if !p.truncated {
			p.engine.logger.Debug("budget exhausted, truncating",
				zap.String("path", p.tracker.Path()),
				zap.Int("nodes", p.nodes),
				zap.String("pass_id", p.id),
				zap.Error(ErrBudgetExceeded))
		}
		p.truncated = true
		return false
	}
	p.nodes++
	return true
}

// callHandler runs a handler without letting failures escape. On failure every
// reference and diagnostic recorded by the handler is rolled back so the
// reflective fallback starts from the same state.
func (p *pass) callHandler(m match, v reflect.Value, l level) (out *Object, ok bool) {
	typeName := TypeName(v.Type())
	cp := p.tracker.checkpoint()
	failedBefore := len(p.failed)

	p.nesting++
	defer func() {
		p.nesting--
		if r := recover(); r != nil {
			out, ok = nil, false
			p.handlerFailed(typeName, cp, failedBefore, recovered(r, ErrHandlerFailure))
		}
	}()

	target, reachable := m.target(v)
	if !reachable {
		p.handlerFailed(typeName, cp, failedBefore,
			errors.Mark(errors.Newf("handler target for %s is not reachable", typeName), ErrHandlerFailure))
		return nil, false
	}

	w := &handlerWalker{pass: p, level: l}
	result, err := m.handler.Serialize(w, target.Interface(), l.depth())
	if err == nil && result == nil {
		err = errors.Newf("handler for %s returned no mapping", typeName)
	}
	if err != nil {
		p.handlerFailed(typeName, cp, failedBefore,
			errors.Mark(errors.Wrapf(err, "handler %s", m.handler.Type()), ErrHandlerFailure))
		return nil, false
	}
	return result, true
}

func (p *pass) handlerFailed(typeName string, cp checkpoint, failedBefore int, err error) {
	p.tracker.rollback(cp)
	p.failed = p.failed[:failedBefore]
	p.engine.logger.Warn("handler failed, falling back to reflection",
		zap.String("type", typeName),
		zap.String("path", p.tracker.Path()),
		zap.String("pass_id", p.id),
		zap.Error(err))
	p.engine.recorder.HandlerFailure(typeName)
	p.failed = append(p.failed, MemberError{
		Member:  typeName,
		Path:    p.tracker.Path(),
		Kind:    FailureHandler,
		Message: err.Error(),
	})
}

// fail records a member-level diagnostic and keeps going.
func (p *pass) fail(owner, member string, err error) {
	p.engine.recorder.MemberFailure(owner)
	p.engine.logger.Debug("member skipped",
		zap.String("type", owner),
		zap.String("member", member),
		zap.String("path", p.tracker.Path()),
		zap.String("pass_id", p.id),
		zap.Error(err))
	p.failed = append(p.failed, MemberError{
		Member:  member,
		Path:    p.tracker.Path(),
		Kind:    kindOf(err),
		Message: err.Error(),
	})
}

// target extracts the value a resolved handler expects.
func (m match) target(v reflect.Value) (reflect.Value, bool) {
	if m.deref {
		if v.Kind() != reflect.Pointer || v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if m.embed != nil {
		if m.addr && !m.elem && !v.CanAddr() {
			// Struct values passed by value are copied so the embedded
			// field's pointer method set is reachable.
			c := reflect.New(v.Type()).Elem()
			c.Set(v)
			v = c
		}
		f, err := v.FieldByIndexErr(m.embed)
		if err != nil {
			return reflect.Value{}, false
		}
		v = f
		if m.elem {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		if m.addr {
			if !v.CanAddr() {
				return reflect.Value{}, false
			}
			v = v.Addr()
		}
	}
	return v, v.CanInterface()
}

// handlerWalker exposes the pass to a running handler.
type handlerWalker struct {
	pass  *pass
	level level
}

var _ Walker = (*handlerWalker)(nil)

func (w *handlerWalker) Depth() Depth {
	return w.level.depth()
}

func (w *handlerWalker) Path() string {
	return w.pass.tracker.Path()
}

func (w *handlerWalker) Member(name string, value any) any {
	return w.pass.member(name, reflect.ValueOf(value), w.level)
}

func (w *handlerWalker) Members(dst *Object, obj any) {
	v := derefValue(unwrapInterface(reflect.ValueOf(obj)))
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return
	}
	w.pass.appendMembers(dst, reflect.ValueOf(obj), v, w.level)
}

func (w *handlerWalker) Reference(value any) any {
	v := unwrapInterface(reflect.ValueOf(value))
	if !v.IsValid() {
		return nil
	}
	if isPrimitiveKind(v.Kind()) {
		return primitiveValue(v)
	}
	if isNilable(v.Kind()) && v.IsNil() {
		return nil
	}
	return w.pass.reference(v)
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func derefValue(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}

func isContainerKind(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array || k == reflect.Map
}
