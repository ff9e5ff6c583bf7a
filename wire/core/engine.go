package core

import (
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entitycache/graphwire/wire/metrics"
)

const (
	// DefaultMaxNodes bounds the composite values materialized per call.
	DefaultMaxNodes = 10000
	// DefaultMaxElements bounds the elements emitted per collection or map.
	DefaultMaxElements = 256
	// DefaultMaxNesting bounds how deeply values may nest in the output tree.
	DefaultMaxNesting = 64
)

// DefaultSkippedMembers lists accessors that produce fresh self-similar values
// on every read and would otherwise expand forever.
var DefaultSkippedMembers = []string{"Normalized"}

// Engine serializes host object graphs into wire values. An Engine is safe for
// concurrent use; every call owns an independent reference tracker.
type Engine struct {
	registry    *Registry
	logger      *zap.Logger
	recorder    metrics.Recorder
	maxNodes    int
	maxElements int
	maxNesting  int
	skip        map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the handler registry. The default is an empty registry.
func WithRegistry(registry *Registry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(e *Engine) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithMaxNodes bounds the composite values materialized per call.
func WithMaxNodes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxNodes = n
		}
	}
}

// WithMaxElements bounds the elements emitted per collection or map.
func WithMaxElements(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxElements = n
		}
	}
}

// WithMaxNesting bounds how deeply values may nest in the output tree.
func WithMaxNesting(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxNesting = n
		}
	}
}

// WithSkippedMembers replaces the set of member names the reflective
// serializer never reads.
func WithSkippedMembers(names ...string) Option {
	return func(e *Engine) {
		e.skip = make(map[string]struct{}, len(names))
		for _, name := range names {
			e.skip[name] = struct{}{}
		}
	}
}

// NewEngine constructs an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry:    NewRegistry(),
		logger:      zap.NewNop(),
		recorder:    metrics.Noop{},
		maxNodes:    DefaultMaxNodes,
		maxElements: DefaultMaxElements,
		maxNesting:  DefaultMaxNesting,
	}
	WithSkippedMembers(DefaultSkippedMembers...)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's handler registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Serialize converts obj into a Result at the given depth. It never panics:
// failures that escape every other guard produce a StatusError envelope.
func (e *Engine) Serialize(obj any, depth Depth) (res Result) {
	start := time.Now()
	p := e.newPass()
	defer func() {
		if r := recover(); r != nil {
			res = e.errorResult(obj, p.id, recovered(r, ErrUnexpected))
		}
		p.tracker.Reset()
		e.recorder.ObserveResult(string(res.Status), res.Nodes, time.Since(start))
	}()

	if !depth.Valid() {
		return e.errorResult(obj, p.id, errors.Wrapf(ErrInvalidDepth, "depth %d", int(depth)))
	}
	e.registry.Initialize()

	p.tracker.Reset()
	return p.finish(p.root(obj, depth), 0)
}

// SerializeMany serializes several roots in one pass. The roots share a
// reference tracker, so an object reachable from an earlier root renders as a
// back-reference in later results. Root i is tracked under the path "[i]".
func (e *Engine) SerializeMany(objs []any, depth Depth) []Result {
	start := time.Now()
	p := e.newPass()
	results := make([]Result, len(objs))
	defer func() {
		p.tracker.Reset()
		for _, res := range results {
			e.recorder.ObserveResult(string(res.Status), res.Nodes, time.Since(start))
		}
	}()

	if !depth.Valid() {
		err := errors.Wrapf(ErrInvalidDepth, "depth %d", int(depth))
		for i, obj := range objs {
			results[i] = e.errorResult(obj, p.id, err)
		}
		return results
	}
	e.registry.Initialize()

	p.tracker.Reset()
	for i, obj := range objs {
		results[i] = p.rootAt(i, obj, depth)
	}
	return results
}

// ToWireValue serializes obj and encodes the produced value as JSON text.
// Error envelopes are encoded in place of the value.
func (e *Engine) ToWireValue(obj any, depth Depth, pretty bool) (string, error) {
	res := e.Serialize(obj, depth)

	var tree any
	switch res.Status {
	case StatusError:
		tree = res.Wire()
	case StatusCircular:
		tree = circularMarker(res.ReferencePath)
	default:
		tree = res.Value
	}

	data, err := Encode(tree, pretty)
	if err != nil {
		return "", errors.Wrapf(err, "encode %s", res.TypeName)
	}
	return string(data), nil
}

func (e *Engine) newPass() *pass {
	return &pass{
		engine:  e,
		tracker: NewTracker(),
		id:      uuid.NewString(),
	}
}

func (e *Engine) errorResult(obj any, passID string, err error) Result {
	typeName := typeNameOf(obj)
	e.logger.Error("serialization failed",
		zap.String("type", typeName),
		zap.String("pass_id", passID),
		zap.Error(err))
	return Result{
		TypeName: typeName,
		Status:   StatusError,
		PassID:   passID,
		Error:    err.Error(),
		Failed: []MemberError{{
			Member:  typeName,
			Path:    RootPath,
			Kind:    kindOf(err),
			Message: err.Error(),
		}},
	}
}

func (e *Engine) skipped(name string) bool {
	_, ok := e.skip[name]
	return ok
}

// rootAt serializes one root of a SerializeMany pass under its index segment.
func (p *pass) rootAt(i int, obj any, depth Depth) (res Result) {
	p.failed = nil
	p.truncated = false
	nodes := p.nodes
	cp := p.tracker.checkpoint()

	defer func() {
		if r := recover(); r != nil {
			res = p.engine.errorResult(obj, p.id, recovered(r, ErrUnexpected))
		}
		p.tracker.segments = p.tracker.segments[:cp.segments]
	}()

	p.tracker.EnterIndex(i)
	res = p.root(obj, depth)
	p.tracker.Exit()
	return p.finish(res, nodes)
}

// root runs the envelope state machine: circular check first, then the
// registered handler, then reflective fallback.
func (p *pass) root(obj any, depth Depth) Result {
	res := Result{TypeName: typeNameOf(obj), PassID: p.id}

	if obj == nil || IsDirectlyRepresentable(obj) {
		res.Status = StatusDirect
		if obj != nil {
			res.Value = primitiveValue(reflect.ValueOf(obj))
		}
		return res
	}

	v := reflect.ValueOf(obj)
	if isNilable(v.Kind()) && v.IsNil() {
		res.Status = StatusDirect
		return res
	}

	if !p.tracker.AddReference(v) {
		path, _ := p.tracker.ReferencePath(v)
		p.engine.recorder.CircularReference()
		res.Status = StatusCircular
		res.ReferencePath = path
		return res
	}

	l := rootLevel(depth)
	p.nodes++

	if m := p.engine.registry.resolve(v.Type()); m.found() {
		if out, ok := p.callHandler(m, v, l); ok {
			res.Status = StatusHandler
			res.Value = out
			res.Serialized = out.Keys()
			return res
		}
	}

	value, members := p.fallback(v, l)
	res.Status = StatusFallback
	res.Value = value
	res.Serialized = members
	return res
}

func (p *pass) finish(res Result, nodesBefore int) Result {
	if res.Status == StatusError {
		return res
	}
	if len(p.failed) > 0 {
		res.Failed = append([]MemberError(nil), p.failed...)
	}
	res.Truncated = p.truncated
	res.Nodes = p.nodes - nodesBefore
	return res
}
