// Package wire is the process-wide entry point to the serializer. It owns a
// default engine whose registry carries the built-in handlers.
package wire

import (
	"reflect"
	"sync/atomic"

	"github.com/entitycache/graphwire/wire/core"
	"github.com/entitycache/graphwire/wire/handlers"
)

// Re-exported depths so callers rarely need to import core.
const (
	Basic    = core.DepthBasic
	Standard = core.DepthStandard
	Deep     = core.DepthDeep
)

var defaultEngine atomic.Pointer[core.Engine]

func init() {
	defaultEngine.Store(NewEngine())
}

// NewEngine builds an engine whose registry installs the built-in handlers.
// Options are applied after the registry so callers may still replace it.
func NewEngine(opts ...core.Option) *core.Engine {
	registry := core.NewRegistry(core.WithBuiltins(handlers.Builtin()...))
	return core.NewEngine(append([]core.Option{core.WithRegistry(registry)}, opts...)...)
}

// Default returns the process-wide engine.
func Default() *core.Engine {
	return defaultEngine.Load()
}

// SetDefault replaces the process-wide engine. A nil engine is ignored.
func SetDefault(e *core.Engine) {
	if e != nil {
		defaultEngine.Store(e)
	}
}

// Serialize converts obj with the default engine.
func Serialize(obj any, depth core.Depth) core.Result {
	return Default().Serialize(obj, depth)
}

// SerializeMany converts several roots in one pass with the default engine.
func SerializeMany(objs []any, depth core.Depth) []core.Result {
	return Default().SerializeMany(objs, depth)
}

// ToWireValue converts obj and encodes it as JSON text.
func ToWireValue(obj any, depth core.Depth, pretty bool) (string, error) {
	return Default().ToWireValue(obj, depth, pretty)
}

// RegisterHandler adds h to the default registry.
func RegisterHandler(h core.Handler) error {
	return Default().Registry().Register(h)
}

// UnregisterHandler removes the handler registered for exactly t.
func UnregisterHandler(t reflect.Type) bool {
	return Default().Registry().Unregister(t)
}

// IsDirectlyRepresentable reports whether v passes through unchanged.
func IsDirectlyRepresentable(v any) bool {
	return core.IsDirectlyRepresentable(v)
}
