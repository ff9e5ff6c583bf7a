// Package scene is a small host object model: game objects arranged in a
// transform hierarchy, with components attached to them. It is deliberately
// cyclic (transforms point at their parents and owners) and exists to drive
// the serializer in tests, examples and the command line tool.
package scene

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ErrDestroyed is returned when reading computed members of a destroyed object.
var ErrDestroyed = errors.New("scene: object has been destroyed")

var nextInstanceID atomic.Int64

// Object is the identity every host object carries.
type Object struct {
	id        int64
	name      string
	destroyed atomic.Bool
}

func (o *Object) init(name string) {
	o.id = nextInstanceID.Add(1)
	o.name = name
}

// InstanceID returns the host-assigned identity.
func (o *Object) InstanceID() int64 {
	return o.id
}

// DisplayName returns the object's name.
func (o *Object) DisplayName() string {
	return o.name
}

// SetName renames the object.
func (o *Object) SetName(name string) {
	o.name = name
}

// Destroyed reports whether the object has been destroyed.
func (o *Object) Destroyed() bool {
	return o.destroyed.Load()
}

func (o *Object) alive() error {
	if o.destroyed.Load() {
		return errors.Wrapf(ErrDestroyed, "%s (%d)", o.name, o.id)
	}
	return nil
}
