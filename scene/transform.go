package scene

import (
	"slices"

	"github.com/entitycache/graphwire/wire/core"
)

// Transform positions a GameObject and links it into the hierarchy. Every
// GameObject owns exactly one.
type Transform struct {
	ComponentBase
	Position Vector3
	Rotation Quaternion
	Scale    Vector3

	parent   *Transform
	children []*Transform
}

func newTransform(owner *GameObject) *Transform {
	t := &Transform{Rotation: Identity, Scale: Vector3{X: 1, Y: 1, Z: 1}}
	t.attach(owner)
	return t
}

// Parent returns the parent transform, or nil for a root.
func (t *Transform) Parent() *Transform {
	return t.parent
}

// Children returns a copy of the child transforms.
func (t *Transform) Children() []*Transform {
	return slices.Clone(t.children)
}

// SetParent moves t under parent. A nil parent makes t a root.
func (t *Transform) SetParent(parent *Transform) {
	if t.parent != nil {
		t.parent.children = slices.DeleteFunc(t.parent.children, func(c *Transform) bool {
			return c == t
		})
	}
	t.parent = parent
	if parent != nil {
		parent.children = append(parent.children, t)
	}
}

// WireProperties adds the hierarchy links to the component properties.
func (t *Transform) WireProperties() []core.Property {
	return append(t.ComponentBase.WireProperties(),
		core.Property{Name: "Parent", Get: func() (any, error) {
			if err := t.alive(); err != nil {
				return nil, err
			}
			return t.parent, nil
		}},
		core.Property{Name: "Children", Get: func() (any, error) {
			if err := t.alive(); err != nil {
				return nil, err
			}
			return t.Children(), nil
		}},
	)
}
