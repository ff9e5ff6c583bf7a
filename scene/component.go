package scene

import (
	"github.com/entitycache/graphwire/wire/core"
)

// Component is behavior or data attached to a GameObject.
type Component interface {
	core.Identifiable
	core.Named
	GameObject() *GameObject
	Enabled() bool
	Destroyed() bool
	attach(owner *GameObject)
	destroy()
}

// ComponentBase carries the state shared by all components. Embed it to
// implement Component.
type ComponentBase struct {
	Object
	owner    *GameObject
	disabled bool
}

// GameObject returns the object the component is attached to.
func (c *ComponentBase) GameObject() *GameObject {
	return c.owner
}

// Enabled reports whether the component is live and switched on.
func (c *ComponentBase) Enabled() bool {
	return !c.disabled && !c.Destroyed()
}

// SetEnabled switches the component on or off.
func (c *ComponentBase) SetEnabled(enabled bool) {
	c.disabled = !enabled
}

// DisplayName returns the owner's name, as components have none of their own.
func (c *ComponentBase) DisplayName() string {
	if c.owner != nil {
		return c.owner.DisplayName()
	}
	return c.Object.DisplayName()
}

// WireProperties exposes the owner and enabled state. Both fail once the
// component has been destroyed.
func (c *ComponentBase) WireProperties() []core.Property {
	return []core.Property{
		{Name: "GameObject", Get: func() (any, error) {
			if err := c.alive(); err != nil {
				return nil, err
			}
			return c.owner, nil
		}},
		{Name: "Enabled", Get: func() (any, error) {
			if err := c.alive(); err != nil {
				return nil, err
			}
			return c.Enabled(), nil
		}},
	}
}

func (c *ComponentBase) attach(owner *GameObject) {
	if c.id == 0 {
		c.init(owner.DisplayName())
	}
	c.owner = owner
}

func (c *ComponentBase) destroy() {
	c.destroyed.Store(true)
}

// Behaviour is a scripted component with free-form serialized fields.
type Behaviour struct {
	ComponentBase
	Script string
	Fields map[string]any
}

// MeshRenderer draws a mesh with a list of materials.
type MeshRenderer struct {
	ComponentBase
	Mesh      string
	Materials []string
	Tint      Color
}

// LightKind selects the light model.
type LightKind string

const (
	Directional LightKind = "directional"
	Point       LightKind = "point"
	Spot        LightKind = "spot"
)

// Light illuminates the scene.
type Light struct {
	ComponentBase
	Kind      LightKind
	Color     Color
	Intensity float64
	Range     float64 `wire:",omitempty"`
}

// Camera renders the scene from its transform, optionally tracking a target.
type Camera struct {
	ComponentBase
	FieldOfView float64
	Near        float64
	Far         float64
	Background  Color
	Target      *GameObject
}
