package scene

import (
	"slices"
	"strings"

	"github.com/entitycache/graphwire/wire/core"
)

// GameObject is an entity in the scene. Its behavior comes from the
// components attached to it.
type GameObject struct {
	Object
	Active bool
	Tag    string
	Layer  int

	transform  *Transform
	components []Component
	scene      *Scene
}

// NewGameObject creates an active, untagged object with its own transform.
func NewGameObject(name string) *GameObject {
	g := &GameObject{Active: true, Tag: "Untagged"}
	g.init(name)
	g.transform = newTransform(g)
	return g
}

// Transform returns the object's transform.
func (g *GameObject) Transform() (*Transform, error) {
	if err := g.alive(); err != nil {
		return nil, err
	}
	return g.transform, nil
}

// Components returns the transform followed by every attached component.
func (g *GameObject) Components() ([]Component, error) {
	if err := g.alive(); err != nil {
		return nil, err
	}
	out := make([]Component, 0, len(g.components)+1)
	out = append(out, g.transform)
	return append(out, g.components...), nil
}

// AddComponent attaches c to g and returns it.
func (g *GameObject) AddComponent(c Component) Component {
	c.attach(g)
	g.components = append(g.components, c)
	return c
}

// Scene returns the scene the object belongs to, if any.
func (g *GameObject) Scene() *Scene {
	return g.scene
}

// SetParent moves g under parent in the hierarchy. A nil parent detaches it.
func (g *GameObject) SetParent(parent *GameObject) {
	if parent == nil {
		g.transform.SetParent(nil)
		return
	}
	g.transform.SetParent(parent.transform)
	g.scene = parent.scene
}

// Children returns the objects directly below g.
func (g *GameObject) Children() []*GameObject {
	children := g.transform.Children()
	out := make([]*GameObject, 0, len(children))
	for _, c := range children {
		out = append(out, c.GameObject())
	}
	return out
}

// Path returns the slash separated hierarchy path of g.
func (g *GameObject) Path() string {
	var names []string
	for t := g.transform; t != nil; t = t.parent {
		names = append(names, t.GameObject().DisplayName())
	}
	slices.Reverse(names)
	return strings.Join(names, "/")
}

// WireProperties exposes the transform and components, which fail once the
// object has been destroyed.
func (g *GameObject) WireProperties() []core.Property {
	return []core.Property{
		{Name: "Transform", Get: func() (any, error) { return g.Transform() }},
		{Name: "Components", Get: func() (any, error) {
			components, err := g.Components()
			if err != nil {
				return nil, err
			}
			return components[1:], nil
		}},
	}
}

// Destroy marks g, its components and its descendants as destroyed.
func Destroy(g *GameObject) {
	if g == nil {
		return
	}
	for _, child := range g.Children() {
		Destroy(child)
	}
	g.destroyed.Store(true)
	g.transform.destroy()
	for _, c := range g.components {
		c.destroy()
	}
}
