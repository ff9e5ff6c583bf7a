package scene

import (
	"slices"
)

// Scene is a named collection of root objects.
type Scene struct {
	Object
	roots []*GameObject
}

// NewScene creates an empty scene.
func NewScene(name string) *Scene {
	s := &Scene{}
	s.init(name)
	return s
}

// Add places g at the root of the scene.
func (s *Scene) Add(g *GameObject) {
	g.SetParent(nil)
	g.scene = s
	s.roots = append(s.roots, g)
}

// Roots returns the root objects in insertion order.
func (s *Scene) Roots() []*GameObject {
	return slices.Clone(s.roots)
}

// GameObjects returns every object in the scene, depth first.
func (s *Scene) GameObjects() []*GameObject {
	var out []*GameObject
	var walk func(g *GameObject)
	walk = func(g *GameObject) {
		out = append(out, g)
		for _, child := range g.Children() {
			walk(child)
		}
	}
	for _, root := range s.roots {
		walk(root)
	}
	return out
}

// Find returns the first object named name, depth first.
func (s *Scene) Find(name string) *GameObject {
	for _, g := range s.GameObjects() {
		if g.DisplayName() == name {
			return g
		}
	}
	return nil
}

// Demo builds a small scene with a camera tracking the player. The graph is
// cyclic: transforms point back at their owners and parents, the camera
// targets the player and the player's controller references the camera.
func Demo() *Scene {
	s := NewScene("Demo")

	world := NewGameObject("World")
	s.Add(world)

	player := NewGameObject("Player")
	player.Tag = "Player"
	player.SetParent(world)
	player.transform.Position = Vector3{Y: 1}
	player.AddComponent(&MeshRenderer{
		Mesh:      "Capsule",
		Materials: []string{"Default-Material"},
		Tint:      White,
	})
	controller := &Behaviour{
		Script: "PlayerController",
		Fields: map[string]any{"speed": 4.5, "jump_height": 2.0, "grounded": true},
	}
	player.AddComponent(controller)

	camera := NewGameObject("Main Camera")
	camera.Tag = "MainCamera"
	camera.SetParent(world)
	camera.transform.Position = Vector3{Y: 3, Z: -10}
	camera.AddComponent(&Camera{
		FieldOfView: 60,
		Near:        0.3,
		Far:         1000,
		Background:  Color{R: 0.19, G: 0.3, B: 0.47, A: 1},
		Target:      player,
	})
	controller.Fields["camera"] = camera

	sun := NewGameObject("Sun")
	s.Add(sun)
	sun.transform.Rotation = Quaternion{X: 0.408, Y: -0.234, Z: 0.109, W: 0.875}
	sun.AddComponent(&Light{Kind: Directional, Color: White, Intensity: 1.2})

	return s
}
