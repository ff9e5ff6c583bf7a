package scene

import (
	"errors"
	"testing"
)

func TestDemoHierarchy(t *testing.T) {
	s := Demo()

	names := make([]string, 0)
	for _, g := range s.GameObjects() {
		names = append(names, g.DisplayName())
	}
	want := []string{"World", "Player", "Main Camera", "Sun"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}

	player := s.Find("Player")
	if player == nil {
		t.Fatalf("expected to find Player")
	}
	if got := player.Path(); got != "World/Player" {
		t.Fatalf("unexpected path %q", got)
	}
	if player.Scene() != s {
		t.Fatalf("expected child to inherit the scene")
	}
	if s.Find("Nobody") != nil {
		t.Fatalf("expected no match for unknown name")
	}
}

func TestReparenting(t *testing.T) {
	a := NewGameObject("a")
	b := NewGameObject("b")
	c := NewGameObject("c")

	c.SetParent(a)
	c.SetParent(b)
	if len(a.Children()) != 0 || len(b.Children()) != 1 {
		t.Fatalf("expected c to move from a to b")
	}
	c.SetParent(nil)
	if len(b.Children()) != 0 {
		t.Fatalf("expected c to be detached")
	}
}

func TestComponentsShareOwnerIdentity(t *testing.T) {
	g := NewGameObject("g")
	light := g.AddComponent(&Light{Kind: Point}).(*Light)

	if light.GameObject() != g {
		t.Fatalf("expected component owner to be set")
	}
	if light.DisplayName() != "g" {
		t.Fatalf("expected component to report its owner's name, got %q", light.DisplayName())
	}
	if light.InstanceID() == 0 || light.InstanceID() == g.InstanceID() {
		t.Fatalf("expected component to have its own instance id")
	}
	components, err := g.Components()
	if err != nil || len(components) != 2 {
		t.Fatalf("expected transform and light, got %d (%v)", len(components), err)
	}
}

func TestDestroyMarksObjectsStale(t *testing.T) {
	s := Demo()
	world := s.Find("World")
	player := s.Find("Player")
	Destroy(world)

	if !player.Destroyed() {
		t.Fatalf("expected descendants to be destroyed")
	}
	if _, err := player.Transform(); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("expected ErrDestroyed, got %v", err)
	}
	for _, prop := range player.WireProperties() {
		if _, err := prop.Get(); !errors.Is(err, ErrDestroyed) {
			t.Fatalf("expected %s to fail with ErrDestroyed, got %v", prop.Name, err)
		}
	}
	if s.Find("Sun").Destroyed() {
		t.Fatalf("expected unrelated objects to stay alive")
	}
}

func TestVectorMath(t *testing.T) {
	v := Vector3{X: 3, Y: 4}
	if v.Magnitude() != 5 {
		t.Fatalf("expected magnitude 5, got %v", v.Magnitude())
	}
	n := v.Normalized()
	if n.X != 0.6 || n.Y != 0.8 {
		t.Fatalf("unexpected normalized vector %+v", n)
	}
	if (Vector3{}).Normalized() != (Vector3{}) {
		t.Fatalf("expected zero vector to normalize to itself")
	}
}
