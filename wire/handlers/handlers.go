// Package handlers provides the built-in serialization handlers for the scene
// model and common leaf types.
package handlers

import (
	"reflect"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/entitycache/graphwire/scene"
	"github.com/entitycache/graphwire/wire/core"
)

// Builtin returns every built-in handler. Registries install them on first use.
func Builtin() []core.Handler {
	return []core.Handler{
		core.HandlerFor(GameObject),
		core.HandlerFor(Component),
		core.HandlerFor(Transform),
		core.HandlerFor(Scene),
		core.HandlerFor(Vector3),
		core.HandlerFor(Quaternion),
		core.HandlerFor(Color),
		core.HandlerFor(Time),
	}
}

type entityLike interface {
	core.Identifiable
	core.Named
}

// entity starts every host object mapping with its type and identity. The
// display name is added above Basic.
func entity(v entityLike, depth core.Depth) *core.Object {
	out := core.NewObject(10).
		Set("type", core.TypeName(reflect.TypeOf(v))).
		Set("instance_id", v.InstanceID())
	if depth > core.DepthBasic {
		out.Set("name", v.DisplayName())
	}
	return out
}

func destroyed(v entityLike) error {
	return errors.Wrapf(scene.ErrDestroyed, "%s %q", core.TypeName(reflect.TypeOf(v)), v.DisplayName())
}

// GameObject serializes an entity with its transform and components.
func GameObject(w core.Walker, g *scene.GameObject, depth core.Depth) (*core.Object, error) {
	out := entity(g, depth)
	if depth == core.DepthBasic {
		return out, nil
	}

	transform, err := g.Transform()
	if err != nil {
		return nil, err
	}
	components, err := g.Components()
	if err != nil {
		return nil, err
	}

	out.Set("active", g.Active).
		Set("tag", g.Tag).
		Set("layer", int64(g.Layer))
	out.Set("transform", w.Member("transform", transform))
	out.Set("components", w.Member("components", components[1:]))

	if depth >= core.DepthDeep {
		out.Set("path", g.Path())
		if s := g.Scene(); s != nil {
			out.Set("scene", w.Reference(s))
		}
	}
	return out, nil
}

// Component serializes any attached component through the reflective member
// dump, so new component types need no handler of their own.
func Component(w core.Walker, c scene.Component, depth core.Depth) (*core.Object, error) {
	if c.Destroyed() {
		return nil, destroyed(c)
	}
	out := entity(c, depth)
	if depth == core.DepthBasic {
		return out, nil
	}
	w.Members(out, c)
	return out, nil
}

// Transform serializes a transform. It is registered for the exact type and
// therefore wins over the Component handler.
func Transform(w core.Walker, t *scene.Transform, depth core.Depth) (*core.Object, error) {
	if t.Destroyed() {
		return nil, destroyed(t)
	}
	out := entity(t, depth)
	if depth == core.DepthBasic {
		return out, nil
	}

	out.Set("position", w.Member("position", t.Position))
	out.Set("rotation", w.Member("rotation", t.Rotation))
	out.Set("scale", w.Member("scale", t.Scale))

	if depth >= core.DepthDeep {
		out.Set("parent", w.Member("parent", t.Parent()))
		out.Set("game_object", w.Member("game_object", t.GameObject()))
	} else {
		out.Set("parent", w.Reference(t.Parent()))
		out.Set("game_object", w.Reference(t.GameObject()))
	}
	out.Set("children", w.Member("children", t.Children()))
	return out, nil
}

// Scene serializes a scene and its root objects.
func Scene(w core.Walker, s *scene.Scene, depth core.Depth) (*core.Object, error) {
	out := entity(s, depth)
	if depth == core.DepthBasic {
		return out, nil
	}
	out.Set("object_count", int64(len(s.GameObjects())))
	out.Set("roots", w.Member("roots", s.Roots()))
	return out, nil
}

// Vector3 renders the components; Deep adds the magnitude.
func Vector3(_ core.Walker, v scene.Vector3, depth core.Depth) (*core.Object, error) {
	out := core.NewObject(4).Set("x", v.X).Set("y", v.Y).Set("z", v.Z)
	if depth >= core.DepthDeep {
		out.Set("magnitude", v.Magnitude())
	}
	return out, nil
}

// Quaternion renders the rotation components.
func Quaternion(_ core.Walker, q scene.Quaternion, _ core.Depth) (*core.Object, error) {
	return core.NewObject(4).Set("x", q.X).Set("y", q.Y).Set("z", q.Z).Set("w", q.W), nil
}

// Color renders the RGBA channels.
func Color(_ core.Walker, c scene.Color, _ core.Depth) (*core.Object, error) {
	return core.NewObject(4).Set("r", c.R).Set("g", c.G).Set("b", c.B).Set("a", c.A), nil
}

// Time renders an instant in RFC 3339 with nanoseconds. Deep adds the zone.
func Time(_ core.Walker, t time.Time, depth core.Depth) (*core.Object, error) {
	out := core.NewObject(3).
		Set("iso8601", t.Format(time.RFC3339Nano)).
		Set("unix_nano", t.UnixNano())
	if depth >= core.DepthDeep {
		out.Set("location", t.Location().String())
	}
	return out, nil
}
