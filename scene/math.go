package scene

import (
	"math"

	"github.com/entitycache/graphwire/wire/core"
)

// Vector3 is a point or direction in scene space.
type Vector3 struct {
	X, Y, Z float64
}

// Magnitude returns the Euclidean length of v.
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalized returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vector3) Normalized() Vector3 {
	m := v.Magnitude()
	if m == 0 {
		return v
	}
	return Vector3{X: v.X / m, Y: v.Y / m, Z: v.Z / m}
}

// WireProperties exposes the computed accessors. Normalized yields a fresh
// Vector3 on every read, which the serializer skips by name.
func (v Vector3) WireProperties() []core.Property {
	return []core.Property{
		{Name: "Magnitude", Get: func() (any, error) { return v.Magnitude(), nil }},
		{Name: "Normalized", Get: func() (any, error) { return v.Normalized(), nil }},
	}
}

// Quaternion is a rotation.
type Quaternion struct {
	X, Y, Z, W float64
}

// Identity is the rotation that does nothing.
var Identity = Quaternion{W: 1}

// Color is a linear RGBA color.
type Color struct {
	R, G, B, A float64
}

// White is opaque white.
var White = Color{R: 1, G: 1, B: 1, A: 1}
