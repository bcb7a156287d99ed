package spatial

import (
	"math"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Vector2 is a 2D vector used for positions and velocities.
type Vector2 struct {
	X float64
	Y float64
}

func (v1 Vector2) EqualWithEpsilon(v2 Vector2, epsilon float64) bool {
	return math.Abs(v1.X-v2.X) <= epsilon &&
		math.Abs(v1.Y-v2.Y) <= epsilon
}

func (v1 Vector2) Equal(v2 Vector2) bool {
	return v1.X == v2.X && v1.Y == v2.Y
}

func (v1 *Vector2) Add(v2 Vector2) {
	v1.X += v2.X
	v1.Y += v2.Y
}

func Add(a Vector2, b Vector2) Vector2 {
	return Vector2{a.X + b.X, a.Y + b.Y}
}

func Sub(a Vector2, b Vector2) Vector2 {
	return Vector2{a.X - b.X, a.Y - b.Y}
}

func Mul(a Vector2, s float64) Vector2 {
	return Vector2{a.X * s, a.Y * s}
}

func Div(a Vector2, s float64) Vector2 {
	return Vector2{a.X / s, a.Y / s}
}

func (a Vector2) LengthSquared() float64 {
	return a.X*a.X + a.Y*a.Y
}

func (a Vector2) Length() float64 {
	return math.Sqrt(a.LengthSquared())
}

func (a Vector2) Dot(b Vector2) float64 {
	return a.X*b.X + a.Y*b.Y
}

// HasPosition is implemented by anything that can be placed in a spatial
// partition.
type HasPosition interface {
	Position() Vector2
}

// Position makes a plain vector usable as a point in containment checks.
func (v Vector2) Position() Vector2 {
	return v
}
