package models

import (
	"math"

	"github.com/aukilabs/flock/spatial"
)

// DefaultRadius is the display radius of an agent when none is given.
const DefaultRadius = 2

// Rand is a uniform random source over [0, 1).
type Rand interface {
	Float64() float64
}

// Agent is a member of the flock. Color and Radius are only used for display.
type Agent struct {
	P spatial.Vector2
	V spatial.Vector2

	Color  string
	Radius float64
}

func NewAgent(x, y, vx, vy float64, color string, radius float64) *Agent {
	if radius <= 0 {
		radius = DefaultRadius
	}

	return &Agent{
		P:      spatial.Vector2{X: x, Y: y},
		V:      spatial.Vector2{X: vx, Y: vy},
		Color:  color,
		Radius: radius,
	}
}

func (a *Agent) Position() spatial.Vector2 {
	return a.P
}

func (a *Agent) Speed() float64 {
	return a.V.Length()
}

// Move integrates the position of the agent and wraps it around the bounds.
// A coordinate reaching the far edge re-enters 1 unit past the near edge, a
// coordinate reaching the near edge re-enters 1 unit before the far edge.
func (a *Agent) Move(bounds spatial.Rect) {
	a.P.Add(a.V)

	if a.P.X >= bounds.B.X {
		a.P.X = bounds.A.X + 1
	}
	if a.P.X <= bounds.A.X {
		a.P.X = bounds.B.X - 1
	}
	if a.P.Y >= bounds.B.Y {
		a.P.Y = bounds.A.Y + 1
	}
	if a.P.Y <= bounds.A.Y {
		a.P.Y = bounds.B.Y - 1
	}
}

// Initialize creates count agents placed uniformly inside bounds, with each
// velocity component uniform in [-velocityRange, velocityRange] and a color
// picked from palette. A count under 1 gives an empty population.
func Initialize(count int, bounds spatial.Rect, velocityRange float64, palette []string, radius float64, rng Rand) []*Agent {
	if count <= 0 {
		return []*Agent{}
	}

	agents := make([]*Agent, count)
	for i := range agents {
		x := bounds.A.X + rng.Float64()*bounds.Width()
		y := bounds.A.Y + rng.Float64()*bounds.Height()
		vx := (rng.Float64()*2 - 1) * velocityRange
		vy := (rng.Float64()*2 - 1) * velocityRange

		var color string
		if len(palette) != 0 {
			color = palette[int(math.Floor(rng.Float64()*float64(len(palette))))%len(palette)]
		}

		agents[i] = NewAgent(x, y, vx, vy, color, radius)
	}
	return agents
}
