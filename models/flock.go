package models

import (
	"math"

	"github.com/aukilabs/flock/spatial"
)

// Weights balances the alignment, cohesion and separation steering vectors.
type Weights struct {
	Alignment  float64
	Cohesion   float64
	Separation float64
}

// NewWeights builds weights from an [alignment, cohesion, separation] triple.
func NewWeights(w [3]float64) Weights {
	return Weights{
		Alignment:  w[0],
		Cohesion:   w[1],
		Separation: w[2],
	}
}

// FlockParams contains the parameters of the steering rule.
type FlockParams struct {
	// The distance under which another agent is part of the neighborhood.
	Threshold float64

	// The speed every agent moves at after steering.
	MaxSpeed float64

	Weights Weights
}

// Follow steers the agent according to its neighborhood in the given tree and
// returns the number of neighbors that were taken into account.
//
// Neighbors are read through the tree references: an agent that was already
// updated during the current tick contributes its new velocity and position.
func (a *Agent) Follow(tree *spatial.Quadtree[*Agent], params FlockParams, rng Rand) int {
	if tree.Empty() {
		// nothing was indexed, there is no agent to steer
		return 0
	}

	var alignment, cohesion, separation spatial.Vector2
	var n int

	area := spatial.SquareAround(a.P, params.Threshold)
	thresholdSquared := params.Threshold * params.Threshold

	for _, p := range tree.Query(area) {
		if p == a {
			continue
		}

		if spatial.Sub(a.P, p.P).LengthSquared() >= thresholdSquared {
			continue
		}

		alignment.Add(p.V)
		cohesion.Add(p.P)
		separation.Add(spatial.Sub(p.P, a.P))
		n++
	}

	if n != 0 {
		count := float64(n)
		alignment = spatial.Div(alignment, count)
		cohesion = spatial.Sub(spatial.Div(cohesion, count), a.P)
		separation = spatial.Mul(spatial.Div(separation, count), -1)

		w := params.Weights
		a.V.Add(spatial.Vector2{
			X: w.Alignment*alignment.X + w.Cohesion*cohesion.X + w.Separation*separation.X,
			Y: w.Alignment*alignment.Y + w.Cohesion*cohesion.Y + w.Separation*separation.Y,
		})
	}

	a.V.X += rng.Float64()*2 - 1
	a.V.Y += rng.Float64()*2 - 1

	a.V = clampSpeed(a.V, params.MaxSpeed, rng)
	return n
}

// clampSpeed rescales v to the given speed. A zero vector is replaced by a
// random direction.
func clampSpeed(v spatial.Vector2, speed float64, rng Rand) spatial.Vector2 {
	length := v.Length()
	if length == 0 || math.IsNaN(length) {
		sin, cos := math.Sincos(2 * math.Pi * rng.Float64())
		return spatial.Vector2{X: cos * speed, Y: sin * speed}
	}
	return spatial.Mul(v, speed/length)
}
