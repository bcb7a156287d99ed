package simulation

import (
	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/flock/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Params contains the parameters of a single step.
type Params struct {
	Bounds    spatial.Rect
	Capacity  int
	LimitArea bool
	Flock     models.FlockParams
}

// StepStats describes what happened during a step.
type StepStats struct {
	// The number of agents in the population.
	Agents int

	// The number of agents the spatial index retained. Agents on a split
	// seam or outside the bounds are not indexed.
	Indexed int

	// The sum of every agent neighbor count.
	Neighbors int

	// The norm of the mean velocity divided by the max speed.
	Polarization float64

	Index spatial.SpatialDebugInfo
}

// MeanNeighbors returns the average neighbor count per agent.
func (s StepStats) MeanNeighbors() float64 {
	if s.Agents == 0 {
		return 0
	}
	return float64(s.Neighbors) / float64(s.Agents)
}

// Step runs one simulation step over agents, in population order:
//  1. a quadtree is built from the current positions.
//  2. each agent steers against that tree, moves, wraps around the bounds and
//     is drawn.
//
// The tree references the agents, so an agent updated later in the step sees
// the new velocity and position of the agents updated before it, while their
// placement in the tree stays the one of the previous step.
//
// When the tree cannot be built, the error is returned before any agent is
// mutated or drawn.
func Step(agents []*models.Agent, params Params, rng models.Rand, renderer Renderer) (StepStats, error) {
	if renderer == nil {
		renderer = NopRenderer{}
	}

	tree := spatial.NewQuadtree[*models.Agent](params.Bounds, params.Capacity, params.LimitArea)
	for i, a := range agents {
		if err := tree.Insert(a); err != nil {
			return StepStats{}, errors.New("building the spatial index failed").
				WithType(errors.Type(err)).
				WithTag("agent_index", i).
				WithTag("agent_count", len(agents)).
				Wrap(err)
		}
	}

	stats := StepStats{
		Agents: len(agents),
		Index:  tree.GetDebugInfo(),
	}
	stats.Indexed = int(stats.Index.ItemCount)

	var heading spatial.Vector2
	for _, a := range agents {
		stats.Neighbors += a.Follow(tree, params.Flock, rng)
		a.Move(params.Bounds)
		renderer.DrawCircle(a.P, a.Radius, a.Color)
		heading.Add(a.V)
	}

	if len(agents) != 0 && params.Flock.MaxSpeed != 0 {
		stats.Polarization = heading.Length() / (float64(len(agents)) * params.Flock.MaxSpeed)
	}
	return stats, nil
}
