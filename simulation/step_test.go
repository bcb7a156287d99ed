package simulation

import (
	"math"
	"testing"

	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/flock/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

// constRand always returns the same value. 0.5 means no jitter.
type constRand float64

func (r constRand) Float64() float64 {
	return float64(r)
}

func scaled(v spatial.Vector2, speed float64) spatial.Vector2 {
	return spatial.Mul(v, speed/v.Length())
}

func alignmentParams() Params {
	return Params{
		Bounds:    spatial.NewRect(0, 0, 1080, 1080),
		Capacity:  4,
		LimitArea: true,
		Flock: models.FlockParams{
			Threshold: 5,
			MaxSpeed:  2,
			Weights:   models.NewWeights([3]float64{1, 0, 0}),
		},
	}
}

func cloneAgents(agents []*models.Agent) []models.Agent {
	clones := make([]models.Agent, len(agents))
	for i, a := range agents {
		clones[i] = *a
	}
	return clones
}

func TestStep(t *testing.T) {
	t.Run("agents see updates made earlier in the step", func(t *testing.T) {
		a := models.NewAgent(10, 10, 1, 0, "#3AB795", 1)
		b := models.NewAgent(10, 10.5, 0, 1, "#A0E8AF", 1)
		c := models.NewAgent(500, 500, 1, 1, "#86BAA1", 1)

		stats, err := Step([]*models.Agent{a, b, c}, alignmentParams(), constRand(0.5), nil)
		require.NoError(t, err)
		require.Equal(t, 3, stats.Agents)
		require.Equal(t, 3, stats.Indexed)
		require.Equal(t, 2, stats.Neighbors)

		require.True(t, a.V.EqualWithEpsilon(spatial.Vector2{X: math.Sqrt2, Y: math.Sqrt2}, epsilon))
		require.True(t, a.P.EqualWithEpsilon(spatial.Vector2{X: 10 + math.Sqrt2, Y: 10 + math.Sqrt2}, epsilon))

		bv := scaled(spatial.Vector2{X: math.Sqrt2, Y: 1 + math.Sqrt2}, 2)
		require.True(t, b.V.EqualWithEpsilon(bv, epsilon), "got %+v", b.V)
		require.True(t, b.P.EqualWithEpsilon(spatial.Add(spatial.Vector2{X: 10, Y: 10.5}, bv), epsilon))

		require.True(t, c.V.EqualWithEpsilon(spatial.Vector2{X: math.Sqrt2, Y: math.Sqrt2}, epsilon))
	})

	t.Run("agents are drawn in order after moving", func(t *testing.T) {
		agents := []*models.Agent{
			models.NewAgent(10, 10, 1, 0, "#3AB795", 3),
			models.NewAgent(300, 10, 0, 1, "#A0E8AF", 4),
			models.NewAgent(600, 600, -1, 0, "#86BAA1", 5),
		}

		var recorder FrameRecorder
		_, err := Step(agents, alignmentParams(), constRand(0.5), &recorder)
		require.NoError(t, err)
		require.Len(t, recorder.Frame.Circles, len(agents))

		for i, a := range agents {
			require.Equal(t, Circle{X: a.P.X, Y: a.P.Y, Radius: a.Radius, Color: a.Color}, recorder.Frame.Circles[i])
		}
	})

	t.Run("zero agents", func(t *testing.T) {
		var draws int
		stats, err := Step(nil, alignmentParams(), constRand(0.5), RendererFunc(func(spatial.Vector2, float64, string) {
			draws++
		}))
		require.NoError(t, err)
		require.Zero(t, draws)
		require.Zero(t, stats.Agents)
		require.Zero(t, stats.Polarization)
		require.Zero(t, stats.MeanNeighbors())
	})

	t.Run("exhausted index aborts without mutation", func(t *testing.T) {
		agents := []*models.Agent{
			models.NewAgent(0.3, 0.3, 1, 0, "", 1),
			models.NewAgent(0.3, 0.30001, 0, 1, "", 1),
		}
		before := cloneAgents(agents)

		params := alignmentParams()
		params.Bounds = spatial.NewRect(0, 0, 8, 8)
		params.Capacity = 1

		var draws int
		_, err := Step(agents, params, constRand(0.5), RendererFunc(func(spatial.Vector2, float64, string) {
			draws++
		}))
		require.Error(t, err)
		require.True(t, errors.IsType(err, spatial.ErrTypeIndexExhausted))
		require.Zero(t, draws)
		require.Equal(t, before, cloneAgents(agents))
	})

	t.Run("coincident agents are dropped without the area limit", func(t *testing.T) {
		agents := []*models.Agent{
			models.NewAgent(0.3, 0.3, 1, 0, "", 1),
			models.NewAgent(0.3, 0.3, 0, 1, "", 1),
		}

		params := alignmentParams()
		params.Bounds = spatial.NewRect(0, 0, 8, 8)
		params.Capacity = 1
		params.LimitArea = false

		stats, err := Step(agents, params, constRand(0.5), nil)
		require.NoError(t, err)
		require.Zero(t, stats.Indexed)
		require.True(t, agents[0].P.EqualWithEpsilon(spatial.Vector2{X: 2.3, Y: 0.3}, epsilon))
		require.True(t, agents[1].P.EqualWithEpsilon(spatial.Vector2{X: 0.3, Y: 2.3}, epsilon))
	})

	t.Run("agents outside the bounds still move", func(t *testing.T) {
		a := models.NewAgent(2000, 10, 1, 0, "", 1)

		stats, err := Step([]*models.Agent{a}, alignmentParams(), constRand(0.5), nil)
		require.NoError(t, err)
		require.Zero(t, stats.Indexed)
		require.Zero(t, stats.Neighbors)
		require.True(t, a.P.Equal(spatial.Vector2{X: 1, Y: 10}))
	})

	t.Run("aligned flock is fully polarized", func(t *testing.T) {
		agents := []*models.Agent{
			models.NewAgent(100, 100, 2, 0, "", 1),
			models.NewAgent(400, 400, 1, 0, "", 1),
		}

		stats, err := Step(agents, alignmentParams(), constRand(0.5), nil)
		require.NoError(t, err)
		require.InDelta(t, 1, stats.Polarization, epsilon)
	})
}

func TestStepKeepsAgentsInBounds(t *testing.T) {
	conf := DefaultConfig()
	conf.Agents = 300
	conf.Seed = 3

	sim, err := New(conf)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		_, err := sim.Step(nil)
		require.NoError(t, err)

		for _, a := range sim.Agents {
			require.Greater(t, a.P.X, float64(0))
			require.Less(t, a.P.X, conf.Width)
			require.Greater(t, a.P.Y, float64(0))
			require.Less(t, a.P.Y, conf.Height)
			require.InDelta(t, conf.MaxSpeed, a.Speed(), epsilon)
		}
	}
}
