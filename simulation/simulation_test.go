package simulation

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		config func(c *Config)
	}{
		{name: "negative agents", config: func(c *Config) { c.Agents = -1 }},
		{name: "zero width", config: func(c *Config) { c.Width = 0 }},
		{name: "negative height", config: func(c *Config) { c.Height = -10 }},
		{name: "width at the wrap margin", config: func(c *Config) { c.Width = MinWorldExtent }},
		{name: "height under the wrap margin", config: func(c *Config) { c.Height = 1.5 }},
		{name: "zero capacity", config: func(c *Config) { c.Capacity = 0 }},
		{name: "zero threshold", config: func(c *Config) { c.Threshold = 0 }},
		{name: "zero max speed", config: func(c *Config) { c.MaxSpeed = 0 }},
		{name: "negative velocity range", config: func(c *Config) { c.VelocityRange = -1 }},
	}

	require.NoError(t, DefaultConfig().Validate())

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			conf := DefaultConfig()
			test.config(&conf)

			err := conf.Validate()
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidConfig))
		})
	}
}

func TestConfigParams(t *testing.T) {
	conf := DefaultConfig()
	params := conf.Params()

	require.Equal(t, float64(1080), params.Bounds.Width())
	require.Equal(t, float64(1080), params.Bounds.Height())
	require.Equal(t, 4, params.Capacity)
	require.False(t, params.LimitArea)
	require.Equal(t, float64(20), params.Flock.Threshold)
	require.Equal(t, float64(2), params.Flock.MaxSpeed)
	require.Equal(t, 0.3, params.Flock.Weights.Separation)
}

func TestNew(t *testing.T) {
	t.Run("creates the population", func(t *testing.T) {
		conf := DefaultConfig()
		conf.Agents = 25

		sim, err := New(conf)
		require.NoError(t, err)
		require.NotEmpty(t, sim.ID)
		require.NotZero(t, sim.Seed)
		require.Zero(t, sim.Tick)
		require.Len(t, sim.Agents, 25)

		for _, a := range sim.Agents {
			require.Contains(t, DefaultPalette, a.Color)
			require.Equal(t, conf.Radius, a.Radius)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		conf := DefaultConfig()
		conf.Width = 0

		_, err := New(conf)
		require.Error(t, err)
	})
}

func TestSimulationStep(t *testing.T) {
	conf := DefaultConfig()
	conf.Agents = 50
	conf.Seed = 42

	sim, err := New(conf)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		stats, err := sim.Step(nil)
		require.NoError(t, err)
		require.Equal(t, 50, stats.Agents)
		require.Equal(t, uint64(i), sim.Tick)
	}
}

func TestSimulationDigest(t *testing.T) {
	newSim := func(seed uint64) *Simulation {
		conf := DefaultConfig()
		conf.Agents = 200
		conf.Seed = seed

		sim, err := New(conf)
		require.NoError(t, err)
		return sim
	}

	a := newSim(42)
	b := newSim(42)
	c := newSim(43)
	require.Equal(t, a.Digest(), b.Digest())
	require.NotEqual(t, a.Digest(), c.Digest())

	initial := a.Digest()
	for i := 0; i < 20; i++ {
		_, errA := a.Step(nil)
		_, errB := b.Step(nil)
		require.Equal(t, errA == nil, errB == nil)
	}

	require.Equal(t, a.Digest(), b.Digest())
	require.NotEqual(t, initial, a.Digest())
	require.Equal(t, a.Tick, b.Tick)
}
