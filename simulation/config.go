package simulation

import (
	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/flock/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidConfig   = "invalid-config"
	ErrTypeInvalidScenario = "invalid-scenario"
)

// MinWorldExtent is the size the world width and height must exceed. Agents
// wrapping around an edge re-enter 1 unit inside the opposite one.
const MinWorldExtent = 2

// DefaultPalette is the palette agents pick their color from when none is
// configured.
var DefaultPalette = []string{"#3AB795", "#A0E8AF", "#86BAA1", "#FFCF56", "#177E89"}

// Config contains the tunables of a simulation.
type Config struct {
	// The number of agents created at start.
	Agents int

	// The size of the simulated world. Its top-left corner is the origin.
	Width  float64
	Height float64

	// Initial velocity components are picked in [-VelocityRange, VelocityRange].
	VelocityRange float64

	// The speed of every agent after steering.
	MaxSpeed float64

	// The number of agents a quadtree node holds before splitting.
	Capacity int

	// Whether nodes at or under 1x1 refuse to split. A step whose agents
	// crowd such a node then fails with an index-exhausted error.
	LimitArea bool

	// The neighborhood distance.
	Threshold float64

	// Alignment, cohesion and separation weights.
	Weights [3]float64

	// Display attributes.
	Radius  float64
	Palette []string

	// The seed of the random source. 0 picks a time based seed.
	Seed uint64
}

func DefaultConfig() Config {
	return Config{
		Agents:        1000,
		Width:         1080,
		Height:        1080,
		VelocityRange: 1,
		MaxSpeed:      2,
		Capacity:      4,
		Threshold:     20,
		Weights:       [3]float64{0.3, 0.3, 0.3},
		Radius:        10,
		Palette:       DefaultPalette,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Agents < 0:
		return errors.New("agent count is negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("agents", c.Agents)

	case c.Width <= MinWorldExtent || c.Height <= MinWorldExtent:
		return errors.New("world size is too small").
			WithType(ErrTypeInvalidConfig).
			WithTag("width", c.Width).
			WithTag("height", c.Height).
			WithTag("min_extent", MinWorldExtent)

	case c.Capacity < 1:
		return errors.New("quadtree capacity must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("capacity", c.Capacity)

	case c.Threshold <= 0:
		return errors.New("neighbor threshold must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("threshold", c.Threshold)

	case c.MaxSpeed <= 0:
		return errors.New("max speed must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_speed", c.MaxSpeed)

	case c.VelocityRange < 0:
		return errors.New("velocity range is negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("velocity_range", c.VelocityRange)
	}

	return nil
}

// Bounds returns the rect of the simulated world.
func (c Config) Bounds() spatial.Rect {
	return spatial.NewRect(0, 0, c.Width, c.Height)
}

// Params returns the step parameters matching the config.
func (c Config) Params() Params {
	return Params{
		Bounds:    c.Bounds(),
		Capacity:  c.Capacity,
		LimitArea: c.LimitArea,
		Flock: models.FlockParams{
			Threshold: c.Threshold,
			MaxSpeed:  c.MaxSpeed,
			Weights:   models.NewWeights(c.Weights),
		},
	}
}
