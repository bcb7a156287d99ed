package simulation

import (
	"math/rand/v2"
	"time"

	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

// seedStream decorrelates the two PCG words derived from a single seed.
const seedStream = 0x9E3779B97F4A7C15

// Simulation is a flock of agents evolving inside a bounded world.
type Simulation struct {
	ID string

	// The seed the random source was created with.
	Seed uint64

	// The number of successful steps.
	Tick uint64

	Agents []*models.Agent
	Params Params

	rng *rand.Rand
}

// New creates a simulation with a randomly initialized population.
func New(conf Config) (*Simulation, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	s := newSimulation(conf)
	s.Agents = models.Initialize(
		conf.Agents,
		s.Params.Bounds,
		conf.VelocityRange,
		conf.Palette,
		conf.Radius,
		s.rng,
	)
	return s, nil
}

// NewFromScenario creates a simulation whose population and world size come
// from the given scenario. Values missing from the scenario are taken from
// conf.
func NewFromScenario(conf Config, sc *Scenario) (*Simulation, error) {
	if sc == nil {
		return nil, errors.New("scenario is nil").WithType(ErrTypeInvalidScenario)
	}

	if sc.Bounds.Width != 0 {
		conf.Width = sc.Bounds.Width
	}
	if sc.Bounds.Height != 0 {
		conf.Height = sc.Bounds.Height
	}
	conf.Agents = len(sc.Agents)

	if err := conf.Validate(); err != nil {
		return nil, errors.New("invalid scenario").
			WithType(ErrTypeInvalidScenario).
			Wrap(err)
	}

	s := newSimulation(conf)
	s.Agents = sc.agents(conf.Radius)
	return s, nil
}

func newSimulation(conf Config) *Simulation {
	seed := conf.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Simulation{
		ID:     uuid.NewString(),
		Seed:   seed,
		Params: conf.Params(),
		rng:    rand.New(rand.NewPCG(seed, seed^seedStream)),
	}
}

// Step advances the simulation by one tick and draws every agent into r. The
// tick counter is only increased when the step succeeds.
func (s *Simulation) Step(r Renderer) (StepStats, error) {
	stats, err := Step(s.Agents, s.Params, s.rng, r)
	if err != nil {
		return StepStats{}, errors.New("simulation step failed").
			WithType(errors.Type(err)).
			WithTag("simulation_id", s.ID).
			WithTag("tick", s.Tick).
			Wrap(err)
	}

	s.Tick++
	return stats, nil
}
