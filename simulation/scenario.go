package simulation

import (
	"io"
	"os"

	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario describes a hand crafted starting population.
//
//	bounds:
//	  width: 200
//	  height: 200
//	agents:
//	  - {x: 10, y: 10, vx: 1, vy: 0, color: "#3AB795"}
type Scenario struct {
	Bounds ScenarioBounds  `yaml:"bounds"`
	Agents []ScenarioAgent `yaml:"agents"`
}

type ScenarioBounds struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type ScenarioAgent struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	VX     float64 `yaml:"vx"`
	VY     float64 `yaml:"vy"`
	Color  string  `yaml:"color"`
	Radius float64 `yaml:"radius"`
}

// LoadScenario decodes a YAML scenario.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var sc Scenario
	if err := yaml.NewDecoder(r).Decode(&sc); err != nil {
		return nil, errors.New("decoding scenario failed").
			WithType(ErrTypeInvalidScenario).
			Wrap(err)
	}

	if sc.Bounds.Width < 0 || sc.Bounds.Height < 0 {
		return nil, errors.New("scenario bounds are negative").
			WithType(ErrTypeInvalidScenario).
			WithTag("width", sc.Bounds.Width).
			WithTag("height", sc.Bounds.Height)
	}
	return &sc, nil
}

// LoadScenarioFile decodes the YAML scenario located at the given path.
func LoadScenarioFile(filename string) (*Scenario, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.New("opening scenario failed").
			WithTag("filename", filename).
			Wrap(err)
	}
	defer f.Close()

	sc, err := LoadScenario(f)
	if err != nil {
		return nil, errors.New("loading scenario failed").
			WithType(ErrTypeInvalidScenario).
			WithTag("filename", filename).
			Wrap(err)
	}
	return sc, nil
}

func (sc *Scenario) agents(defaultRadius float64) []*models.Agent {
	agents := make([]*models.Agent, len(sc.Agents))
	for i, a := range sc.Agents {
		radius := a.Radius
		if radius <= 0 {
			radius = defaultRadius
		}
		agents[i] = models.NewAgent(a.X, a.Y, a.VX, a.VY, a.Color, radius)
	}
	return agents
}
