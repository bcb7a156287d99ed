package smoketest

import (
	"context"
	"io"
	"net/http"

	"github.com/aukilabs/flock/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest = "bad-request"
	ErrTypeCanceled   = "smoke-test-canceled"

	defaultTicks     = 100
	defaultMaxAgents = 2000
	defaultMaxTicks  = 1000

	// The default bound of agents multiplied by ticks.
	defaultMaxWork = 200000
)

type Options struct {
	// The config the smoke test simulations derive from.
	Config simulation.Config

	// Limits of a smoke test request. Defaults are used when 0. MaxWork
	// bounds the agent count multiplied by the tick count.
	MaxAgents int
	MaxTicks  int
	MaxWork   int
}

// Request is the body of a smoke test request. Zero values are replaced by the
// options config.
type Request struct {
	Agents int    `json:"agents"`
	Ticks  int    `json:"ticks"`
	Seed   uint64 `json:"seed"`
}

type Result struct {
	SimulationID   string  `json:"simulation_id"`
	Seed           uint64  `json:"seed"`
	Agents         int     `json:"agents"`
	Ticks          int     `json:"ticks"`
	AbortedTicks   int     `json:"aborted_ticks"`
	TicksPerSecond float64 `json:"ticks_per_second"`
	MeanNeighbors  float64 `json:"mean_neighbors"`
	Polarization   float64 `json:"polarization"`
	Digest         uint64  `json:"digest"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleSmokeTest runs a headless simulation and responds with its result. The
// run stops when the request or the given context is canceled.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		b, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, errors.New("reading body failed").Wrap(err))
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				writeError(w, http.StatusBadRequest, errors.New("decoding smoke test request failed").
					WithType(ErrTypeBadRequest).
					Wrap(err))
				return
			}
		}

		conf, ticks, err := opts.config(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		runCtx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		res, err := RunSmokeTest(runCtx, conf, ticks)
		if errors.IsType(err, ErrTypeCanceled) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		logs.WithTag("simulation_id", res.SimulationID).
			WithTag("agents", res.Agents).
			WithTag("ticks", res.Ticks).
			WithTag("aborted_ticks", res.AbortedTicks).
			WithTag("ticks_per_second", res.TicksPerSecond).
			Info("smoke test complete")

		writeJSON(w, http.StatusOK, res)
	}
}

func (o Options) config(req Request) (simulation.Config, int, error) {
	maxAgents := o.MaxAgents
	if maxAgents <= 0 {
		maxAgents = defaultMaxAgents
	}
	maxTicks := o.MaxTicks
	if maxTicks <= 0 {
		maxTicks = defaultMaxTicks
	}
	maxWork := o.MaxWork
	if maxWork <= 0 {
		maxWork = defaultMaxWork
	}

	conf := o.Config
	if req.Agents != 0 {
		conf.Agents = req.Agents
	}
	if req.Seed != 0 {
		conf.Seed = req.Seed
	}

	ticks := req.Ticks
	if ticks == 0 {
		ticks = defaultTicks
	}

	switch {
	case conf.Agents < 0 || conf.Agents > maxAgents:
		return conf, 0, errors.New("agent count out of range").
			WithType(ErrTypeBadRequest).
			WithTag("agents", conf.Agents).
			WithTag("max_agents", maxAgents)

	case ticks < 0 || ticks > maxTicks:
		return conf, 0, errors.New("tick count out of range").
			WithType(ErrTypeBadRequest).
			WithTag("ticks", ticks).
			WithTag("max_ticks", maxTicks)

	case conf.Agents*ticks > maxWork:
		return conf, 0, errors.New("smoke test is too large").
			WithType(ErrTypeBadRequest).
			WithTag("agents", conf.Agents).
			WithTag("ticks", ticks).
			WithTag("max_work", maxWork)
	}

	if err := conf.Validate(); err != nil {
		return conf, 0, errors.New("invalid smoke test config").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return conf, ticks, nil
}

// RunSmokeTest runs the given number of ticks of a new simulation. It stops
// early when the context is canceled.
func RunSmokeTest(ctx context.Context, conf simulation.Config, ticks int) (Result, error) {
	sim, err := simulation.New(conf)
	if err != nil {
		return Result{}, err
	}

	runner := simulation.Runner{
		Simulation: sim,
		Headless:   true,
	}

	stats, err := runner.RunTicks(ctx, ticks)
	if err != nil {
		return Result{}, errors.New("smoke test canceled").
			WithType(ErrTypeCanceled).
			WithTag("ticks", stats.Ticks+stats.Aborted).
			Wrap(err)
	}

	return Result{
		SimulationID:   sim.ID,
		Seed:           sim.Seed,
		Agents:         len(sim.Agents),
		Ticks:          stats.Ticks,
		AbortedTicks:   stats.Aborted,
		TicksPerSecond: stats.TicksPerSecond(),
		MeanNeighbors:  stats.MeanNeighbors(),
		Polarization:   stats.Polarization,
		Digest:         sim.Digest(),
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logs.WithTag("status", status).
			Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logs.WithTag("status", status).Error(err)
	} else {
		logs.Warn(err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
