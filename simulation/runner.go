package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/flock/featureflag"
	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// FrameHandler is called with every frame produced by a runner. Frame
// handlers are called sequentially from the simulation goroutine and must not
// block.
type FrameHandler func(Frame)

// Runner steps a simulation at a fixed rate and dispatches the produced frames
// to the registered frame handlers.
type Runner struct {
	Simulation *Simulation

	// The duration between two steps.
	FrameDuration time.Duration

	// The duration between two summary logs. Summaries are disabled when 0.
	SummaryInterval time.Duration

	FeatureFlags featureflag.FeatureFlag

	// Headless runners do not report their steps to the prometheus metrics.
	// They are meant for one-off runs next to the served simulation.
	Headless bool

	initOnce        sync.Once
	frameHandlerIDs models.SequentialIDGenerator
	frameHandlers   map[uint32]FrameHandler
	frameMutex      sync.RWMutex

	summaryMutex sync.Mutex
	summary      RunStats
}

// RunStats aggregates the outcome of several ticks.
type RunStats struct {
	Ticks     int
	Aborted   int
	Neighbors int
	Agents    int

	// The time spent stepping the simulation.
	Elapsed time.Duration
	Slowest time.Duration

	// The polarization of the last successful step.
	Polarization float64
}

// MeanNeighbors returns the average neighbor count per agent and per tick.
func (s RunStats) MeanNeighbors() float64 {
	if s.Agents == 0 {
		return 0
	}
	return float64(s.Neighbors) / float64(s.Agents)
}

// TicksPerSecond returns the step throughput, not accounting for the frame
// duration wait.
func (s RunStats) TicksPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Ticks) / s.Elapsed.Seconds()
}

func (s *RunStats) add(stats StepStats, elapsed time.Duration, err error) {
	s.Elapsed += elapsed
	if elapsed > s.Slowest {
		s.Slowest = elapsed
	}

	if err != nil {
		s.Aborted++
		return
	}

	s.Ticks++
	s.Neighbors += stats.Neighbors
	s.Agents += stats.Agents
	s.Polarization = stats.Polarization
}

func (r *Runner) init() {
	r.initOnce.Do(func() {
		r.frameHandlers = make(map[uint32]FrameHandler)
	})
}

// HandleFrame registers h to be called with every produced frame. The returned
// function unregisters it.
func (r *Runner) HandleFrame(h FrameHandler) (cancel func()) {
	r.init()

	r.frameMutex.Lock()
	defer r.frameMutex.Unlock()

	id := r.frameHandlerIDs.New()
	r.frameHandlers[id] = h
	frameHandlerCount.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.frameMutex.Lock()
			defer r.frameMutex.Unlock()

			delete(r.frameHandlers, id)
			r.frameHandlerIDs.Reuse(id)
			frameHandlerCount.Dec()
		})
	}
}

// Run steps the simulation every frame duration until the context is
// canceled. Aborted steps are logged and skipped.
func (r *Runner) Run(ctx context.Context) error {
	if r.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("frame_duration", r.FrameDuration)
	}

	frameTicker := time.NewTicker(r.FrameDuration)
	defer frameTicker.Stop()

	var summary <-chan time.Time
	if r.SummaryInterval > 0 {
		summaryTicker := time.NewTicker(r.SummaryInterval)
		defer summaryTicker.Stop()
		summary = summaryTicker.C
	}

	logs.WithTag("simulation_id", r.Simulation.ID).
		WithTag("seed", r.Simulation.Seed).
		WithTag("agents", len(r.Simulation.Agents)).
		WithTag("frame_duration", r.FrameDuration).
		Info("starting simulation")

	for {
		select {
		case <-ctx.Done():
			r.logSummary()
			logs.WithTag("simulation_id", r.Simulation.ID).
				WithTag("tick", r.Simulation.Tick).
				Info("stopping simulation")
			return nil

		case <-frameTicker.C:
			r.tick()

		case <-summary:
			r.logSummary()
		}
	}
}

// RunTicks immediately runs n steps and returns their stats. It stops early
// with an error when the context is canceled, the stats then cover the steps
// run so far.
func (r *Runner) RunTicks(ctx context.Context, n int) (RunStats, error) {
	var stats RunStats
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return stats, errors.New("running ticks canceled").
				WithTag("simulation_id", r.Simulation.ID).
				WithTag("ran", i).
				WithTag("requested", n).
				Wrap(err)
		}

		step, elapsed, err := r.tick()
		stats.add(step, elapsed, err)
	}
	return stats, nil
}

func (r *Runner) tick() (StepStats, time.Duration, error) {
	r.init()

	sim := r.Simulation
	recorder := NewFrameRecorder(sim.Tick+1, sim.Params.Bounds, len(sim.Agents))

	start := time.Now()
	stats, err := sim.Step(recorder)
	elapsed := time.Since(start)

	r.summaryMutex.Lock()
	r.summary.add(stats, elapsed, err)
	r.summaryMutex.Unlock()

	if err != nil {
		if !r.Headless {
			instrumentStepError(err)
		}
		logs.Warn(errors.New("simulation step aborted").
			WithTag("simulation_id", sim.ID).
			Wrap(err))
		return stats, elapsed, err
	}

	if !r.Headless {
		instrumentStep(start, stats)
		r.FeatureFlags.IfNotSet(featureflag.FlagDisableIndexMetrics, func() {
			instrumentIndex(stats.Index)
		})
	}

	frame := recorder.Frame
	r.FeatureFlags.IfNotSet(featureflag.FlagDisableStateDigest, func() {
		frame.Digest = sim.Digest()
	})

	r.frameMutex.RLock()
	for _, h := range r.frameHandlers {
		h(frame)
	}
	r.frameMutex.RUnlock()

	return stats, elapsed, nil
}

func (r *Runner) logSummary() {
	r.summaryMutex.Lock()
	defer r.summaryMutex.Unlock()

	s := r.summary
	r.summary = RunStats{}
	if s.Ticks == 0 && s.Aborted == 0 {
		return
	}

	logs.WithTag("simulation_id", r.Simulation.ID).
		WithTag("tick", r.Simulation.Tick).
		WithTag("ticks", s.Ticks).
		WithTag("aborted_ticks", s.Aborted).
		WithTag("mean_neighbors", s.MeanNeighbors()).
		WithTag("ticks_per_second", s.TicksPerSecond()).
		WithTag("slowest_step", s.Slowest).
		WithTag("time_interval", r.SummaryInterval).
		Info("simulation summary")
}
