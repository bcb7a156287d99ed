package simulation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/flock/featureflag"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, agents int, flags ...string) *Runner {
	conf := DefaultConfig()
	conf.Agents = agents
	conf.Seed = 7

	sim, err := New(conf)
	require.NoError(t, err)

	return &Runner{
		Simulation:    sim,
		FrameDuration: time.Millisecond,
		FeatureFlags:  featureflag.New(flags),
	}
}

func newExhaustedRunner(t *testing.T) *Runner {
	conf := DefaultConfig()
	conf.Capacity = 1
	conf.LimitArea = true
	conf.Seed = 7

	sim, err := NewFromScenario(conf, &Scenario{
		Bounds: ScenarioBounds{Width: 8, Height: 8},
		Agents: []ScenarioAgent{
			{X: 0.3, Y: 0.3, VX: 1},
			{X: 0.3, Y: 0.30001, VY: 1},
		},
	})
	require.NoError(t, err)

	return &Runner{
		Simulation:    sim,
		FrameDuration: time.Millisecond,
	}
}

func runTicks(t *testing.T, r *Runner, n int) RunStats {
	stats, err := r.RunTicks(context.Background(), n)
	require.NoError(t, err)
	return stats
}

func TestRunnerRunTicks(t *testing.T) {
	t.Run("dispatches frames", func(t *testing.T) {
		r := newTestRunner(t, 10)

		var frames []Frame
		cancel := r.HandleFrame(func(f Frame) {
			frames = append(frames, f)
		})
		defer cancel()

		stats := runTicks(t, r, 3)
		require.Equal(t, 3, stats.Ticks)
		require.Zero(t, stats.Aborted)
		require.Equal(t, 30, stats.Agents)
		require.Positive(t, stats.Elapsed)
		require.Len(t, frames, 3)

		for i, f := range frames {
			require.Equal(t, uint64(i+1), f.Tick)
			require.Len(t, f.Circles, 10)
			require.Equal(t, float64(1080), f.Width)
		}
		require.Equal(t, r.Simulation.Digest(), frames[2].Digest)
	})

	t.Run("canceled handlers are not called", func(t *testing.T) {
		r := newTestRunner(t, 10)

		var calls int
		cancel := r.HandleFrame(func(Frame) {
			calls++
		})

		runTicks(t, r, 1)
		cancel()
		cancel()
		runTicks(t, r, 1)
		require.Equal(t, 1, calls)
	})

	t.Run("digest can be disabled", func(t *testing.T) {
		r := newTestRunner(t, 10, string(featureflag.FlagDisableStateDigest))

		var frame Frame
		defer r.HandleFrame(func(f Frame) {
			frame = f
		})()

		runTicks(t, r, 1)
		require.Equal(t, uint64(1), frame.Tick)
		require.Zero(t, frame.Digest)
	})

	t.Run("aborted ticks are skipped", func(t *testing.T) {
		r := newExhaustedRunner(t)

		var calls int
		defer r.HandleFrame(func(Frame) {
			calls++
		})()

		stats := runTicks(t, r, 2)
		require.Zero(t, stats.Ticks)
		require.Equal(t, 2, stats.Aborted)
		require.Zero(t, calls)
		require.Zero(t, r.Simulation.Tick)
	})

	t.Run("canceled context stops the run", func(t *testing.T) {
		r := newTestRunner(t, 10)
		ctx, cancel := context.WithCancel(context.Background())

		var calls int
		defer r.HandleFrame(func(Frame) {
			calls++
			if calls == 2 {
				cancel()
			}
		})()

		stats, err := r.RunTicks(ctx, 100)
		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 2, stats.Ticks)
		require.Equal(t, uint64(2), r.Simulation.Tick)
	})

	t.Run("records the last polarization", func(t *testing.T) {
		r := newTestRunner(t, 10)
		stats := runTicks(t, r, 2)
		require.Positive(t, stats.Polarization)
		require.LessOrEqual(t, stats.Polarization, 1.0)
	})

	t.Run("headless runner does not report metrics", func(t *testing.T) {
		steps := testutil.ToFloat64(stepCount)

		r := newTestRunner(t, 10)
		r.Headless = true
		runTicks(t, r, 3)
		require.Equal(t, steps, testutil.ToFloat64(stepCount))

		r.Headless = false
		runTicks(t, r, 3)
		require.Equal(t, steps+3, testutil.ToFloat64(stepCount))
	})
}

func TestRunnerRun(t *testing.T) {
	t.Run("runs until canceled", func(t *testing.T) {
		r := newTestRunner(t, 20)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls int
		defer r.HandleFrame(func(Frame) {
			calls++
			if calls == 3 {
				cancel()
			}
		})()

		require.NoError(t, r.Run(ctx))
		require.GreaterOrEqual(t, calls, 3)
		require.GreaterOrEqual(t, r.Simulation.Tick, uint64(3))
	})

	t.Run("invalid frame duration", func(t *testing.T) {
		r := newTestRunner(t, 1)
		r.FrameDuration = 0
		require.Error(t, r.Run(context.Background()))
	})
}

func TestRunnerLogSummary(t *testing.T) {
	var mutex sync.Mutex
	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()
		fmt.Fprint(&b, e)
	})

	r := newExhaustedRunner(t)
	r.SummaryInterval = time.Minute
	runTicks(t, r, 2)
	r.logSummary()

	mutex.Lock()
	logString := b.String()
	mutex.Unlock()
	require.Contains(t, logString, "simulation summary")
	require.Contains(t, logString, `"aborted_ticks":2`)
	require.Contains(t, logString, r.Simulation.ID)
	require.Zero(t, r.summary.Aborted)
	t.Log(logString)
}
