package simulation

import (
	"time"

	"github.com/aukilabs/flock/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"

	defaultErrType = "step-error"
)

var (
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flock_step_duration_seconds",
		Help:    "The time it takes to run a simulation step.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.015, 0.025, 0.05, 0.1},
	})

	stepCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flock_steps_total",
		Help: "The number of successful simulation steps.",
	})

	stepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flock_step_errors",
		Help: "The errors that aborted a simulation step.",
	}, []string{errTypeLabel})

	agentCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_agents",
		Help: "The number of simulated agents.",
	})

	indexedAgentCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_indexed_agents",
		Help: "The number of agents retained by the spatial index during the last step.",
	})

	meanNeighbors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_mean_neighbors",
		Help: "The average number of neighbors per agent during the last step.",
	})

	polarization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_polarization",
		Help: "How aligned the flock is, from 0 to 1.",
	})

	quadtreeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_quadtree_nodes",
		Help: "The number of nodes of the last built quadtree.",
	})

	quadtreeDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_quadtree_depth",
		Help: "The depth of the last built quadtree.",
	})

	frameHandlerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flock_frame_handlers",
		Help: "The number of registered frame handlers.",
	})
)

func instrumentStep(start time.Time, stats StepStats) {
	stepDuration.Observe(time.Since(start).Seconds())
	stepCount.Inc()
	agentCount.Set(float64(stats.Agents))
	indexedAgentCount.Set(float64(stats.Indexed))
	meanNeighbors.Set(stats.MeanNeighbors())
	polarization.Set(stats.Polarization)
}

func instrumentIndex(info spatial.SpatialDebugInfo) {
	quadtreeNodes.Set(float64(info.NodeCount))
	quadtreeDepth.Set(float64(info.Depth))
}

func instrumentStepError(err error) {
	errType := errors.Type(err)
	if errType == "" {
		errType = defaultErrType
	}

	stepErrors.
		With(prometheus.Labels{errTypeLabel: errType}).
		Inc()
}
