package capture

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
)

var (
	captureFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_frames",
		Help: "The number of captured frames.",
	})

	captureDroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "capture_dropped_frames",
		Help: "The number of frames dropped because the capture queue was full.",
	})

	captureWriteError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_write_errors",
		Help: "The errors that occured while writing a captured frame.",
	}, []string{
		errTypeLabel,
	})

	captureWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "capture_write_latency",
		Help: "The time to write a captured frame.",
	})
)

func instrumentFrameWrite(write func() error) error {
	start := time.Now()
	err := write()
	captureWriteLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		captureWriteError.
			With(prometheus.Labels{
				errTypeLabel: errors.Type(err),
			}).
			Inc()
		return err
	}

	captureFrames.Inc()
	return nil
}

func instrumentDroppedFrame() {
	captureDroppedFrames.Inc()
}
