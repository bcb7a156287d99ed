package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel = "error_type"
	formatLabel  = "format"

	defaultErrType = "send-error"
)

var (
	wsConnectedViewers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_viewers",
		Help: "The number of connected viewers.",
	}, []string{
		formatLabel,
	})

	wsSentFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_frames",
		Help: "The number of frames sent to viewers.",
	}, []string{
		formatLabel,
	})

	wsSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to viewers.",
	}, []string{
		formatLabel,
	})

	wsDroppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_dropped_frames",
		Help: "The number of frames dropped for slow viewers.",
	}, []string{
		formatLabel,
	})

	wsSendError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occured while sending a frame to a viewer.",
	}, []string{
		formatLabel,
		errTypeLabel,
	})

	wsSendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "ws_send_latency",
		Help: "The time to send a frame to a viewer.",
	}, []string{
		formatLabel,
	})
)

func instrumentViewerConnect(format Format) {
	wsConnectedViewers.
		With(prometheus.Labels{formatLabel: string(format)}).
		Inc()
}

func instrumentViewerDisconnect(format Format) {
	wsConnectedViewers.
		With(prometheus.Labels{formatLabel: string(format)}).
		Dec()
}

func instrumentDroppedFrame(format Format) {
	wsDroppedFrames.
		With(prometheus.Labels{formatLabel: string(format)}).
		Inc()
}

func instrumentFrameSend(format Format, size int, send func() error) error {
	labels := prometheus.Labels{formatLabel: string(format)}

	start := time.Now()
	err := send()
	wsSendLatency.With(labels).Observe(time.Since(start).Seconds())

	if err != nil {
		errType := errors.Type(err)
		if errType == "" {
			errType = defaultErrType
		}

		wsSendError.
			With(prometheus.Labels{
				formatLabel:  string(format),
				errTypeLabel: errType,
			}).
			Inc()
		return err
	}

	wsSentFrames.With(labels).Inc()
	wsSentBytes.With(labels).Add(float64(size))
	return nil
}
