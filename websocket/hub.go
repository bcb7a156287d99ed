package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/flock/featureflag"
	"github.com/aukilabs/flock/models"
	"github.com/aukilabs/flock/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize = 32

	defaultWriteTimeout = time.Second * 5
)

// Hub broadcasts simulation frames to the connected viewers.
type Hub struct {
	// The number of encoded frames queued per viewer. Frames are dropped for
	// viewers whose queue is full.
	SendChanSize int

	// The time allowed to write a frame to a viewer.
	WriteTimeout time.Duration

	// The duration between each viewer summary log. Summaries are disabled
	// when 0.
	SummaryInterval time.Duration

	FeatureFlags featureflag.FeatureFlag

	initOnce  sync.Once
	viewerIDs models.SequentialIDGenerator
	mutex     sync.RWMutex
	viewers   map[uint32]*viewer
	lastFrame atomic.Pointer[simulation.Frame]
}

type viewer struct {
	id       uint32
	format   Format
	sendChan chan []byte

	sent    atomic.Int64
	dropped atomic.Int64
}

func (h *Hub) init() {
	h.initOnce.Do(func() {
		h.viewers = make(map[uint32]*viewer)

		if h.SendChanSize <= 0 {
			h.SendChanSize = sendChanSize
		}
		if h.WriteTimeout <= 0 {
			h.WriteTimeout = defaultWriteTimeout
		}
	})
}

// Broadcast queues the frame to every connected viewer. It is meant to be
// registered as a runner frame handler and never blocks.
func (h *Hub) Broadcast(f simulation.Frame) {
	h.init()
	h.lastFrame.Store(&f)

	if h.FeatureFlags.IsSet(featureflag.FlagDisableViewerBroadcast) {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	encoded := make(map[Format][]byte, 2)
	for _, v := range h.viewers {
		data, ok := encoded[v.format]
		if !ok {
			var err error
			if data, err = EncodeFrame(v.format, f); err != nil {
				logs.Warn(errors.New("encoding frame failed").
					WithTag("tick", f.Tick).
					WithTag("format", v.format).
					Wrap(err))
				continue
			}
			encoded[v.format] = data
		}

		select {
		case v.sendChan <- data:
		default:
			v.dropped.Add(1)
			instrumentDroppedFrame(v.format)
		}
	}
}

// LastFrame returns the last broadcast frame.
func (h *Hub) LastFrame() (simulation.Frame, bool) {
	f := h.lastFrame.Load()
	if f == nil {
		return simulation.Frame{}, false
	}
	return *f, true
}

// ViewerCount returns the number of connected viewers.
func (h *Hub) ViewerCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.viewers)
}

// Server returns a websocket server that streams frames to viewers until the
// given context is canceled. The frame format is picked with the format query
// parameter.
func (h *Hub) Server(ctx context.Context) websocket.Server {
	return websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			_, err := ParseFormat(r.URL.Query().Get("format"))
			return err
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()
			h.Serve(ctx, conn)
		},
	}
}

// Serve streams frames to the viewer connected with conn until the viewer
// disconnects or the context is canceled.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	format, err := ParseFormat(conn.Request().URL.Query().Get("format"))
	if err != nil {
		logs.Warn(err)
		return
	}

	v := h.addViewer(format)
	defer h.removeViewer(v)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logs.WithTag("viewer_id", v.id).
		WithTag("format", v.format).
		WithTag("user_agent", conn.Request().UserAgent()).
		Info("viewer connected")

	disconnectErr := make(chan error, 1)
	go func() {
		// Viewers are not expected to send anything. Reading is only used to
		// detect disconnection.
		for {
			var msg []byte
			if err := websocket.Message.Receive(conn, &msg); err != nil {
				disconnectErr <- err
				cancel()
				return
			}
		}
	}()

	if f, ok := h.LastFrame(); ok {
		if data, err := EncodeFrame(v.format, f); err == nil {
			select {
			case v.sendChan <- data:
			default:
			}
		}
	}

	var summary <-chan time.Time
	if h.SummaryInterval > 0 {
		summaryTicker := time.NewTicker(h.SummaryInterval)
		defer summaryTicker.Stop()
		summary = summaryTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			var reason error = ctx.Err()
			select {
			case err := <-disconnectErr:
				reason = err
			default:
			}
			h.logSummary(v)
			logs.WithTag("viewer_id", v.id).
				WithTag("reason", reason.Error()).
				Info("viewer disconnected")
			return

		case data := <-v.sendChan:
			if err := h.send(conn, v, data); err != nil {
				logs.WithTag("viewer_id", v.id).
					Error(errors.New("sending frame failed").Wrap(err))
				return
			}

		case <-summary:
			h.logSummary(v)
		}
	}
}

func (h *Hub) addViewer(format Format) *viewer {
	h.init()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	v := &viewer{
		id:       h.viewerIDs.New(),
		format:   format,
		sendChan: make(chan []byte, h.SendChanSize),
	}
	h.viewers[v.id] = v
	instrumentViewerConnect(format)
	return v
}

func (h *Hub) removeViewer(v *viewer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.viewers, v.id)
	h.viewerIDs.Reuse(v.id)
	instrumentViewerDisconnect(v.format)
}

func (h *Hub) send(conn *websocket.Conn, v *viewer, data []byte) error {
	err := instrumentFrameSend(v.format, len(data), func() error {
		if err := conn.SetWriteDeadline(time.Now().Add(h.WriteTimeout)); err != nil {
			return err
		}

		if v.format == FormatJSON {
			return websocket.Message.Send(conn, string(data))
		}
		return websocket.Message.Send(conn, data)
	})
	if err != nil {
		return err
	}

	v.sent.Add(1)
	return nil
}
