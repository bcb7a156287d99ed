package capture

import (
	"context"
	"io"
	"sync"

	"github.com/aukilabs/flock/simulation"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

// FrameHandler writes the frames it receives as JSON lines until Duration
// frames are written.
type FrameHandler struct {
	// Where the frames are written.
	Writer io.Writer

	// The number of frames to capture. 0 captures until the context is
	// canceled.
	Duration int

	// The buffered channel frames are queued into. A buffer of 128 frames is
	// created when nil.
	FrameChan chan simulation.Frame

	initOnce sync.Once
	done     chan struct{}
	mutex    sync.Mutex
	written  int
	err      error
}

func (h *FrameHandler) init() {
	h.initOnce.Do(func() {
		if h.FrameChan == nil {
			h.FrameChan = make(chan simulation.Frame, 128)
		}
		h.done = make(chan struct{})
	})
}

// HandleFrame queues the frame for capture. It never blocks: frames are
// dropped when the queue is full or when the capture is complete.
func (h *FrameHandler) HandleFrame(f simulation.Frame) {
	h.init()

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.FrameChan <- f:
	default:
		instrumentDroppedFrame()
		logs.WithTag("tick", f.Tick).Debug("capture queue is full, frame dropped")
	}
}

// HandleFrames starts writing queued frames in a separate goroutine. Frames
// still queued when the context is canceled are written before the capture
// ends.
func (h *FrameHandler) HandleFrames(ctx context.Context) {
	h.init()

	go func() {
		defer close(h.done)

		encoder := json.NewEncoder(h.Writer)

		for {
			select {
			case <-ctx.Done():
				h.drain(encoder)
				return

			case f := <-h.FrameChan:
				if !h.write(encoder, f) {
					return
				}
			}
		}
	}()
}

func (h *FrameHandler) drain(encoder *json.Encoder) {
	for {
		select {
		case f := <-h.FrameChan:
			if !h.write(encoder, f) {
				return
			}

		default:
			return
		}
	}
}

// write encodes the frame and reports whether the capture continues.
func (h *FrameHandler) write(encoder *json.Encoder, f simulation.Frame) bool {
	if err := instrumentFrameWrite(func() error {
		return encoder.Encode(f)
	}); err != nil {
		h.setErr(errors.New("writing frame failed").
			WithTag("tick", f.Tick).
			Wrap(err))
		logs.Warn(h.Err())
		return false
	}

	if h.incWritten() {
		logs.WithTag("frames", h.Duration).Info("capture complete")
		return false
	}
	return true
}

// Done returns a channel that is closed when the capture is over.
func (h *FrameHandler) Done() <-chan struct{} {
	h.init()
	return h.done
}

// Written returns the number of frames written so far.
func (h *FrameHandler) Written() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.written
}

// Err returns the error that ended the capture, if any.
func (h *FrameHandler) Err() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.err
}

func (h *FrameHandler) incWritten() (complete bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.written++
	return h.Duration > 0 && h.written >= h.Duration
}

func (h *FrameHandler) setErr(err error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.err = err
}
