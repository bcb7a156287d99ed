package simulation

import (
	"github.com/aukilabs/flock/spatial"
)

// Renderer is the drawing surface agents are handed to after they moved.
type Renderer interface {
	DrawCircle(pos spatial.Vector2, radius float64, color string)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(pos spatial.Vector2, radius float64, color string)

func (f RendererFunc) DrawCircle(pos spatial.Vector2, radius float64, color string) {
	f(pos, radius, color)
}

// NopRenderer draws nothing.
type NopRenderer struct{}

func (NopRenderer) DrawCircle(spatial.Vector2, float64, string) {}

// Circle is a filled circle drawn during a tick.
type Circle struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"r"`
	Color  string  `json:"c,omitempty"`
}

// Frame holds everything drawn during a tick. Frames are shared between frame
// handlers and must not be modified.
type Frame struct {
	Tick    uint64   `json:"tick"`
	Digest  uint64   `json:"digest,omitempty"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Circles []Circle `json:"circles"`
}

// FrameRecorder is a renderer that records the drawn circles into a frame.
type FrameRecorder struct {
	Frame Frame
}

func NewFrameRecorder(tick uint64, bounds spatial.Rect, size int) *FrameRecorder {
	return &FrameRecorder{
		Frame: Frame{
			Tick:    tick,
			Width:   bounds.Width(),
			Height:  bounds.Height(),
			Circles: make([]Circle, 0, size),
		},
	}
}

func (r *FrameRecorder) DrawCircle(pos spatial.Vector2, radius float64, color string) {
	r.Frame.Circles = append(r.Frame.Circles, Circle{
		X:      pos.X,
		Y:      pos.Y,
		Radius: radius,
		Color:  color,
	})
}
