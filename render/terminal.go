package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/aukilabs/flock/simulation"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// AgentRune is the rune agents are drawn with.
const AgentRune = '●'

// Terminal draws simulation frames on a terminal screen. Each circle becomes
// a single cell, the simulation bounds being scaled to the screen size. The
// first row shows the tick.
type Terminal struct {
	Screen tcell.Screen

	mutex  sync.Mutex
	colors map[string]tcell.Color
}

func NewTerminal(screen tcell.Screen) *Terminal {
	return &Terminal{
		Screen: screen,
		colors: make(map[string]tcell.Color),
	}
}

// HandleFrame draws the frame. It is meant to be registered as a runner frame
// handler.
func (t *Terminal) HandleFrame(f simulation.Frame) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Screen.Clear()

	w, h := t.Screen.Size()
	if w <= 0 || h <= 1 || f.Width <= 0 || f.Height <= 0 {
		t.Screen.Show()
		return
	}

	for _, c := range f.Circles {
		x := scale(c.X, f.Width, w)
		y := 1 + scale(c.Y, f.Height, h-1)
		style := tcell.StyleDefault.Foreground(t.color(c.Color))
		t.Screen.SetContent(x, y, AgentRune, nil, style)
	}

	t.drawText(0, 0, fmt.Sprintf("tick %d  agents %d", f.Tick, len(f.Circles)))
	t.Screen.Show()
}

// WaitQuit blocks until the user presses Escape, Ctrl-C or q, the screen is
// finalized or the context is canceled.
func (t *Terminal) WaitQuit(ctx context.Context) {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := t.Screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}

			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
					(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
					return
				}

			case *tcell.EventResize:
				t.Screen.Sync()
			}
		}
	}
}

func (t *Terminal) drawText(x, y int, s string) {
	for i, r := range s {
		t.Screen.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}

// color returns the terminal color for a hex color. Invalid or empty colors
// use the default terminal color.
func (t *Terminal) color(hex string) tcell.Color {
	if c, ok := t.colors[hex]; ok {
		return c
	}

	color := tcell.ColorDefault
	if c, err := colorful.Hex(hex); err == nil {
		r, g, b := c.RGB255()
		color = tcell.NewRGBColor(int32(r), int32(g), int32(b))
	}

	t.colors[hex] = color
	return color
}

func scale(v, worldSize float64, cells int) int {
	i := int(v * float64(cells) / worldSize)
	if i < 0 {
		return 0
	}
	if i >= cells {
		return cells - 1
	}
	return i
}
