// Package visualizer paints frequency bars for the session that is playing.
//
// A Loop reads one snapshot from an Analyser per frame and draws it on a
// Surface. Frames are requested one at a time from a Scheduler, and each
// frame requests the next before it paints, so the loop ends by simply not
// asking for another frame.
package visualizer

import (
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Bar colors.
const (
	BottomColor = "#3b82f6"
	TopColor    = "#8b5cf6"
)

// Bar geometry.
const (
	BarHeightDivisor = 1.5
	BarWidthFactor   = 2.5
	BarGap           = 1.0
	BarRadius        = 4.0
)

// Analyser is the read side of an analysis tap.
type Analyser interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte)
}

// ColorStop is a color at an offset in [0, 1] along a gradient.
type ColorStop struct {
	Offset float64
	Color  string // hex, e.g. "#3b82f6"
}

// Gradient is a linear gradient from (X0, Y0) to (X1, Y1).
type Gradient struct {
	X0, Y0, X1, Y1 float64
	Stops          []ColorStop
}

// ColorAt returns the gradient color at point (x, y), blending stops in Lab space.
func (g Gradient) ColorAt(x, y float64) colorful.Color {
	if len(g.Stops) == 0 {
		return colorful.Color{}
	}
	dx, dy := g.X1-g.X0, g.Y1-g.Y0
	t := 0.0
	if d := dx*dx + dy*dy; d > 0 {
		t = ((x-g.X0)*dx + (y-g.Y0)*dy) / d
	}
	if t <= g.Stops[0].Offset {
		return parseHex(g.Stops[0].Color)
	}
	if last := g.Stops[len(g.Stops)-1]; t >= last.Offset {
		return parseHex(last.Color)
	}
	for i := 1; i < len(g.Stops); i++ {
		a, b := g.Stops[i-1], g.Stops[i]
		if t > b.Offset {
			continue
		}
		span := b.Offset - a.Offset
		if span <= 0 {
			return parseHex(b.Color)
		}
		return parseHex(a.Color).BlendLab(parseHex(b.Color), (t-a.Offset)/span).Clamped()
	}
	return parseHex(g.Stops[len(g.Stops)-1].Color)
}

func parseHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}
	}
	return c
}

// Surface is a 2D drawing target measured in logical pixels, origin top-left.
type Surface interface {
	Width() float64
	Height() float64
	Clear()
	FillRoundedRect(x, y, w, h, radius float64, fill Gradient)
}

// Option configures a Loop.
type Option func(*Loop)

// WithFrameHook sets fn to be called after every paint, including the final clear.
func WithFrameHook(fn func()) Option {
	return func(l *Loop) { l.hook = fn }
}

// Loop draws successive frames while a session plays.
type Loop struct {
	surface Surface
	sched   Scheduler
	hook    func()

	mu         sync.Mutex
	gen        uint64
	pending    FrameID
	hasPending bool
	analyser   Analyser
	playing    func() bool
	data       []byte
}

// NewLoop creates an idle loop drawing on surface.
func NewLoop(surface Surface, sched Scheduler, opts ...Option) *Loop {
	l := &Loop{surface: surface, sched: sched}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start draws the first frame immediately and keeps drawing until playing
// reports false. A nil analyser or playing func clears the surface once.
// Any previous run is cancelled first.
func (l *Loop) Start(a Analyser, playing func() bool) {
	l.mu.Lock()
	l.cancelLocked()
	l.gen++
	gen := l.gen
	l.analyser = a
	l.playing = playing
	l.mu.Unlock()

	l.frame(gen, time.Now())
}

// Stop cancels the pending frame. The surface is left as it is.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelLocked()
	l.gen++
	l.analyser = nil
	l.playing = nil
}

// Pending reports whether a frame is scheduled.
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasPending
}

func (l *Loop) cancelLocked() {
	if l.hasPending {
		l.sched.CancelFrame(l.pending)
		l.hasPending = false
	}
}

func (l *Loop) frame(gen uint64, _ time.Time) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.hasPending = false

	if l.analyser == nil || l.playing == nil || !l.playing() {
		l.surface.Clear()
		l.analyser = nil
		l.playing = nil
		l.mu.Unlock()
		l.painted()
		return
	}

	l.pending = l.sched.RequestFrame(func(t time.Time) { l.frame(gen, t) })
	l.hasPending = true

	n := l.analyser.FrequencyBinCount()
	if len(l.data) != n {
		l.data = make([]byte, n)
	}
	l.analyser.ByteFrequencyData(l.data)
	DrawBars(l.surface, l.data)
	l.mu.Unlock()
	l.painted()
}

func (l *Loop) painted() {
	if l.hook != nil {
		l.hook()
	}
}

// DrawBars clears s and paints one bar per bin, left to right.
func DrawBars(s Surface, data []byte) {
	s.Clear()
	if len(data) == 0 {
		return
	}
	w, h := s.Width(), s.Height()
	barWidth := (w / float64(len(data))) * BarWidthFactor
	x := 0.0
	for _, v := range data {
		barHeight := float64(v) / BarHeightDivisor
		s.FillRoundedRect(x, h-barHeight, barWidth, barHeight, BarRadius, Gradient{
			X0: 0, Y0: h,
			X1: 0, Y1: h - barHeight,
			Stops: []ColorStop{{0, BottomColor}, {1, TopColor}},
		})
		x += barWidth + BarGap
	}
}
