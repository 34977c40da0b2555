package visualizer

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAnalyser struct {
	data  []byte
	reads int
	// onRead runs before the snapshot is copied out.
	onRead func()
}

func (a *fakeAnalyser) FrequencyBinCount() int { return len(a.data) }

func (a *fakeAnalyser) ByteFrequencyData(dst []byte) {
	a.reads++
	if a.onRead != nil {
		a.onRead()
	}
	copy(dst, a.data)
}

type rect struct {
	x, y, w, h, r float64
	fill          Gradient
}

type fakeSurface struct {
	w, h   float64
	clears int
	rects  []rect
}

func (s *fakeSurface) Width() float64  { return s.w }
func (s *fakeSurface) Height() float64 { return s.h }
func (s *fakeSurface) Clear()          { s.clears++; s.rects = nil }

func (s *fakeSurface) FillRoundedRect(x, y, w, h, r float64, fill Gradient) {
	s.rects = append(s.rects, rect{x, y, w, h, r, fill})
}

// fakeScheduler queues frames until the test fires them.
type fakeScheduler struct {
	mu        sync.Mutex
	next      FrameID
	queue     map[FrameID]func(time.Time)
	cancelled []FrameID
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{queue: make(map[FrameID]func(time.Time))}
}

func (s *fakeScheduler) RequestFrame(fn func(time.Time)) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.queue[s.next] = fn
	return s.next
}

func (s *fakeScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queue, id)
	s.cancelled = append(s.cancelled, id)
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// fire runs every queued frame once.
func (s *fakeScheduler) fire() int {
	s.mu.Lock()
	fns := make([]func(time.Time), 0, len(s.queue))
	for id, fn := range s.queue {
		fns = append(fns, fn)
		delete(s.queue, id)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(time.Now())
	}
	return len(fns)
}

func always() bool { return true }

func TestFirstFrameGeometry(t *testing.T) {
	surface := &fakeSurface{w: 600, h: 100}
	sched := newFakeScheduler()
	a := &fakeAnalyser{data: []byte{150, 0, 75, 255}}
	NewLoop(surface, sched).Start(a, always)

	if surface.clears != 1 {
		t.Errorf("clears = %d, want 1", surface.clears)
	}
	if len(surface.rects) != 4 {
		t.Fatalf("rects = %d, want 4", len(surface.rects))
	}
	const barWidth = 600.0 / 4 * 2.5
	testCases := []struct {
		x, h float64
	}{
		{0, 100},
		{barWidth + 1, 0},
		{2 * (barWidth + 1), 50},
		{3 * (barWidth + 1), 170},
	}
	for i, tc := range testCases {
		r := surface.rects[i]
		if r.x != tc.x || r.w != barWidth || r.h != tc.h || r.y != 100-tc.h {
			t.Errorf("bar %d = {x:%v y:%v w:%v h:%v}, want {x:%v y:%v w:%v h:%v}",
				i, r.x, r.y, r.w, r.h, tc.x, 100-tc.h, barWidth, tc.h)
		}
		if r.r != BarRadius {
			t.Errorf("bar %d radius = %v, want %v", i, r.r, BarRadius)
		}
		if r.fill.Y0 != 100 || r.fill.Y1 != 100-tc.h {
			t.Errorf("bar %d gradient spans %v..%v, want 100..%v", i, r.fill.Y0, r.fill.Y1, 100-tc.h)
		}
		if len(r.fill.Stops) != 2 || r.fill.Stops[0].Color != BottomColor || r.fill.Stops[1].Color != TopColor {
			t.Errorf("bar %d stops = %v", i, r.fill.Stops)
		}
	}
	if sched.pending() != 1 {
		t.Errorf("pending frames = %d, want 1", sched.pending())
	}
}

func TestNextFrameRequestedBeforeRead(t *testing.T) {
	sched := newFakeScheduler()
	a := &fakeAnalyser{data: []byte{10, 20}}
	a.onRead = func() {
		if sched.pending() != 1 {
			t.Errorf("pending frames at read = %d, want 1", sched.pending())
		}
	}
	NewLoop(&fakeSurface{w: 600, h: 100}, sched).Start(a, always)
	sched.fire()
	if a.reads != 2 {
		t.Errorf("reads = %d, want 2", a.reads)
	}
}

func TestNotPlayingClearsOnce(t *testing.T) {
	testCases := []struct {
		name     string
		analyser Analyser
		playing  func() bool
	}{
		{"predicate false", &fakeAnalyser{data: []byte{100}}, func() bool { return false }},
		{"nil analyser", nil, always},
		{"nil predicate", &fakeAnalyser{data: []byte{100}}, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			surface := &fakeSurface{w: 600, h: 100}
			sched := newFakeScheduler()
			l := NewLoop(surface, sched)
			l.Start(tc.analyser, tc.playing)
			if surface.clears != 1 || len(surface.rects) != 0 {
				t.Errorf("clears = %d, rects = %d, want 1 and 0", surface.clears, len(surface.rects))
			}
			if l.Pending() || sched.pending() != 0 {
				t.Error("frame scheduled while not playing")
			}
		})
	}
}

func TestLoopEndsWhenPlaybackEnds(t *testing.T) {
	surface := &fakeSurface{w: 600, h: 100}
	sched := newFakeScheduler()
	var playing atomic.Bool
	playing.Store(true)
	a := &fakeAnalyser{data: []byte{90, 90}}
	l := NewLoop(surface, sched)
	l.Start(a, playing.Load)

	for i := 0; i < 3; i++ {
		if n := sched.fire(); n != 1 {
			t.Fatalf("frame %d: fired %d, want 1", i, n)
		}
	}
	playing.Store(false)
	clears := surface.clears
	sched.fire()

	if surface.clears != clears+1 || len(surface.rects) != 0 {
		t.Errorf("final frame: clears +%d, rects %d; want +1 and 0", surface.clears-clears, len(surface.rects))
	}
	if l.Pending() {
		t.Error("Pending() = true after playback ended")
	}
	if n := sched.fire(); n != 0 {
		t.Errorf("fired %d frames after end, want 0", n)
	}
	if a.reads != 4 {
		t.Errorf("reads = %d, want 4", a.reads)
	}
}

func TestStopCancelsPendingFrame(t *testing.T) {
	surface := &fakeSurface{w: 600, h: 100}
	sched := newFakeScheduler()
	a := &fakeAnalyser{data: []byte{42}}
	l := NewLoop(surface, sched)
	l.Start(a, always)

	sched.mu.Lock()
	var stale func(time.Time)
	for _, fn := range sched.queue {
		stale = fn
	}
	sched.mu.Unlock()

	l.Stop()
	if l.Pending() || sched.pending() != 0 {
		t.Error("frame still pending after Stop")
	}
	if len(sched.cancelled) != 1 {
		t.Errorf("cancelled = %v, want one frame", sched.cancelled)
	}

	// A frame that slipped past cancellation does nothing.
	reads := a.reads
	stale(time.Now())
	if a.reads != reads || sched.pending() != 0 {
		t.Error("stale frame painted or rescheduled")
	}
	l.Stop()
}

func TestRestartReplacesRun(t *testing.T) {
	surface := &fakeSurface{w: 600, h: 100}
	sched := newFakeScheduler()
	first := &fakeAnalyser{data: []byte{1}}
	second := &fakeAnalyser{data: []byte{2, 3}}
	l := NewLoop(surface, sched)
	l.Start(first, always)
	l.Start(second, always)

	if sched.pending() != 1 {
		t.Fatalf("pending frames = %d, want 1", sched.pending())
	}
	sched.fire()
	if first.reads != 1 || second.reads != 2 {
		t.Errorf("reads = %d/%d, want 1/2", first.reads, second.reads)
	}
}

func TestFrameHook(t *testing.T) {
	var calls int
	sched := newFakeScheduler()
	var playing atomic.Bool
	playing.Store(true)
	l := NewLoop(&fakeSurface{w: 600, h: 100}, sched, WithFrameHook(func() { calls++ }))
	l.Start(&fakeAnalyser{data: []byte{5}}, playing.Load)
	sched.fire()
	playing.Store(false)
	sched.fire()
	if calls != 3 {
		t.Errorf("hook calls = %d, want 3", calls)
	}
}

func TestTimerScheduler(t *testing.T) {
	s := NewTimerScheduler(0)
	if s.Interval() != DefaultFrameInterval {
		t.Errorf("Interval() = %v, want %v", s.Interval(), DefaultFrameInterval)
	}

	fired := make(chan struct{})
	s.RequestFrame(func(time.Time) { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("frame did not fire")
	}

	cancelled := make(chan struct{}, 1)
	id := s.RequestFrame(func(time.Time) { cancelled <- struct{}{} })
	s.CancelFrame(id)
	s.CancelFrame(id)
	time.Sleep(5 * DefaultFrameInterval)
	select {
	case <-cancelled:
		t.Error("cancelled frame fired")
	default:
	}
}

func TestGradientColorAt(t *testing.T) {
	g := Gradient{X0: 0, Y0: 100, X1: 0, Y1: 0, Stops: []ColorStop{{0, BottomColor}, {1, TopColor}}}
	testCases := []struct {
		y    float64
		want string
	}{
		{100, BottomColor},
		{120, BottomColor},
		{0, TopColor},
		{-10, TopColor},
	}
	for _, tc := range testCases {
		if got := g.ColorAt(0, tc.y).Hex(); got != tc.want {
			t.Errorf("ColorAt(0, %v) = %s, want %s", tc.y, got, tc.want)
		}
	}
	mid := g.ColorAt(0, 50).Hex()
	if mid == BottomColor || mid == TopColor {
		t.Errorf("ColorAt(0, 50) = %s, want a blend", mid)
	}
	if got := (Gradient{}).ColorAt(0, 0).Hex(); got != "#000000" {
		t.Errorf("empty gradient = %s, want #000000", got)
	}
}

func TestCanvas(t *testing.T) {
	c := NewCanvas(60, 4)
	if c.Width() != DefaultWidth || c.Height() != DefaultHeight {
		t.Fatalf("logical size = %vx%v, want %vx%v", c.Width(), c.Height(), DefaultWidth, DefaultHeight)
	}
	g := Gradient{X0: 0, Y0: 100, X1: 0, Y1: 0, Stops: []ColorStop{{0, BottomColor}, {1, TopColor}}}

	// Ten logical pixels per column, 25 per row: a bar 62.5 high fills two
	// rows and half of a third.
	c.FillRoundedRect(0, 37.5, 10, 62.5, 4, g)
	levels := make([]int, 4)
	for row := range levels {
		levels[row] = c.cells[row*60].level
	}
	want := []int{0, 4, 8, 8}
	for row := range want {
		if levels[row] != want[row] {
			t.Errorf("row %d level = %d, want %d", row, levels[row], want[row])
		}
	}
	if c.cells[1].level != 0 || c.cells[3*60+1].level != 0 {
		t.Error("bar spilled into the next column")
	}

	out := c.String()
	if lines := strings.Split(out, "\n"); len(lines) != 4 {
		t.Errorf("String() has %d lines, want 4", len(lines))
	}
	if !strings.Contains(out, "█") || !strings.Contains(out, "▄") {
		t.Errorf("String() = %q, want full and half blocks", out)
	}

	c.Clear()
	if strings.TrimSpace(strings.ReplaceAll(c.String(), "\n", "")) != "" {
		t.Error("canvas not empty after Clear")
	}
}

func TestCanvasClipsOverflow(t *testing.T) {
	c := NewCanvas(10, 2)
	surface := Surface(c)
	data := make([]byte, 128)
	for i := range data {
		data[i] = 150
	}
	DrawBars(surface, data) // bars run far past the right edge
	for row := 0; row < 2; row++ {
		for col := 0; col < 10; col++ {
			if c.cells[row*10+col].level != 8 {
				t.Fatalf("cell (%d,%d) level = %d, want 8", col, row, c.cells[row*10+col].level)
			}
		}
	}
}

func TestCanvasLogicalSize(t *testing.T) {
	g := Gradient{X0: 0, Y0: 20, X1: 0, Y1: 0, Stops: []ColorStop{{0, BottomColor}, {1, TopColor}}}
	testCases := []struct {
		name          string
		width, height float64
		wantW, wantH  float64
		fill          [4]float64 // x, y, w, h
		wantCol       int
		wantLevels    []int // per row in wantCol
	}{
		{
			name: "scaled", width: 100, height: 20, wantW: 100, wantH: 20,
			fill: [4]float64{20, 10, 10, 10}, wantCol: 2, wantLevels: []int{0, 8},
		},
		{
			name: "half row", width: 100, height: 20, wantW: 100, wantH: 20,
			fill: [4]float64{90, 15, 10, 5}, wantCol: 9, wantLevels: []int{0, 4},
		},
		{
			name: "zero ignored", width: 0, height: 20, wantW: DefaultWidth, wantH: DefaultHeight,
			fill: [4]float64{60, 50, 60, 50}, wantCol: 1, wantLevels: []int{0, 8},
		},
		{
			name: "negative ignored", width: 100, height: -1, wantW: DefaultWidth, wantH: DefaultHeight,
			fill: [4]float64{0, 0, 60, 100}, wantCol: 0, wantLevels: []int{8, 8},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCanvas(10, 2, WithLogicalSize(tc.width, tc.height))
			if c.Width() != tc.wantW || c.Height() != tc.wantH {
				t.Fatalf("logical size = %vx%v, want %vx%v", c.Width(), c.Height(), tc.wantW, tc.wantH)
			}
			c.FillRoundedRect(tc.fill[0], tc.fill[1], tc.fill[2], tc.fill[3], 0, g)
			for row, want := range tc.wantLevels {
				if got := c.cells[row*10+tc.wantCol].level; got != want {
					t.Errorf("cell (%d,%d) level = %d, want %d", tc.wantCol, row, got, want)
				}
			}
			filled := 0
			for i := range c.cells {
				if c.cells[i].level > 0 {
					filled++
				}
			}
			wantFilled := 0
			for _, l := range tc.wantLevels {
				if l > 0 {
					wantFilled++
				}
			}
			if filled != wantFilled {
				t.Errorf("%d cells filled, want %d", filled, wantFilled)
			}
		})
	}
}
