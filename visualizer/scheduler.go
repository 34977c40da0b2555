package visualizer

import (
	"sync"
	"time"
)

// DefaultFrameInterval is the display refresh period the loop is paced to.
const DefaultFrameInterval = time.Second / 60

// FrameID identifies a requested frame.
type FrameID uint64

// Scheduler runs a callback once, at the next frame.
type Scheduler interface {
	RequestFrame(fn func(time.Time)) FrameID
	CancelFrame(id FrameID)
}

// TimerScheduler schedules each frame with its own one-shot timer.
type TimerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	next   FrameID
	timers map[FrameID]*time.Timer
}

// NewTimerScheduler returns a scheduler firing frames interval apart.
// A non-positive interval uses DefaultFrameInterval.
func NewTimerScheduler(interval time.Duration) *TimerScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TimerScheduler{interval: interval, timers: make(map[FrameID]*time.Timer)}
}

// Interval returns the frame period.
func (s *TimerScheduler) Interval() time.Duration { return s.interval }

// RequestFrame implements Scheduler.
func (s *TimerScheduler) RequestFrame(fn func(time.Time)) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.timers[id] = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, ok := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		if ok {
			fn(time.Now())
		}
	})
	return id
}

// CancelFrame implements Scheduler. Unknown or fired ids are ignored.
func (s *TimerScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}
