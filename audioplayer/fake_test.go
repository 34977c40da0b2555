package audioplayer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tmc/ttsstudio/pcm"
)

// fakeOutput records sources and lets tests drive playback by hand.
type fakeOutput struct {
	mu        sync.Mutex
	state     OutputState
	resumeErr error
	sourceErr error
	resumed   chan struct{} // closed when Resume is entered, if set
	gate      chan struct{} // Resume blocks until closed, if set
	endAtOnce bool          // sources end inside Start
	resumes   int
	closes    int
	sources   []*fakeSource
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{state: OutputSuspended}
}

func (o *fakeOutput) State() OutputState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *fakeOutput) Resume(ctx context.Context) error {
	if o.resumed != nil {
		close(o.resumed)
	}
	if o.gate != nil {
		<-o.gate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resumes++
	if o.resumeErr != nil {
		return o.resumeErr
	}
	o.state = OutputRunning
	return nil
}

func (o *fakeOutput) NewSource(buf *pcm.Buffer) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sourceErr != nil {
		return nil, o.sourceErr
	}
	if o.state != OutputRunning {
		return nil, ErrNotRunning
	}
	s := &fakeSource{buf: buf, endAtOnce: o.endAtOnce}
	o.sources = append(o.sources, s)
	return s, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	o.state = OutputClosed
	return nil
}

// playing returns the sources currently producing audio.
func (o *fakeOutput) playing() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*fakeSource
	for _, s := range o.sources {
		if s.isPlaying() {
			out = append(out, s)
		}
	}
	return out
}

func (o *fakeOutput) last() *fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sources) == 0 {
		return nil
	}
	return o.sources[len(o.sources)-1]
}

// fakeSource uses a simulated clock advanced with advance.
type fakeSource struct {
	buf       *pcm.Buffer
	endAtOnce bool

	mu           sync.Mutex
	onEnded      func()
	started      bool
	stopped      bool
	ended        bool
	disconnected bool
	stopCalls    int
	pos          time.Duration
}

func (s *fakeSource) Start(onEnded func()) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("already started")
	}
	s.started = true
	s.onEnded = onEnded
	endNow := s.endAtOnce
	if endNow {
		s.ended = true
		s.pos = s.buf.Duration()
	}
	s.mu.Unlock()
	if endNow && onEnded != nil {
		onEnded()
	}
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	if s.stopped || s.ended {
		return ErrAlreadyStopped
	}
	s.stopped = true
	return nil
}

func (s *fakeSource) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *fakeSource) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
}

func (s *fakeSource) isPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopped && !s.ended
}

// advance moves the clock forward and fires the natural end when the buffer
// is exhausted. It reports whether the end fired.
func (s *fakeSource) advance(d time.Duration) bool {
	s.mu.Lock()
	if !s.started || s.stopped || s.ended {
		s.mu.Unlock()
		return false
	}
	s.pos += d
	if s.pos < s.buf.Duration() {
		s.mu.Unlock()
		return false
	}
	s.pos = s.buf.Duration()
	s.ended = true
	fn := s.onEnded
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
	return true
}

func (s *fakeSource) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

func (s *fakeSource) isDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}
