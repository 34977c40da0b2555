package ttsstudio

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
	"github.com/tmc/ttsstudio/pcm"
)

// fakeRequester returns canned responses and records the requests it saw.
type fakeRequester struct {
	mu      sync.Mutex
	payload string
	err     error
	calls   []fakeCall
	before  func() // runs at the start of every request
	block   chan struct{}
}

type fakeCall struct {
	text  string
	voice api.VoiceName
}

func (r *fakeRequester) RequestSpeech(ctx context.Context, text string, voice api.VoiceName) (string, error) {
	if r.before != nil {
		r.before()
	}
	r.mu.Lock()
	r.calls = append(r.calls, fakeCall{text, voice})
	payload, err, block := r.payload, r.err, r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", &api.TransportError{Err: ctx.Err()}
		}
	}
	return payload, err
}

func (r *fakeRequester) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRequester) last() fakeCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// silence returns base64 s16le data holding frames zero samples.
func silence(frames int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, frames*2))
}

type fakeOutput struct {
	mu        sync.Mutex
	state     audioplayer.OutputState
	resumeErr error
	sources   []*fakeSource
}

func (o *fakeOutput) State() audioplayer.OutputState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *fakeOutput) Resume(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.resumeErr != nil {
		return o.resumeErr
	}
	o.state = audioplayer.OutputRunning
	return nil
}

func (o *fakeOutput) NewSource(buf *pcm.Buffer) (audioplayer.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := &fakeSource{buf: buf}
	o.sources = append(o.sources, s)
	return s, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = audioplayer.OutputClosed
	return nil
}

// playing counts sources that were started and have neither ended nor stopped.
func (o *fakeOutput) playing() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, s := range o.sources {
		if s.isPlaying() {
			n++
		}
	}
	return n
}

func (o *fakeOutput) last() *fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sources) == 0 {
		return nil
	}
	return o.sources[len(o.sources)-1]
}

type fakeSource struct {
	mu      sync.Mutex
	buf     *pcm.Buffer
	onEnded func()
	started bool
	done    bool
}

func (s *fakeSource) Start(onEnded func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	s.onEnded = onEnded
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return audioplayer.ErrAlreadyStopped
	}
	s.done = true
	return nil
}

func (s *fakeSource) Position() time.Duration { return 0 }

func (s *fakeSource) Disconnect() {}

func (s *fakeSource) isPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.done
}

// end simulates the buffer running out.
func (s *fakeSource) end() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	fn := s.onEnded
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fakeOutputFactory always hands out out.
func fakeOutputFactory(out *fakeOutput) audioplayer.OutputFactory {
	return func(int) (audioplayer.Output, error) { return out, nil }
}

// newFakeController returns a controller whose output is out.
func newFakeController(out *fakeOutput) *audioplayer.Controller {
	return audioplayer.NewController(fakeOutputFactory(out))
}
