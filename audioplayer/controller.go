// Package audioplayer owns the audio output and the one-at-a-time playback
// lifecycle: a session is built for every buffer, plays to its end or until
// stopped, and is then discarded.
package audioplayer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/ttsstudio/internal/helpers"
	"github.com/tmc/ttsstudio/pcm"
	"github.com/tmc/ttsstudio/spectrum"
)

// SessionState is the state of a playback session.
type SessionState int

const (
	// SessionIdle is a session that has been built but not started.
	SessionIdle SessionState = iota
	// SessionPlaying is a session whose source is producing audio.
	SessionPlaying
	// SessionEnded is a session that played to the end of its buffer.
	SessionEnded
	// SessionStopped is a session halted by Stop, Play or Close.
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionPlaying:
		return "playing"
	case SessionEnded:
		return "ended"
	case SessionStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Session is one source plus its analysis tap.
type Session struct {
	id      string
	buffer  *pcm.Buffer
	source  Source
	done    chan struct{}
	once    sync.Once
	started time.Time

	mu       sync.Mutex
	state    SessionState
	analyser *spectrum.Analyser
}

// ID returns the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// Buffer returns the audio being played.
func (s *Session) Buffer() *pcm.Buffer { return s.buffer }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Analyser returns the analysis tap, or nil once the session has terminated.
func (s *Session) Analyser() *spectrum.Analyser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyser
}

// Position reports the playback position of the source.
func (s *Session) Position() time.Duration { return s.source.Position() }

// Done is closed when the session ends or is stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session terminates or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithSampleRate overrides the rate the output is created at.
func WithSampleRate(rate int) ControllerOption {
	return func(c *Controller) { c.sampleRate = rate }
}

// WithAnalyserOptions sets the options used for every session's analysis tap.
func WithAnalyserOptions(opts ...spectrum.Option) ControllerOption {
	return func(c *Controller) { c.analyserOpts = opts }
}

// OnStateChange registers fn to be called after every session transition.
// fn runs without any controller lock held.
func OnStateChange(fn func(*Session, SessionState)) ControllerOption {
	return func(c *Controller) { c.onState = fn }
}

// Controller manages the shared output and the active session.
type Controller struct {
	factory      OutputFactory
	sampleRate   int
	analyserOpts []spectrum.Option
	onState      func(*Session, SessionState)

	initMu sync.Mutex // serializes Initialize
	playMu sync.Mutex // serializes Play

	mu     sync.Mutex
	output Output
	active *Session
	closed bool
}

// NewController creates a controller. The output is not created until
// Initialize or Play is called.
func NewController(factory OutputFactory, opts ...ControllerOption) *Controller {
	c := &Controller{
		factory:    factory,
		sampleRate: pcm.SampleRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize creates the output on first use and resumes it if suspended.
// Failures are returned as *SetupError and leave the controller retryable.
func (c *Controller) Initialize(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &SetupError{Op: "create", Err: ErrControllerClosed}
	}
	out := c.output
	c.mu.Unlock()

	if out == nil || out.State() == OutputClosed {
		var err error
		out, err = c.factory(c.sampleRate)
		if err != nil {
			log.Printf("[Controller ERROR] Failed to create audio output: %v", err)
			return &SetupError{Op: "create", Err: err}
		}
		c.mu.Lock()
		c.output = out
		c.mu.Unlock()
		log.Printf("[Controller] Audio output created at %d Hz", c.sampleRate)
	}

	if out.State() == OutputSuspended {
		if err := out.Resume(ctx); err != nil {
			log.Printf("[Controller ERROR] Failed to resume audio output: %v", err)
			return &SetupError{Op: "resume", Err: err}
		}
		if helpers.IsAudioTraceEnabled() {
			log.Println("[Controller] Audio output resumed")
		}
	}
	return nil
}

// Play stops any active session and starts playing buf in a new one.
func (c *Controller) Play(ctx context.Context, buf *pcm.Buffer) (*Session, error) {
	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.Stop()
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	out, closed := c.output, c.closed
	c.mu.Unlock()
	if closed || out == nil {
		return nil, &SetupError{Op: "source", Err: ErrControllerClosed}
	}

	src, err := out.NewSource(buf)
	if err != nil {
		return nil, &SetupError{Op: "source", Err: err}
	}
	analyser, err := spectrum.New(buf.Mono(), buf.SampleRate(), src.Position, c.analyserOpts...)
	if err != nil {
		src.Disconnect()
		return nil, &SetupError{Op: "source", Err: err}
	}

	sess := &Session{
		id:       uuid.NewString(),
		buffer:   buf,
		source:   src,
		done:     make(chan struct{}),
		started:  time.Now(),
		state:    SessionPlaying,
		analyser: analyser,
	}

	// Reported before the session is reachable by Stop or the end callback.
	c.notify(sess, SessionPlaying)

	c.mu.Lock()
	closed = c.closed
	if !closed {
		c.active = sess
	}
	c.mu.Unlock()
	if closed {
		c.teardown(sess, SessionStopped)
		return nil, &SetupError{Op: "source", Err: ErrControllerClosed}
	}

	if err := src.Start(func() { c.teardown(sess, SessionEnded) }); err != nil {
		c.teardown(sess, SessionStopped)
		return nil, &SetupError{Op: "start", Err: err}
	}
	log.Printf("[Controller] Session %s playing %d frames (%v)", sess.id, buf.Length(), buf.Duration())
	return sess, nil
}

// Stop halts the active session. It is a no-op when nothing is playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.active
	c.mu.Unlock()
	if sess != nil {
		c.teardown(sess, SessionStopped)
	}
}

// Active returns the active session or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// IsPlaying reports whether a session is active.
func (c *Controller) IsPlaying() bool {
	return c.Active() != nil
}

// Close stops playback and releases the output. The controller cannot be
// used afterwards.
func (c *Controller) Close() error {
	c.Stop()

	c.mu.Lock()
	c.closed = true
	out := c.output
	c.output = nil
	c.mu.Unlock()

	if out == nil {
		return nil
	}
	log.Println("[Controller] Releasing audio output")
	return out.Close()
}

// teardown is the single exit path of a session, shared by natural end and
// explicit stop. Only the first call has any effect.
func (c *Controller) teardown(sess *Session, final SessionState) {
	ran := false
	sess.once.Do(func() {
		ran = true
		if final == SessionStopped {
			if err := sess.source.Stop(); err != nil && !errors.Is(err, ErrAlreadyStopped) {
				log.Printf("[Controller WARNING] Stopping session %s: %v", sess.id, err)
			}
		}
		sess.source.Disconnect()

		sess.mu.Lock()
		sess.state = final
		sess.analyser = nil
		sess.mu.Unlock()

		c.mu.Lock()
		if c.active == sess {
			c.active = nil
		}
		c.mu.Unlock()

		close(sess.done)
		log.Printf("[Controller] Session %s %s after %v", sess.id, final, time.Since(sess.started).Round(time.Millisecond))
	})
	if ran {
		c.notify(sess, final)
	}
}

func (c *Controller) notify(sess *Session, state SessionState) {
	if c.onState != nil {
		c.onState(sess, state)
	}
}
