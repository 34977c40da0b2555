package audioplayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/ttsstudio/pcm"
)

// OutputState is the lifecycle state of an audio output context.
type OutputState int

const (
	// OutputSuspended means the output exists but must be resumed before use.
	OutputSuspended OutputState = iota
	// OutputRunning means sources can be created and started.
	OutputRunning
	// OutputClosed means the output has been released.
	OutputClosed
)

func (s OutputState) String() string {
	switch s {
	case OutputSuspended:
		return "suspended"
	case OutputRunning:
		return "running"
	case OutputClosed:
		return "closed"
	default:
		return fmt.Sprintf("OutputState(%d)", int(s))
	}
}

// Output is the shared audio output context. It is acquired once, resumed
// when suspended and released on shutdown.
type Output interface {
	// State reports whether the output is suspended, running or closed.
	State() OutputState

	// Resume brings a suspended output into the running state,
	// blocking until it is running or ctx is done.
	Resume(ctx context.Context) error

	// NewSource prepares buf for playback on this output.
	NewSource(buf *pcm.Buffer) (Source, error)

	// Close releases the output and halts any source still attached to it.
	Close() error
}

// Source plays one buffer once. Sources are not reusable.
type Source interface {
	// Start begins playback immediately. onEnded is called once, from another
	// goroutine, when the buffer has played to the end. It is not called after Stop.
	Start(onEnded func()) error

	// Stop halts playback. It returns ErrAlreadyStopped if playback already
	// ended or was stopped.
	Stop() error

	// Position reports how much of the buffer has been played.
	Position() time.Duration

	// Disconnect detaches the source from its output.
	Disconnect()
}

// OutputFactory creates an output running at sampleRate.
type OutputFactory func(sampleRate int) (Output, error)

var (
	// ErrAlreadyStopped is returned by Source.Stop when there is nothing left to stop.
	ErrAlreadyStopped = errors.New("source already stopped")
	// ErrControllerClosed is returned once the controller has been torn down.
	ErrControllerClosed = errors.New("audio controller closed")
	// ErrNotRunning is returned when a source is requested from a non-running output.
	ErrNotRunning = errors.New("audio output is not running")
)

// SetupError reports a failure to create, resume or use the audio output.
type SetupError struct {
	Op  string // "create", "resume", "source" or "start"
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("audio output %s failed: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Config holds configuration common to audio outputs.
type Config struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Format        string // e.g., "s16le"
}

// DefaultConfig matches the speech service wire format.
var DefaultConfig = Config{
	SampleRate:    pcm.SampleRate,
	Channels:      pcm.Channels,
	BitsPerSample: pcm.BitsPerSample,
	Format:        pcm.Format,
}
