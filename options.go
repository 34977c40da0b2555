package ttsstudio

import (
	"fmt"
	"time"

	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
)

// WithAPIKey sets the key used by the default gRPC requester.
func WithAPIKey(key string) Option {
	return func(m *Model) error {
		m.apiKey = key
		return nil
	}
}

// WithModelName sets the speech model used by the default requester.
func WithModelName(name string) Option {
	return func(m *Model) error {
		m.modelName = name
		return nil
	}
}

// WithRequester replaces the default gRPC requester, e.g. with an api.LiveClient.
func WithRequester(r api.SpeechRequester) Option {
	return func(m *Model) error {
		m.requester = r
		return nil
	}
}

// WithOutputFactory sets how the model's controller creates its audio
// output. The default runs the player command.
func WithOutputFactory(f audioplayer.OutputFactory) Option {
	return func(m *Model) error {
		m.outputFactory = f
		return nil
	}
}

// WithVoice selects the initial voice.
func WithVoice(v api.VoiceName) Option {
	return func(m *Model) error {
		if !v.Valid() {
			return fmt.Errorf("%w: %q", api.ErrUnknownVoice, v)
		}
		m.voice = v
		return nil
	}
}

// WithPlayerCommand sets the external command used by the default output.
func WithPlayerCommand(cmd string) Option {
	return func(m *Model) error {
		m.playerCmd = cmd
		return nil
	}
}

// WithFFTSize sets the analyser size used for every session.
func WithFFTSize(n int) Option {
	return func(m *Model) error {
		if n < 32 || n&(n-1) != 0 {
			return fmt.Errorf("invalid fft size %d", n)
		}
		m.fftSize = n
		return nil
	}
}

// WithFrameInterval sets the visualizer frame interval.
func WithFrameInterval(d time.Duration) Option {
	return func(m *Model) error {
		if d <= 0 {
			return fmt.Errorf("frame interval must be positive, got %v", d)
		}
		m.frameInterval = d
		return nil
	}
}

// WithCanvasSize sets the visualizer size in terminal cells.
func WithCanvasSize(cols, rows int) Option {
	return func(m *Model) error {
		if cols <= 0 || rows <= 0 {
			return fmt.Errorf("invalid canvas size %dx%d", cols, rows)
		}
		m.canvasCols, m.canvasRows = cols, rows
		return nil
	}
}

// WithLogMessages enables or disables the log messages display.
func WithLogMessages(show bool, maxEntries ...int) Option {
	return func(m *Model) error {
		m.showLogMessages = show
		if len(maxEntries) > 0 && maxEntries[0] > 0 {
			m.maxLogMessages = maxEntries[0]
		} else if m.maxLogMessages == 0 {
			m.maxLogMessages = defaultMaxLogs
		}
		return nil
	}
}
