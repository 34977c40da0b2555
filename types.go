package ttsstudio

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
	"github.com/tmc/ttsstudio/settings"
	"github.com/tmc/ttsstudio/visualizer"
)

// Model represents the state of the Bubble Tea application.
type Model struct {
	textarea textarea.Model
	spinner  spinner.Model

	requester     api.SpeechRequester
	outputFactory audioplayer.OutputFactory
	controller    *audioplayer.Controller
	speaker       *Speaker

	canvas        *visualizer.Canvas
	loop          *visualizer.Loop
	scheduler     visualizer.Scheduler
	frameInterval time.Duration
	canvasCols    int
	canvasRows    int

	// Configuration
	apiKey    string
	modelName string
	voice     api.VoiceName
	playerCmd string
	fftSize   int

	// Playback state
	loading        bool
	playing        bool
	session        *audioplayer.Session
	errMsg         string
	cancelGenerate context.CancelFunc

	width    int
	height   int
	quitting bool

	// Log Messages
	logMu           sync.Mutex
	logMessages     []string
	maxLogMessages  int
	showLogMessages bool

	// Channel for goroutines to send messages back to the UI loop
	uiUpdateChan chan tea.Msg
	// Terminal session transitions reported by the controller
	sessionEvents chan playbackEndedMsg

	settingsPanel     *settings.Model
	showSettingsPanel bool
	focusedComponent  string
}

// Option defines a functional option for configuring the Model.
type Option func(*Model) error

// --- Messages ---

// generateDoneMsg carries a session that started playing.
type generateDoneMsg struct {
	session *audioplayer.Session
}

// generateErrorMsg reports a failed generate-and-play attempt.
type generateErrorMsg struct {
	err error
}

// playbackEndedMsg is sent when a session's source finishes or is stopped.
type playbackEndedMsg struct {
	session *audioplayer.Session
}

// frameMsg is sent after the visualizer painted a frame.
type frameMsg struct{}
