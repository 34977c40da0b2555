// Package ttsstudio is a terminal front end for Gemini text-to-speech.
//
// A Speaker requests speech for a piece of text, decodes the returned PCM and
// plays it through an audioplayer.Controller. Model wraps a Speaker in a Bubble
// Tea program with a voice picker, a status line and a live frequency display.
package ttsstudio

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/audioplayer"
	"github.com/tmc/ttsstudio/internal/helpers"
	"github.com/tmc/ttsstudio/settings"
	"github.com/tmc/ttsstudio/spectrum"
	"github.com/tmc/ttsstudio/visualizer"
)

// New creates a new Model instance with default settings and applies options.
func New(opts ...Option) *Model {
	ta := textarea.New()
	ta.Placeholder = "Enter text here... (Supports English, Burmese, etc.)"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetWidth(60)
	ta.SetHeight(4)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	settingsPanel := settings.New()

	m := &Model{
		textarea:         ta,
		spinner:          s,
		modelName:        api.DefaultModel,
		voice:            api.DefaultVoice,
		fftSize:          spectrum.DefaultFFTSize,
		frameInterval:    defaultFrameRate,
		canvasCols:       defaultCanvasCols,
		canvasRows:       defaultCanvasRows,
		maxLogMessages:   defaultMaxLogs,
		uiUpdateChan:     make(chan tea.Msg, 1),
		sessionEvents:    make(chan playbackEndedMsg, sessionEventBuffer),
		settingsPanel:    &settingsPanel,
		focusedComponent: focusInput,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			log.Printf("Warning: Error applying option: %v", err)
		}
	}

	if m.requester == nil {
		m.requester = api.NewClient(api.ResolveAPIKey(m.apiKey), m.modelName)
	}
	if m.outputFactory == nil {
		m.outputFactory = audioplayer.CommandOutputFactory(m.playerCmd)
	}
	events := m.sessionEvents
	m.controller = audioplayer.NewController(
		m.outputFactory,
		audioplayer.WithAnalyserOptions(spectrum.WithFFTSize(m.fftSize)),
		audioplayer.OnStateChange(func(sess *audioplayer.Session, state audioplayer.SessionState) {
			if state != audioplayer.SessionEnded && state != audioplayer.SessionStopped {
				return
			}
			select {
			case events <- playbackEndedMsg{session: sess}:
			default:
				log.Printf("[UI] Dropped %s event for session %s", state, sess.ID())
			}
		}),
	)
	m.speaker = NewSpeaker(m.requester, m.controller)

	m.canvas = visualizer.NewCanvas(m.canvasCols, m.canvasRows)
	m.scheduler = visualizer.NewTimerScheduler(m.frameInterval)
	updates := m.uiUpdateChan
	m.loop = visualizer.NewLoop(m.canvas, m.scheduler, visualizer.WithFrameHook(func() {
		select {
		case updates <- frameMsg{}:
		default: // a redraw is already queued
		}
	}))

	m.syncSettings()
	return m
}

// InitModel prepares the model before the program starts.
func (m *Model) InitModel() (tea.Model, error) {
	if m.showLogMessages {
		interceptor := &logInterceptor{
			model:    m,
			original: log.Writer(),
		}
		log.SetOutput(interceptor)
		log.Println("Log messages display enabled")
	}

	m.textarea.Focus()
	m.focusedComponent = focusInput

	log.Printf("Using model: %s", m.modelName)
	log.Printf("Voice: %s", m.voice)
	log.Printf("Audio player command: %q", m.playerCmd)
	log.Printf("API key: %s", helpers.RedactKey(api.ResolveAPIKey(m.apiKey)))
	log.Printf("Visualizer: %dx%d cells, frame interval %v, fft size %d", m.canvasCols, m.canvasRows, m.frameInterval, m.fftSize)

	return m, nil
}

// Voice returns the selected voice.
func (m *Model) Voice() api.VoiceName { return m.voice }

// Status returns the status line label.
func (m *Model) Status() string {
	switch {
	case m.loading:
		return StatusGenerating
	case m.playing:
		return StatusPlaying
	default:
		return StatusIdle
	}
}

// Err returns the message shown in the error box, if any.
func (m *Model) Err() string { return m.errMsg }

// listenForUIUpdatesCmd forwards messages from background goroutines.
func (m *Model) listenForUIUpdatesCmd() tea.Cmd {
	ch := m.uiUpdateChan
	return func() tea.Msg {
		return <-ch
	}
}

// generateCmd runs one generate-and-play attempt off the UI goroutine.
func (m *Model) generateCmd(text string, voice api.VoiceName) tea.Cmd {
	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	m.cancelGenerate = cancel
	sp := m.speaker
	return func() tea.Msg {
		defer cancel()
		sess, err := sp.GenerateAndPlay(ctx, text, voice)
		if err != nil {
			return generateErrorMsg{err: err}
		}
		return generateDoneMsg{session: sess}
	}
}

// listenForSessionEventsCmd waits for the next session to end or stop.
func (m *Model) listenForSessionEventsCmd() tea.Cmd {
	ch := m.sessionEvents
	return func() tea.Msg {
		return <-ch
	}
}

// Init is the initial command called by Bubble Tea.
func (m *Model) Init() tea.Cmd {
	m.textarea.Focus()
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.listenForUIUpdatesCmd(),
		m.listenForSessionEventsCmd(),
	)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case generateDoneMsg:
		m.loading = false
		m.cancelGenerate = nil
		m.session = msg.session
		m.playing = msg.session.State() == audioplayer.SessionPlaying
		if m.focusedComponent == focusInput {
			m.textarea.Focus()
		}
		m.startVisualizer()

	case generateErrorMsg:
		m.loading = false
		m.cancelGenerate = nil
		m.playing = false
		m.session = nil
		m.errMsg = UserMessage(msg.err)
		log.Printf("[UI] Generate failed (%s): %v", Classify(msg.err), msg.err)
		if m.focusedComponent == focusInput {
			m.textarea.Focus()
		}
		m.startVisualizer()

	case playbackEndedMsg:
		cmds = append(cmds, m.listenForSessionEventsCmd())
		if msg.session == m.session {
			log.Printf("[UI] Session %s finished: %s", msg.session.ID(), msg.session.State())
			m.playing = false
			m.session = nil
			m.startVisualizer()
		}

	case frameMsg:
		cmds = append(cmds, m.listenForUIUpdatesCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 20)
		m.height = max(msg.Height, 10)
		m.textarea.SetWidth(min(m.width-2, 100))
		*m.settingsPanel, _ = m.settingsPanel.Update(msg)

	default:
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.quitting = true
		m.Cleanup()
		return m, tea.Quit
	}

	if m.focusedComponent == focusSettings && m.showSettingsPanel {
		switch msg.String() {
		case "tab":
			m.settingsPanel.Blur()
			m.focusInput()
			return m, nil
		case "ctrl+s":
			// handled below
		default:
			var cmd tea.Cmd
			*m.settingsPanel, cmd = m.settingsPanel.Update(msg)
			if !m.settingsPanel.IsFocused() {
				m.showSettingsPanel = false
				m.focusInput()
			}
			return m, cmd
		}
	}

	switch msg.String() {
	case "ctrl+s":
		m.showSettingsPanel = !m.showSettingsPanel
		if m.showSettingsPanel {
			m.syncSettings()
			m.focusedComponent = focusSettings
			m.settingsPanel.Focus()
			m.textarea.Blur()
		} else {
			m.settingsPanel.Blur()
			m.focusInput()
		}
		return m, nil

	case "tab":
		switch m.focusedComponent {
		case focusInput:
			m.focusedComponent = focusVoices
			m.textarea.Blur()
		case focusVoices:
			if m.showSettingsPanel {
				m.focusedComponent = focusSettings
				m.settingsPanel.Focus()
			} else {
				m.focusInput()
			}
		}
		return m, nil

	case "ctrl+g", "enter":
		return m, m.generate()

	case "ctrl+x", "esc":
		m.stopPlayback()
		return m, nil

	case "ctrl+b":
		if !m.loading {
			m.textarea.SetValue(BurmeseSample)
			m.textarea.CursorEnd()
		}
		return m, nil
	}

	if m.focusedComponent == focusVoices {
		m.handleVoiceKey(msg.String())
		return m, nil
	}

	// The text area is read-only while a request is in flight.
	if m.loading {
		return m, nil
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleVoiceKey(key string) {
	if m.loading || m.playing {
		return
	}
	voices := api.Voices()
	idx := api.VoiceIndex(m.voice)
	switch key {
	case "left", "h", "up", "k":
		idx = (idx - 1 + len(voices)) % len(voices)
	case "right", "l", "down", "j":
		idx = (idx + 1) % len(voices)
	case "1", "2", "3", "4", "5":
		idx = int(key[0] - '1')
		if idx >= len(voices) {
			return
		}
	default:
		return
	}
	m.setVoice(voices[idx].ID)
}

func (m *Model) setVoice(v api.VoiceName) {
	if v == m.voice {
		return
	}
	m.voice = v
	m.syncSettings()
	log.Printf("[UI] Voice set to %s", v)
}

func (m *Model) focusInput() {
	m.focusedComponent = focusInput
	m.textarea.Focus()
}

// generate starts a request for the current text unless one is in flight.
func (m *Model) generate() tea.Cmd {
	text := m.textarea.Value()
	if m.loading || strings.TrimSpace(text) == "" {
		return nil
	}
	m.stopPlayback()
	m.loading = true
	m.errMsg = ""
	m.textarea.Blur()
	log.Printf("[UI] Generating %q with voice %s", helpers.Truncate(text, 40), m.voice)
	return tea.Batch(m.spinner.Tick, m.generateCmd(text, m.voice))
}

// stopPlayback halts the active session and clears the visualizer.
func (m *Model) stopPlayback() {
	m.controller.Stop()
	m.playing = false
	m.session = nil
	m.startVisualizer()
}

// startVisualizer (re)starts the frame loop for the current playback state.
func (m *Model) startVisualizer() {
	sess := m.session
	if !m.playing || sess == nil {
		m.loop.Start(nil, nil)
		return
	}
	a := sess.Analyser()
	if a == nil {
		m.loop.Start(nil, nil)
		return
	}
	m.loop.Start(a, func() bool {
		return sess.State() == audioplayer.SessionPlaying
	})
}

func (m *Model) syncSettings() {
	if m.settingsPanel == nil {
		return
	}
	m.settingsPanel.ModelName = m.modelName
	m.settingsPanel.Voice = string(m.voice)
	m.settingsPanel.PlayerCommand = m.playerCmd
	m.settingsPanel.FFTSize = m.fftSize
	if m.frameInterval > 0 {
		m.settingsPanel.FrameRate = int(time.Second / m.frameInterval)
	}
	m.settingsPanel.ShowLogMessages = m.showLogMessages
}

// Cleanup stops playback, cancels pending requests and releases the output.
func (m *Model) Cleanup() {
	log.Println("Cleaning up resources")
	if m.cancelGenerate != nil {
		m.cancelGenerate()
		m.cancelGenerate = nil
	}
	m.loop.Stop()
	if err := m.controller.Close(); err != nil {
		log.Printf("Error closing audio output: %v", err)
	}
	if c, ok := m.requester.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("Error closing speech client: %v", err)
		}
	}
	log.Println("Cleanup finished.")
}
