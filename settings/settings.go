package settings

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/spectrum"
)

// Model represents the settings panel state
type Model struct {
	Width           int
	Height          int
	Focused         bool
	ModelName       string
	Voice           string
	PlayerCommand   string
	FFTSize         int
	FrameRate       int
	ShowLogMessages bool
}

// New creates a new settings model
func New() Model {
	return Model{
		ModelName: api.DefaultModel,
		Voice:     string(api.DefaultVoice),
		FFTSize:   spectrum.DefaultFFTSize,
		FrameRate: 60,
	}
}

// Init initializes the settings model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles updating the settings model
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width / 3
		m.Height = msg.Height
	case tea.KeyMsg:
		if !m.Focused {
			return m, nil
		}

		if msg.String() == "esc" {
			m.Focused = false
		}
	}

	return m, nil
}

// View renders the settings panel
func (m Model) View() string {
	border := lipgloss.Color("240")
	if m.Focused {
		border = lipgloss.Color("62")
	}
	style := lipgloss.NewStyle().
		Width(m.Width).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(1, 2)

	player := m.PlayerCommand
	if player == "" {
		player = "(auto-detect)"
	}
	content := fmt.Sprintf("Settings\n\nModel: %s\nVoice: %s\nPlayer: %s\nFFT Size: %d (%d bins)\nFrame Rate: %d fps\nShow Log Messages: %t\n\nESC: close | Tab: back to input",
		m.ModelName, m.Voice, player, m.FFTSize, m.FFTSize/2, m.FrameRate, m.ShowLogMessages)

	return style.Render(content)
}

// Focus sets focus on the settings panel
func (m *Model) Focus() {
	m.Focused = true
}

// Blur removes focus from the settings panel
func (m *Model) Blur() {
	m.Focused = false
}

// IsFocused returns whether the settings panel is focused
func (m Model) IsFocused() bool {
	return m.Focused
}
