package ttsstudio

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/tmc/ttsstudio/api"
	"github.com/tmc/ttsstudio/internal/helpers"
)

// View renders the UI.
func (m *Model) View() string {
	if m.quitting {
		return "Stopping audio and quitting...\n"
	}

	width := m.width
	if width == 0 {
		width = 80
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(width),
		sectionStyle.Render("Select Voice Persona"),
		m.voicePickerView(),
		sectionStyle.Render("Text to Speech"),
		m.textarea.View(),
		m.counterView(),
		m.visualizerView(),
		m.statusView(width),
		m.errorView(width),
		m.logMessagesView(width),
	)

	if !m.showSettingsPanel || m.settingsPanel == nil {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, main, " ", m.settingsPanel.View())
}

// headerView renders the title and the active model.
func (m *Model) headerView(width int) string {
	title := titleStyle.Render("Gemini Polyglot TTS")
	sub := subtitleStyle.Render(fmt.Sprintf("%s · voice %s", m.modelName, m.voice))
	return lipgloss.NewStyle().MaxWidth(width).Render(title + "  " + sub)
}

// voicePickerView renders one card per voice, highlighting the selection.
func (m *Model) voicePickerView() string {
	disabled := m.loading || m.playing
	var cards []string
	for i, v := range api.Voices() {
		tag := maleTagStyle.Render(string(v.Gender))
		if v.Gender == api.Female {
			tag = femaleTagStyle.Render(string(v.Gender))
		}
		body := fmt.Sprintf("%d %s %s\n%s", i+1, v.Label, tag, helpers.Truncate(v.Description, 18))

		style := voiceCardStyle
		switch {
		case v.ID == m.voice:
			style = voiceCardSelected
		case disabled:
			style = voiceCardDisabled
		}
		cards = append(cards, style.Render(body))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	if m.focusedComponent == focusVoices {
		hint := "←/→ or 1-5 to choose"
		if disabled {
			hint = "voice locked while generating or playing"
		}
		row = lipgloss.JoinVertical(lipgloss.Left, row, statusStyle.Render(hint))
	}
	return row
}

// counterView shows the text length once something has been typed.
func (m *Model) counterView() string {
	n := utf8.RuneCountInString(m.textarea.Value())
	if n == 0 {
		return ""
	}
	return counterStyle.Render(fmt.Sprintf("%d chars", n))
}

// visualizerView renders the bar display, or a placeholder while idle.
func (m *Model) visualizerView() string {
	cols, rows := m.canvas.Size()
	var body string
	if m.playing {
		body = m.canvas.String()
	} else {
		body = lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, placeholderStyle.Render(idlePlaceholder))
	}
	return visualizerBox.Render(body)
}

// statusView renders the status dot, label and key help.
func (m *Model) statusView(width int) string {
	var status string
	switch {
	case m.loading:
		status = statusDotGenerating + " " + m.spinner.View() + StatusGenerating
	case m.playing:
		status = statusDotPlaying + " " + StatusPlaying
	default:
		status = statusDotIdle + " " + StatusIdle
	}

	keys := []string{"Enter: Generate"}
	if m.playing {
		keys = append(keys, "Ctrl+X: Stop")
	}
	keys = append(keys, "Ctrl+B: Burmese sample", "Tab: Voices", "Ctrl+S: Settings", "Ctrl+C: Quit")
	help := statusStyle.Render(strings.Join(keys, " | "))

	spacer := max(width-lipgloss.Width(status)-lipgloss.Width(help), 1)
	return lipgloss.NewStyle().MaxWidth(width).Render(status + strings.Repeat(" ", spacer) + help)
}

// errorView renders the last generation error.
func (m *Model) errorView(width int) string {
	if m.errMsg == "" {
		return ""
	}
	return errorBoxStyle.Width(max(width-4, 10)).Render(errorStyle.Render("✗ ") + m.errMsg)
}

// logMessagesView renders the log messages box
func (m *Model) logMessagesView(width int) string {
	if !m.showLogMessages {
		return ""
	}
	logs := m.recentLogs()
	if len(logs) == 0 {
		return ""
	}

	logBoxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(0, 1).
		Width(width - 2)

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("8")).
		Render("Recent Log Messages")

	var logContent strings.Builder
	logContent.WriteString(header + "\n")

	innerWidth := width - 4 // 2 for border, 2 for padding
	for i, logMsg := range logs {
		prefix := fmt.Sprintf("[%d] ", i+1)
		maxMsgWidth := max(innerWidth-lipgloss.Width(prefix), 1)
		logContent.WriteString(prefix + logMessageStyle.MaxWidth(maxMsgWidth).Render(logMsg) + "\n")
	}
	return logBoxStyle.Render(logContent.String())
}
