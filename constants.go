package ttsstudio

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tmc/ttsstudio/visualizer"
)

// BurmeseSample is inserted by ctrl+b.
const BurmeseSample = "မင်္ဂလာပါ၊ ကျွန်တော်က Gemini ဖြစ်ပါတယ်။ ဒီနေ့ ဘာအကူအညီပေးရမလဲခင်ဗျာ။"

// Status line labels.
const (
	StatusGenerating = "Generating..."
	StatusPlaying    = "Playing Audio"
	StatusIdle       = "Idle"
)

// idlePlaceholder replaces the visualizer while nothing plays.
const idlePlaceholder = "♫ Ready to generate audio"

const (
	defaultCanvasCols  = 60
	defaultCanvasRows  = 6
	defaultFrameRate   = time.Second / 60
	defaultMaxLogs     = 10
	generateTimeout    = 2 * time.Minute
	sessionEventBuffer = 8
)

// Focus targets.
const (
	focusInput    = "input"
	focusVoices   = "voices"
	focusSettings = "settings"
)

// Styles
var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	subtitleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sectionStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8")).MarginTop(1)
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true) // Red
	errorBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("9")).Padding(0, 1)
	statusStyle       = lipgloss.NewStyle().Faint(true)
	counterStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	logMessageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true) // Gray
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	visualizerBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	voiceCardStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	voiceCardSelected = voiceCardStyle.BorderForeground(lipgloss.Color(visualizer.BottomColor))
	voiceCardDisabled = voiceCardStyle.Faint(true)
	femaleTagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
	maleTagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("105"))

	statusDotIdle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("●")
	statusDotGenerating = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("●")
	statusDotPlaying    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●")
)
