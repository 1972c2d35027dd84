package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/model"
)

var (
	ColorBlue   = lipgloss.Color("39")
	ColorGreen  = lipgloss.Color("42")
	ColorYellow = lipgloss.Color("214")
	ColorRed    = lipgloss.Color("196")
	ColorGray   = lipgloss.Color("245")
	ColorWhite  = lipgloss.Color("255")
	ColorNavy   = lipgloss.Color("17")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorNavy).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().Foreground(ColorGray)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	activeSectionStyle = sectionStyle.BorderForeground(ColorBlue)

	labelStyle   = lipgloss.NewStyle().Bold(true)
	focusStyle   = lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorRed)
	warningStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	successStyle = lipgloss.NewStyle().Foreground(ColorGreen)
	helpStyle    = lipgloss.NewStyle().Foreground(ColorGray)
)

// healthColor maps a connection health to its indicator colour.
func healthColor(h model.ConnectionHealth) lipgloss.Color {
	switch h {
	case model.HealthStable:
		return ColorGreen
	case model.HealthBrowserRestarting:
		return ColorYellow
	case model.HealthError:
		return ColorRed
	default:
		return ColorGray
	}
}

func statusColor(s model.JobStatus) lipgloss.Color {
	switch s {
	case model.JobRunning, model.JobCreated:
		return ColorBlue
	case model.JobCompleted:
		return ColorGreen
	default:
		return ColorRed
	}
}

func noticeStyle(level adbridge.NoticeLevel) lipgloss.Style {
	switch level {
	case adbridge.NoticeSuccess:
		return successStyle
	case adbridge.NoticeWarning:
		return warningStyle
	case adbridge.NoticeError:
		return errorStyle
	default:
		return lipgloss.NewStyle().Foreground(ColorBlue)
	}
}
