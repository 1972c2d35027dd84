package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

// uiTickMsg asks a page to pull a fresh session snapshot. Ticks from an
// older chain or another page are dropped.
type uiTickMsg struct {
	page string
	id   int
}

func uiTick(page string, id int) tea.Cmd {
	return tea.Tick(model.UIRefreshInterval, func(_ time.Time) tea.Msg {
		return uiTickMsg{page: page, id: id}
	})
}

func newSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(focusStyle),
	)
}
