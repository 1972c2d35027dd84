package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/mcqpdf/internal/adbridge"
	"github.com/tinytelemetry/mcqpdf/internal/model"
	"github.com/tinytelemetry/mcqpdf/internal/poller"
)

// noticeTTL is how long a gate notice stays on screen.
const noticeTTL = 5 * time.Second

// renderHeader renders the title block for the selected exam type.
func renderHeader(exam model.ExamType, gate *adbridge.Gate) string {
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s-Focused MCQ Extractor", exam)),
		subtitleStyle.Render(fmt.Sprintf("Extract %s-relevant MCQs with Smart Topic Filtering", exam)),
	}
	if gate.Hosted() {
		lines = append(lines, renderAdStatus(gate.Status()))
	}
	return strings.Join(lines, "\n")
}

// renderAdStatus renders the host's ad status from the latest refresh.
func renderAdStatus(st model.AdStatus) string {
	switch {
	case st.AdSystemReady:
		return successStyle.Render("● Ad system ready")
	case st.Error != "":
		return warningStyle.Render("● Ad system unavailable: " + st.Error)
	default:
		return mutedStyle.Render("● Ad host connected, ads loading")
	}
}

// renderConnectionBar renders the health dot and label, the retry
// indicator and the browser restart count.
func renderConnectionBar(snap poller.Snapshot, width int) string {
	color := healthColor(snap.Health)
	dot := lipgloss.NewStyle().Foreground(color).Render("●")
	label := lipgloss.NewStyle().Foreground(color).Bold(true).Render(snap.Health.Label())

	parts := []string{dot + " " + label}
	if r := snap.RetryInfo; r != nil && r.IsRetrying {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("Retrying (%d/%d)", r.AttemptsMade, r.MaxAttempts)))
	}
	if b := snap.BrowserStatus; b != nil {
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("Browser restarts: %d", b.BrowserRestartCount)))
	}

	line := strings.Join(parts, "   ")
	if width > 4 {
		return sectionStyle.Width(width - 2).Render(line)
	}
	return line
}

// renderNotice renders the gate's latest notice while it is fresh.
func renderNotice(gate *adbridge.Gate, now time.Time) string {
	if gate == nil {
		return ""
	}
	n, ok := gate.Notice()
	if !ok || now.Sub(n.At) > noticeTTL {
		return ""
	}
	return noticeStyle(n.Level).Render(n.Message)
}

// formatLabel is the human name of a format.
func formatLabel(f model.PDFFormat) string {
	if f == model.FormatImage {
		return "High-Quality Image"
	}
	return "Text"
}

// formatDescription explains a format, including whether the image
// format still needs an ad.
func formatDescription(f model.PDFFormat, hosted, unlocked bool) string {
	if f == model.FormatText {
		return "Text-based PDF with clean formatting"
	}
	adInfo := " (Available in browser)"
	if hosted {
		if unlocked {
			adInfo = " (Unlocked)"
		} else {
			adInfo = " (Watch ad to unlock)"
		}
	}
	return "High-Quality Screenshots of MCQs" + adInfo
}

func renderHelp(bindings ...key.Binding) string {
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return helpStyle.Render(strings.Join(parts, " • "))
}
