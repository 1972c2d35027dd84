package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/mcqpdf/internal/model"
)

const counterChartHeight = 6

// renderCounters draws links processed, links remaining and MCQs found as
// a bar chart with a legend.
func renderCounters(job model.Job, width int) string {
	chartWidth := min(max(width-28, 12), 40)

	bc := barchart.New(chartWidth, counterChartHeight,
		barchart.WithBarGap(2),
		barchart.WithBarWidth(max((chartWidth-4)/3, 1)),
		barchart.WithNoAxis(),
	)

	remaining := max(job.TotalLinks-job.ProcessedLinks, 0)
	bars := []struct {
		name  string
		value int
		color lipgloss.Color
	}{
		{"Processed", job.ProcessedLinks, ColorBlue},
		{"Remaining", remaining, ColorGray},
		{"MCQs", job.MCQsFound, ColorGreen},
	}

	for _, b := range bars {
		style := lipgloss.NewStyle().Foreground(b.color).Background(b.color)
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: b.name, Value: float64(b.value), Style: style},
			},
		})
	}
	bc.Draw()

	var legend []string
	for _, b := range bars {
		swatch := lipgloss.NewStyle().Foreground(b.color).Render("■")
		legend = append(legend, fmt.Sprintf("%s %-9s %d", swatch, b.name, b.value))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, bc.View(), "  ", strings.Join(legend, "\n"))
}
