package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sqlchat/internal/chart"
)

const maxTerminalBars = 20

// palette cycles through bar colors
var palette = []lipgloss.Color{"62", "82", "214", "39", "170", "226"}

// RenderFigure draws a figure with text characters for the terminal
func RenderFigure(f *chart.Figure, width int) string {
	if f == nil || len(f.Values) == 0 {
		return ""
	}
	if width < 40 {
		width = 40
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	axisStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("📊 %s", f.Title)))
	b.WriteString("\n")
	b.WriteString(axisStyle.Render(fmt.Sprintf("%s by %s", f.YLabel, f.XLabel)))
	b.WriteString("\n\n")

	labelWidth := 0
	for i, l := range f.Labels {
		if i == maxTerminalBars {
			break
		}
		if n := lipgloss.Width(l); n > labelWidth {
			labelWidth = n
		}
	}
	if labelWidth > 24 {
		labelWidth = 24
	}
	barWidth := width - labelWidth - 14
	if barWidth < 10 {
		barWidth = 10
	}

	switch f.Kind {
	case chart.KindLine:
		b.WriteString(Sparkline(f.Values))
		b.WriteString("\n")
		first, last := f.Labels[0], f.Labels[len(f.Labels)-1]
		b.WriteString(axisStyle.Render(fmt.Sprintf("%s … %s  (min %s, max %s)",
			first, last, formatValue(minOf(f.Values)), formatValue(maxOf(f.Values)))))

	case chart.KindPie:
		total := 0.0
		for _, v := range f.Values {
			total += v
		}
		for i, label := range f.Labels {
			if i == maxTerminalBars {
				b.WriteString(axisStyle.Render(fmt.Sprintf("… %d more", len(f.Labels)-i)))
				break
			}
			pct := 0.0
			if total != 0 {
				pct = f.Values[i] / total * 100
			}
			b.WriteString(PercentageBar(padLabel(label, labelWidth), pct, barWidth))
			b.WriteString("\n")
		}

	default:
		max := maxOf(f.Values)
		for i, label := range f.Labels {
			if i == maxTerminalBars {
				b.WriteString(axisStyle.Render(fmt.Sprintf("… %d more", len(f.Labels)-i)))
				break
			}
			b.WriteString(BarChart(padLabel(label, labelWidth), f.Values[i], max, barWidth, palette[i%len(palette)]))
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// BarChart creates a horizontal bar chart
func BarChart(label string, value, max float64, width int, color lipgloss.Color) string {
	if max == 0 {
		max = value
	}

	percentage := 0.0
	if max != 0 {
		percentage = value / max
	}
	if percentage > 1 {
		percentage = 1
	}

	filledWidth := int(float64(width) * percentage)
	if filledWidth < 0 {
		filledWidth = 0
	}
	if filledWidth > width {
		filledWidth = width
	}

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	barStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return fmt.Sprintf("%s %s%s %s",
		label,
		barStyle.Render(filled),
		emptyStyle.Render(empty),
		formatValue(value),
	)
}

// PercentageBar creates a percentage-based bar for pie slices
func PercentageBar(label string, percentage float64, width int) string {
	if percentage > 100 {
		percentage = 100
	}
	if percentage < 0 {
		percentage = 0
	}

	filledWidth := int(float64(width) * percentage / 100)
	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	// Color based on share
	var color lipgloss.Color
	switch {
	case percentage >= 50:
		color = lipgloss.Color("82") // Green
	case percentage >= 25:
		color = lipgloss.Color("226") // Yellow
	case percentage >= 10:
		color = lipgloss.Color("214") // Orange
	default:
		color = lipgloss.Color("39") // Blue
	}

	barStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return fmt.Sprintf("%s %s%s %.1f%%",
		label,
		barStyle.Render(filled),
		emptyStyle.Render(empty),
		percentage,
	)
}

// Sparkline creates a simple sparkline from values
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	min, max := minOf(values), maxOf(values)

	// Sparkline characters from bottom to top
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	var result strings.Builder
	for _, v := range values {
		var idx int
		if max == min {
			idx = len(chars) / 2
		} else {
			normalized := (v - min) / (max - min)
			idx = int(normalized * float64(len(chars)-1))
		}
		result.WriteRune(chars[idx])
	}

	return result.String()
}

func padLabel(label string, width int) string {
	r := []rune(label)
	if width < 2 {
		return label
	}
	if len(r) > width {
		return string(r[:width-1]) + "…"
	}
	if pad := width - lipgloss.Width(label); pad > 0 {
		return label + strings.Repeat(" ", pad)
	}
	return label
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
