// Package chart renders one dashboard series as horizontal bars.
package chart

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lapislui/Nixkart/internal/tui/client"
	"github.com/lapislui/Nixkart/internal/tui/theme"
)

const (
	labelWidth = 14
	valueWidth = 10
	minBar     = 10
)

// Render draws c in a box width columns wide. Selected charts get a
// highlighted border.
func Render(c client.Chart, width int, selected bool) string {
	style := theme.StyleBorder
	if selected {
		style = theme.StyleSelected
	}
	inner := max(width-4, labelWidth+valueWidth+minBar)

	title := theme.StyleHeader.Render(c.Title)
	if c.Series.Stale {
		title += lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("  (stale)")
	}

	lines := []string{title}
	if len(c.Series.Labels) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  no data"))
		return style.Width(inner).Render(strings.Join(lines, "\n"))
	}

	datasets := c.Series.Lines()
	barWidth := inner - labelWidth - valueWidth - 2
	top := maxValue(datasets)

	for i, label := range c.Series.Labels {
		for j, d := range datasets {
			if i >= len(d.Values) {
				continue
			}
			name := label
			if j > 0 {
				name = ""
			}
			color := theme.DatasetColor(j)
			if c.Field == "order_status_data" {
				color = theme.StatusColor(label)
			}
			lines = append(lines, row(name, d.Values[i], top, barWidth, color))
		}
	}

	if len(datasets) > 1 {
		var legend []string
		for j, d := range datasets {
			legend = append(legend, lipgloss.NewStyle().Foreground(theme.DatasetColor(j)).Render("█ "+d.Label))
		}
		lines = append(lines, strings.Join(legend, "  "))
	}

	return style.Width(inner).Render(strings.Join(lines, "\n"))
}

func row(label string, v, top float64, barWidth int, color lipgloss.Color) string {
	if len(label) > labelWidth-1 {
		label = label[:labelWidth-2] + "…"
	}
	filled := 0
	if top > 0 && v > 0 {
		filled = min(int(v/top*float64(barWidth)+0.5), barWidth)
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", barWidth-filled))
	return fmt.Sprintf("%-*s %s %*s", labelWidth, label, bar, valueWidth, FormatValue(v))
}

func maxValue(datasets []client.Dataset) float64 {
	var top float64
	for _, d := range datasets {
		for _, v := range d.Values {
			top = max(top, v)
		}
	}
	return top
}

// FormatValue prints v compactly: whole numbers without decimals, large
// numbers with a k suffix.
func FormatValue(v float64) string {
	switch {
	case v >= 100_000:
		return fmt.Sprintf("%.0fk", v/1000)
	case v >= 10_000:
		return fmt.Sprintf("%.1fk", v/1000)
	case v == float64(int64(v)):
		return fmt.Sprintf("%d", int64(v))
	default:
		return fmt.Sprintf("%.1f", v)
	}
}
