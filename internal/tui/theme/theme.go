// Package theme provides the Lip Gloss color palette and reusable styles
// for the Nixkart dashboard TUI. It is a leaf package with no internal
// imports to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Dataset colors, cycled per line of a multi-series chart.
var (
	ColorPrimary   = lipgloss.Color("#6c63ff")
	ColorSecondary = lipgloss.Color("#00bfa5")
	ColorTertiary  = lipgloss.Color("#ffb300")
	ColorQuat      = lipgloss.Color("#ec4899")
)

var datasetColors = []lipgloss.Color{ColorPrimary, ColorSecondary, ColorTertiary, ColorQuat}

// Order status colors.
var (
	ColorPending    = lipgloss.Color("#d97706")
	ColorProcessing = lipgloss.Color("#2563eb")
	ColorShipped    = lipgloss.Color("#06b6d4")
	ColorDelivered  = lipgloss.Color("#16a34a")
	ColorCancelled  = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// DatasetColor returns the color for the i-th line of a chart.
func DatasetColor(i int) lipgloss.Color {
	return datasetColors[i%len(datasetColors)]
}

// StatusColor returns the color for an order status label.
func StatusColor(label string) lipgloss.Color {
	switch label {
	case "Pending":
		return ColorPending
	case "Processing":
		return ColorProcessing
	case "Shipped":
		return ColorShipped
	case "Delivered":
		return ColorDelivered
	case "Cancelled":
		return ColorCancelled
	default:
		return ColorDefault
	}
}

// HealthColor returns the color for a server health status.
func HealthColor(status string) lipgloss.Color {
	switch status {
	case "ok":
		return ColorHealthy
	case "degraded":
		return ColorWarning
	case "":
		return ColorDimmed
	default:
		return ColorDanger
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary)
)
