package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lapislui/Nixkart/internal/tui/client"
	"github.com/lapislui/Nixkart/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected  bool
	Received   uint64
	LastUpdate time.Time
	Stale      []string
	Health     *client.Health
	Width      int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// Observe records a snapshot arrival.
func (m *Model) Observe(snap *client.Snapshot, at time.Time) {
	m.Received++
	m.LastUpdate = at
	m.Stale = snap.StaleFields()
}

// View renders the status bar.
func (m Model) View() string {
	width := max(m.Width, 40)

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	parts := []string{connStr, fmt.Sprintf("%d snapshots", m.Received)}
	if !m.LastUpdate.IsZero() {
		parts = append(parts, "updated "+m.LastUpdate.Format("15:04:05"))
	}
	if len(m.Stale) > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render(
			"stale: "+strings.Join(m.Stale, ", ")))
	}
	if m.Health != nil {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.HealthColor(m.Health.Status)).Render(
			fmt.Sprintf("server %s (%s, %d viewers)", m.Health.Status, m.Health.Backend, m.Health.Sessions)))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}
