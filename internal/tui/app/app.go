package app

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lapislui/Nixkart/internal/tui/client"
	"github.com/lapislui/Nixkart/internal/tui/theme"
	"github.com/lapislui/Nixkart/internal/tui/views/chart"
	"github.com/lapislui/Nixkart/internal/tui/views/eventlog"
	"github.com/lapislui/Nixkart/internal/tui/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayEvents
)

type healthMsg struct {
	health *client.Health
	err    error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	snapshot *client.Snapshot
	selected int
	overlay  Overlay

	statusBar status.Model
	events    eventlog.Model

	connected bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		events:    eventlog.New(),
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

func (m Model) fetchHealth() tea.Cmd {
	if m.http == nil {
		return nil
	}
	return func() tea.Msg {
		h, err := m.http.GetHealth()
		return healthMsg{health: h, err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.events.Addf(eventlog.KindConn, "connected, requested initial snapshot")
		return m, tea.Batch(m.ws.ReadLoop(m.ctx), m.fetchHealth())

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.events.Addf(eventlog.KindErr, "disconnected: %v", msg.Err)
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		m.snapshot = msg.Snapshot
		m.statusBar.Observe(msg.Snapshot, msg.ReceivedAt)
		m.events.Addf(eventlog.KindFeed, "snapshot #%d", m.statusBar.Received)
		if stale := msg.Snapshot.StaleFields(); len(stale) > 0 {
			m.events.Addf(eventlog.KindStale, "stale series: %s", strings.Join(stale, ", "))
		}
		return m, m.ws.ReadLoop(m.ctx)

	case healthMsg:
		if msg.err != nil {
			m.events.Addf(eventlog.KindErr, "health: %v", msg.err)
			return m, nil
		}
		m.statusBar.Health = msg.health
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay == OverlayEvents {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Events):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		}
		return m, nil
	}

	n := len((&client.Snapshot{}).Charts())
	switch {
	case key.Matches(msg, m.keys.Next):
		m.selected = (m.selected + 1) % n

	case key.Matches(msg, m.keys.Prev):
		m.selected = (m.selected - 1 + n) % n

	case key.Matches(msg, m.keys.Refresh):
		if m.ws == nil {
			return m, nil
		}
		if err := m.ws.RequestData(); err != nil {
			m.events.Addf(eventlog.KindErr, "refresh: %v", err)
		} else {
			m.events.Addf(eventlog.KindAsk, "requested snapshot")
		}

	case key.Matches(msg, m.keys.Health):
		return m, m.fetchHealth()

	case key.Matches(msg, m.keys.Events):
		m.overlay = OverlayEvents
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayEvents {
		return m.events.View(m.width, m.height)
	}

	sections := []string{m.statusBar.View()}
	if !m.connected && m.snapshot == nil {
		sections = append(sections, m.renderDisconnected())
	} else {
		sections = append(sections, m.renderTabs(), m.renderCharts())
		if !m.connected {
			sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorDanger).
				Render("  DISCONNECTED, showing last snapshot. Reconnecting..."))
		}
	}
	sections = append(sections,
		theme.StyleDimmed.Render("  tab:next chart  r:refresh  s:health  e:events  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Foreground(theme.ColorDanger).Bold(true).Render("DISCONNECTED"),
		theme.StyleDimmed.Render("Reconnecting to the dashboard feed..."),
	)
	return lipgloss.Place(m.width, max(m.height-6, 3), lipgloss.Center, lipgloss.Center, body)
}

func (m Model) renderTabs() string {
	charts := m.currentCharts()
	tabs := make([]string, len(charts))
	for i, c := range charts {
		style := theme.StyleDimmed.Padding(0, 1)
		if i == m.selected {
			style = lipgloss.NewStyle().Bold(true).Foreground(theme.ColorBright).Background(theme.ColorPrimary).Padding(0, 1)
		}
		tabs[i] = style.Render(c.Title)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderCharts shows the selected chart, with its neighbour beside it when
// the terminal is wide enough.
func (m Model) renderCharts() string {
	charts := m.currentCharts()
	if m.width >= 140 {
		half := m.width / 2
		next := (m.selected + 1) % len(charts)
		return lipgloss.JoinHorizontal(lipgloss.Top,
			chart.Render(charts[m.selected], half, true),
			chart.Render(charts[next], half, false),
		)
	}
	return chart.Render(charts[m.selected], m.width, true)
}

func (m Model) currentCharts() []client.Chart {
	if m.snapshot == nil {
		return (&client.Snapshot{}).Charts()
	}
	return m.snapshot.Charts()
}
