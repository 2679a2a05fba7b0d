package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sabaini/chopsticks/coordinator"
	"github.com/sabaini/chopsticks/metrics"
)

// StatusSnapshot is one poll of a unit's presentation status, its action
// surface's test-status view, and the local Metrics Daemon's current
// family totals.
type StatusSnapshot struct {
	Status  coordinator.Status
	Test    coordinator.TestStatusResult
	Metrics metrics.Snapshot
}

// Fetcher produces one StatusSnapshot, or an error when the poll failed
// outright (e.g. the coordinator's peer state could not be read). A
// metrics-scrape failure alone should not produce an error here; callers
// are expected to leave Metrics zeroed, which the dashboard then shows as
// zero counts.
type Fetcher func() (StatusSnapshot, error)

type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh now"),
	),
}

type tickMsg time.Time

type fetchMsg struct {
	snap StatusSnapshot
	err  error
}

// StatusModel is the Bubble Tea model behind "chopsticks status".
type StatusModel struct {
	fetch    Fetcher
	interval time.Duration

	data StatusSnapshot
	err  error

	width, height int
	quitting      bool
}

// NewStatusModel creates a status dashboard model that polls fetch every
// interval.
func NewStatusModel(fetch Fetcher, interval time.Duration) StatusModel {
	return StatusModel{fetch: fetch, interval: interval}
}

func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m StatusModel) fetchCmd() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		snap, err := fetch()
		return fetchMsg{snap: snap, err: err}
	}
}

func (m StatusModel) tickCmd() tea.Cmd {
	interval := m.interval
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.fetchCmd()
		}

	case tickMsg:
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case fetchMsg:
		m.err = msg.err
		if msg.err == nil {
			m.data = msg.snap
		}
		return m, nil
	}

	return m, nil
}

func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("chopsticks status"))
	b.WriteString("\n\n")

	role := "worker"
	if m.data.Test.IsLeader {
		role = "leader"
	}
	levelStyle := StatusLevelStyle(m.data.Status.Level)

	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Role:"), ValueStyle.Render(role)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Level:"), levelStyle.Render(string(m.data.Status.Level))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Message:"), ValueStyle.Render(m.data.Status.Message)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Test state:"), ValueStyle.Render(m.data.Test.TestState)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Test run:"), ValueStyle.Render(emptyDash(m.data.Test.TestRunID))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Leader addr:"), ValueStyle.Render(emptyDash(m.data.Test.LeaderAddress))))
	b.WriteString(fmt.Sprintf("%s %t\n", LabelStyle.Render("Worker running:"), m.data.Test.WorkerRunning))
	b.WriteString(fmt.Sprintf("%s %d\n", LabelStyle.Render("Peers:"), m.data.Test.PeerCount))
	b.WriteString("\n")

	boxes := []string{
		m.renderStatBox("Total ops", fmt.Sprintf("%.0f", m.data.Metrics.TotalOps), highlightColor),
		m.renderStatBox("Errors", fmt.Sprintf("%.0f", m.data.Metrics.ErrorOps), errorColor),
		m.renderStatBox("Avg dur (s)", fmt.Sprintf("%.3f", m.data.Metrics.AvgDurationSeconds), warningColor),
		m.renderStatBox("Avg MB/s", fmt.Sprintf("%.2f", m.data.Metrics.AvgThroughputMBPS), successColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("last poll failed: %v", m.err)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("Press q to quit, r to refresh"))
	return b.String()
}

func (m StatusModel) renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return boxStyle.Render(content)
}

func emptyDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// RunStatusTUI runs the interactive status dashboard until the user quits.
func RunStatusTUI(fetch Fetcher, interval time.Duration) error {
	model := NewStatusModel(fetch, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatusStatic renders one snapshot without entering the
// interactive loop, for --static or non-TTY use.
func RenderStatusStatic(snap StatusSnapshot) string {
	model := NewStatusModel(nil, 0)
	model.data = snap
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
