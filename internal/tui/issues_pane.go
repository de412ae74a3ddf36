package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// IssuesPaneModel shows the issues and transition log of the selected gate
// in a scrollable viewport.
type IssuesPaneModel struct {
	viewport  viewport.Model
	gateKey   string
	width     int
	height    int
	focused   bool
	updateTag int // for debouncing
}

// NewIssuesPaneModel creates a new issues pane.
func NewIssuesPaneModel() IssuesPaneModel {
	vp := viewport.New(0, 0)
	vp.SetContent("Select a gate to see its issues.")
	return IssuesPaneModel{
		viewport: vp,
	}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the issues pane.
func (m IssuesPaneModel) Update(msg tea.Msg) (IssuesPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.focused {
			m.viewport, cmd = m.viewport.Update(msg)
		}
	}

	return m, cmd
}

// Refresh schedules a debounced re-render of the selected gate.
func (m *IssuesPaneModel) Refresh() tea.Cmd {
	m.updateTag++
	tag := m.updateTag
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{tag: tag}
	})
}

// Current reports whether tag belongs to the latest scheduled refresh.
func (m IssuesPaneModel) Current(tag int) bool {
	return tag == m.updateTag
}

// SetGate renders g into the viewport. A nil gate shows a placeholder.
func (m *IssuesPaneModel) SetGate(g *GateState) {
	if g == nil {
		m.gateKey = ""
		m.viewport.SetContent("Select a gate to see its issues.")
		return
	}

	changed := g.Key != m.gateKey
	m.gateKey = g.Key
	m.viewport.SetContent(renderGate(g))
	if changed {
		m.viewport.GotoTop()
	}
}

func renderGate(g *GateState) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s  %s\n", StatusBadge(g.Status), g.Label()))
	if g.ClientID != "" {
		b.WriteString(fmt.Sprintf("Client: %s\n", g.ClientID))
	}
	if !g.EvaluatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Evaluated: %s\n", g.EvaluatedAt.Format("2006-01-02 15:04:05")))
	}
	b.WriteString("\n")

	if len(g.Issues) == 0 {
		b.WriteString(StyleStatusPassed.Render("No open issues"))
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("Issues (%d):\n", len(g.Issues)))
		for _, issue := range g.Issues {
			b.WriteString("  • ")
			b.WriteString(issue.Message)
			b.WriteString("\n")
		}
	}

	if len(g.Transitions) > 0 {
		b.WriteString("\nHistory:\n")
		for _, line := range g.Transitions {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// View renders the issues pane.
func (m IssuesPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(m.viewport.View())
}

// SetSize updates the pane dimensions and resizes the viewport.
func (m *IssuesPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h

	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-2, 3)
}

// SetFocused updates the focus state.
func (m *IssuesPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
