package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/deliverygate/internal/events"
	"github.com/aristath/deliverygate/internal/gate"
)

// GateState is the latest known state of a single gate.
type GateState struct {
	Key         string
	ClientID    string
	WorkflowID  string
	ModuleID    string
	Status      gate.GateStatus
	Issues      []gate.Issue
	Transitions []string // Human-readable status changes, oldest first
	EvaluatedAt time.Time
}

// Label returns the list label of the gate.
func (g *GateState) Label() string {
	if g.ModuleID == "" {
		return g.WorkflowID + " (workflow)"
	}
	return g.WorkflowID + "/" + g.ModuleID
}

// GatePaneModel lists every gate seen on the event bus, grouped by client.
type GatePaneModel struct {
	gates       map[string]*GateState // gate key -> state
	gateOrder   []string              // display order
	selectedIdx int
	width       int
	height      int
	focused     bool
}

// NewGatePaneModel creates a new gate list pane.
func NewGatePaneModel() GatePaneModel {
	return GatePaneModel{
		gates: make(map[string]*GateState),
	}
}

// Update handles messages for the gate pane.
func (m GatePaneModel) Update(msg tea.Msg) (GatePaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.gateOrder)-1 {
				m.selectedIdx++
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		}

	case events.GateEvaluatedEvent:
		g := m.ensure(msg.GateKey(), msg.ClientID, msg.WorkflowID, msg.ModuleID)
		g.Status = msg.Verdict.Status
		g.Issues = msg.Verdict.Issues
		g.EvaluatedAt = msg.Timestamp

	case events.GateTransitionEvent:
		g := m.ensure(msg.GateKey(), msg.ClientID, msg.WorkflowID, msg.ModuleID)
		g.Status = msg.To
		line := fmt.Sprintf("%s  %s -> %s", msg.Timestamp.Format("2006-01-02 15:04"), statusName(msg.From), statusName(msg.To))
		if msg.Reason != "" {
			line += "  (" + msg.Reason + ")"
		}
		g.Transitions = append(g.Transitions, line)
	}

	return m, nil
}

// ensure returns the state for key, inserting it in display order if new.
func (m *GatePaneModel) ensure(key, clientID, workflowID, moduleID string) *GateState {
	if g, exists := m.gates[key]; exists {
		if g.ClientID == "" {
			g.ClientID = clientID
		}
		return g
	}

	selected := m.SelectedKey()
	g := &GateState{
		Key:        key,
		ClientID:   clientID,
		WorkflowID: workflowID,
		ModuleID:   moduleID,
	}
	m.gates[key] = g
	m.gateOrder = append(m.gateOrder, key)
	sort.SliceStable(m.gateOrder, func(i, j int) bool {
		a, b := m.gates[m.gateOrder[i]], m.gates[m.gateOrder[j]]
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		return a.Key < b.Key
	})

	// Keep the cursor on the gate that was selected before the insert
	for i, k := range m.gateOrder {
		if k == selected {
			m.selectedIdx = i
			break
		}
	}
	return g
}

// View renders the gate pane.
func (m GatePaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	innerWidth := m.width - 2
	var b strings.Builder

	title := StyleTitle.Render("Gates")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(innerWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.gateOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting for evaluation..."))
	} else {
		lastClient := ""
		for i, key := range m.gateOrder {
			g := m.gates[key]
			if g.ClientID != lastClient {
				b.WriteString(StyleTitle.Render(g.ClientID))
				b.WriteString("\n")
				lastClient = g.ClientID
			}

			name := g.Label()
			if width := innerWidth - 6; width > 3 && len(name) > width {
				name = name[:width-3] + "..."
			}

			line := fmt.Sprintf(" %s %s", StatusIcon(g.Status), name)
			if i == m.selectedIdx {
				line = StyleSelected.Render(fmt.Sprintf(" > %s", name))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SelectedKey returns the key of the selected gate, or "" when empty.
func (m GatePaneModel) SelectedKey() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.gateOrder) {
		return m.gateOrder[m.selectedIdx]
	}
	return ""
}

// Selected returns the selected gate state, or nil when empty.
func (m GatePaneModel) Selected() *GateState {
	return m.gates[m.SelectedKey()]
}

// SetSize updates the pane dimensions.
func (m *GatePaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *GatePaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func statusName(s gate.GateStatus) string {
	if s == "" {
		return "new"
	}
	return string(s)
}
