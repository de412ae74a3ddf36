package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/deliverygate/internal/events"
)

// PortfolioPaneModel shows gate counts of the last portfolio evaluation.
type PortfolioPaneModel struct {
	total     int
	passed    int
	pending   int
	blocked   int
	failed    int
	duration  time.Duration
	updatedAt time.Time
	width     int
	height    int
	focused   bool
}

// NewPortfolioPaneModel creates a new portfolio pane.
func NewPortfolioPaneModel() PortfolioPaneModel {
	return PortfolioPaneModel{}
}

// Update handles messages for the portfolio pane.
func (m PortfolioPaneModel) Update(msg tea.Msg) (PortfolioPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.PortfolioProgressEvent:
		m.total = msg.Total
		m.passed = msg.Passed
		m.pending = msg.Pending
		m.blocked = msg.Blocked
		m.failed = msg.Failed
		m.duration = msg.Duration
		m.updatedAt = msg.Timestamp
	}

	return m, nil
}

// View renders the portfolio pane.
func (m PortfolioPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Portfolio")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Gates:   %d\n", m.total))
	b.WriteString(fmt.Sprintf("Passed:  %s\n", StyleStatusPassed.Render(fmt.Sprintf("%d", m.passed))))
	b.WriteString(fmt.Sprintf("Blocked: %s\n", StyleStatusBlocked.Render(fmt.Sprintf("%d", m.blocked))))
	b.WriteString(fmt.Sprintf("Failed:  %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Pending: %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-16, 40)
		passedWidth := (m.passed * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		blockedWidth := (m.blocked * barWidth) / m.total
		pendingWidth := barWidth - passedWidth - failedWidth - blockedWidth

		bar := StyleStatusPassed.Render(strings.Repeat("=", max(0, passedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusBlocked.Render(strings.Repeat("#", max(0, blockedWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d%%\n", bar, (m.passed*100)/m.total))
	}

	if !m.updatedAt.IsZero() {
		b.WriteString(StyleHelp.Render(fmt.Sprintf("Evaluated %s in %s", m.updatedAt.Format("15:04:05"), m.duration.Round(time.Millisecond))))
		b.WriteString("\n")
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

// SetSize updates the pane dimensions.
func (m *PortfolioPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *PortfolioPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
