// Package tui renders the delivery dashboard: every gate of the portfolio,
// the issues of the selected gate and portfolio-wide counts.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/deliverygate/internal/config"
	"github.com/aristath/deliverygate/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneGateList PaneID = iota
	PaneIssues
	PanePortfolio
)

const paneCount = 3

// RefreshFunc triggers a portfolio evaluation. Results arrive as events.
type RefreshFunc func()

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	gatePane          GatePaneModel
	issuesPane        IssuesPaneModel
	portfolioPane     PortfolioPaneModel
	settingsPane      SettingsPaneModel
	focusedPane       PaneID
	eventSub          <-chan events.Event
	refresh           RefreshFunc
	width             int
	height            int
	quitting          bool
	showSettings      bool
	statusLine        string
	config            *config.Config
	globalConfigPath  string
	projectConfigPath string
}

// New creates a new TUI model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(eventBus *events.EventBus, cfg *config.Config, globalPath, projectPath string, refresh RefreshFunc) Model {
	return Model{
		gatePane:          NewGatePaneModel(),
		issuesPane:        NewIssuesPaneModel(),
		portfolioPane:     NewPortfolioPaneModel(),
		settingsPane:      NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:       PaneGateList,
		eventSub:          eventBus.SubscribeAll(256),
		refresh:           refresh,
		config:            cfg,
		globalConfigPath:  globalPath,
		projectConfigPath: projectPath,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// refreshCmd runs the refresh callback off the UI goroutine.
func refreshCmd(refresh RefreshFunc) tea.Cmd {
	if refresh == nil {
		return nil
	}
	return func() tea.Msg {
		refresh()
		return nil
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)

			if !m.settingsPane.IsVisible() {
				m.showSettings = false
				if m.settingsPane.Saved() {
					m.statusLine = "Settings saved"
				}
			}
			return m, tea.Batch(cmds...)
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyRefresh:
			m.statusLine = "Re-evaluating..."
			cmds = append(cmds, refreshCmd(m.refresh))

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneGateList
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneIssues
			m.updateFocusStates()

		case KeyPane3:
			m.focusedPane = PanePortfolio
			m.updateFocusStates()

		default:
			// Delegate to focused pane
			switch m.focusedPane {
			case PaneGateList:
				before := m.gatePane.SelectedKey()
				m.gatePane, _ = m.gatePane.Update(msg)
				if m.gatePane.SelectedKey() != before {
					m.issuesPane.SetGate(m.gatePane.Selected())
				}
			case PaneIssues:
				var cmd tea.Cmd
				m.issuesPane, cmd = m.issuesPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case events.GateEvaluatedEvent, events.GateTransitionEvent:
		m.gatePane, _ = m.gatePane.Update(msg)
		if ev, ok := msg.(events.Event); ok && ev.GateKey() == m.gatePane.SelectedKey() {
			cmds = append(cmds, m.issuesPane.Refresh())
		}
		cmds = append(cmds, waitForEvent(m.eventSub))

	case events.PortfolioProgressEvent:
		m.portfolioPane, _ = m.portfolioPane.Update(msg)
		m.statusLine = ""
		// The first pass may have populated the list before anything was selected
		m.issuesPane.SetGate(m.gatePane.Selected())
		cmds = append(cmds, waitForEvent(m.eventSub))

	case tickMsg:
		if m.issuesPane.Current(msg.tag) {
			m.issuesPane.SetGate(m.gatePane.Selected())
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.issuesPane.View(), m.portfolioPane.View())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.gatePane.View(), rightPane)

	helpBar := HelpView()
	if m.statusLine != "" {
		helpBar = lipgloss.JoinHorizontal(lipgloss.Top, helpBar, StyleHelp.Render("  "+m.statusLine))
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, helpBar)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 35) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // reserve 1 line for help bar
	rightTopHeight := (availableHeight * 65) / 100
	rightBottomHeight := availableHeight - rightTopHeight

	m.gatePane.SetSize(leftWidth, availableHeight)
	m.issuesPane.SetSize(rightWidth, rightTopHeight)
	m.portfolioPane.SetSize(rightWidth, rightBottomHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.gatePane.SetFocused(m.focusedPane == PaneGateList)
	m.issuesPane.SetFocused(m.focusedPane == PaneIssues)
	m.portfolioPane.SetFocused(m.focusedPane == PanePortfolio)
}
