package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/deliverygate/internal/config"
)

// SettingsPaneModel manages the settings form overlay.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget        string
	databasePath      string
	concurrency       string
	refreshSeconds    string
	recordUnchanged   bool
	retryInitialMS    string
	retryMaxElapsedMS string
	breakerFailures   string
	breakerTimeout    string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
	}
	m.loadFromConfig()
	m.buildForm()
	return m
}

// loadFromConfig copies config values into the form bindings.
func (m *SettingsPaneModel) loadFromConfig() {
	m.saveTarget = "global"
	m.databasePath = m.config.Database.Path
	m.concurrency = strconv.Itoa(m.config.Portfolio.Concurrency)
	m.refreshSeconds = strconv.Itoa(m.config.Portfolio.RefreshSeconds)
	m.recordUnchanged = m.config.Portfolio.RecordUnchanged
	m.retryInitialMS = strconv.Itoa(m.config.Retry.InitialIntervalMS)
	m.retryMaxElapsedMS = strconv.Itoa(m.config.Retry.MaxElapsedMS)
	m.breakerFailures = strconv.Itoa(m.config.Breaker.ConsecutiveFailures)
	m.breakerTimeout = strconv.Itoa(m.config.Breaker.OpenTimeoutSeconds)
}

// validatePositive rejects anything but a positive integer.
func validatePositive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive number")
	}
	return nil
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.deliverygate/config.json)", "global"),
					huh.NewOption("Project (.deliverygate/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("databasePath").
				Title("Database Path").
				Value(&m.databasePath).
				Placeholder("~/.deliverygate/gates.db"),

			huh.NewInput().
				Key("concurrency").
				Title("Workflows Evaluated At Once").
				Value(&m.concurrency).
				Validate(validatePositive),

			huh.NewInput().
				Key("refreshSeconds").
				Title("Dashboard Refresh (seconds)").
				Value(&m.refreshSeconds).
				Validate(validatePositive),

			huh.NewConfirm().
				Key("recordUnchanged").
				Title("Record Unchanged Verdicts").
				Value(&m.recordUnchanged),
		).Title("Portfolio"),

		huh.NewGroup(
			huh.NewInput().
				Key("retryInitialMS").
				Title("Retry Initial Interval (ms)").
				Value(&m.retryInitialMS).
				Validate(validatePositive),

			huh.NewInput().
				Key("retryMaxElapsedMS").
				Title("Retry Give Up After (ms)").
				Value(&m.retryMaxElapsedMS).
				Validate(validatePositive),

			huh.NewInput().
				Key("breakerFailures").
				Title("Breaker Trips After N Failures").
				Value(&m.breakerFailures).
				Validate(validatePositive),

			huh.NewInput().
				Key("breakerTimeout").
				Title("Breaker Open Timeout (seconds)").
				Value(&m.breakerTimeout).
				Validate(validatePositive),
		).Title("Store Resilience"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == KeyEsc {
			// Cancel without saving
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
// Unparseable numbers keep the current value.
func (m *SettingsPaneModel) applyFormToConfig() {
	atoi := func(s string, fallback int) int {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return fallback
	}

	m.config.Database.Path = m.databasePath
	m.config.Portfolio.Concurrency = atoi(m.concurrency, m.config.Portfolio.Concurrency)
	m.config.Portfolio.RefreshSeconds = atoi(m.refreshSeconds, m.config.Portfolio.RefreshSeconds)
	m.config.Portfolio.RecordUnchanged = m.recordUnchanged
	m.config.Retry.InitialIntervalMS = atoi(m.retryInitialMS, m.config.Retry.InitialIntervalMS)
	m.config.Retry.MaxElapsedMS = atoi(m.retryMaxElapsedMS, m.config.Retry.MaxElapsedMS)
	m.config.Breaker.ConsecutiveFailures = atoi(m.breakerFailures, m.config.Breaker.ConsecutiveFailures)
	m.config.Breaker.OpenTimeoutSeconds = atoi(m.breakerTimeout, m.config.Breaker.OpenTimeoutSeconds)
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	if m.err != nil {
		content = StyleStatusFailed.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings (applies on next start)")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	if v {
		m.loadFromConfig()
		m.buildForm()
		if m.width > 0 {
			m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
		}
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written to disk.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
