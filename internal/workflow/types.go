package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/deliverygate/internal/gate"
)

// ValidateID checks a workflow or module ID. IDs are joined with "/" to
// address gates and steps, so they must be non-empty and must not contain it.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("ID must not be empty")
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("ID %q must not contain %q", id, "/")
	}
	return nil
}

// Module is a named phase of a workflow. Its gate must pass before any
// module that depends on it is unlocked.
type Module struct {
	ID        string      // Unique within the workflow
	Name      string      // Human-readable name
	DependsOn []string    // Module IDs whose gates must pass first
	Steps     []gate.Step // Ordered steps evaluated by this module's gate
}

// Workflow is a client's onboarding or delivery plan.
type Workflow struct {
	ID       string
	ClientID string
	Name     string
	Modules  []*Module // Insertion order is the display order
}

// StepCount returns the number of steps across all modules.
func (w *Workflow) StepCount() int {
	n := 0
	for _, m := range w.Modules {
		n += len(m.Steps)
	}
	return n
}

// FindStep returns the module and index of the step with the given ID.
func (w *Workflow) FindStep(stepID string) (*Module, int, bool) {
	for _, m := range w.Modules {
		for i := range m.Steps {
			if m.Steps[i].ID == stepID {
				return m, i, true
			}
		}
	}
	return nil, -1, false
}

func cloneModule(m *Module) *Module {
	if m == nil {
		return nil
	}

	cp := *m
	if m.DependsOn != nil {
		cp.DependsOn = append([]string(nil), m.DependsOn...)
	}
	if m.Steps != nil {
		cp.Steps = make([]gate.Step, len(m.Steps))
		for i, s := range m.Steps {
			cp.Steps[i] = s
			if s.Checklist != nil {
				cp.Steps[i].Checklist = append([]gate.ChecklistItem(nil), s.Checklist...)
			}
		}
	}
	return &cp
}
