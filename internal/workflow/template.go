package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/deliverygate/internal/gate"
)

// Template is a reusable onboarding or delivery playbook, stored as YAML:
//
//	name: Onboarding
//	modules:
//	  - id: kickoff
//	    name: Kickoff
//	    steps:
//	      - id: contract
//	        name: Contrato assinado
//	        checklist: [Assinatura, Pagamento]
//	  - id: setup
//	    depends_on: [kickoff]
type Template struct {
	Name    string           `yaml:"name"`
	Modules []TemplateModule `yaml:"modules"`
}

// TemplateModule is one module of a Template.
type TemplateModule struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	DependsOn []string       `yaml:"depends_on,omitempty"`
	Steps     []TemplateStep `yaml:"steps"`
}

// TemplateStep is one step of a TemplateModule.
type TemplateStep struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Checklist []string `yaml:"checklist,omitempty"`
}

// LoadTemplate reads and parses a YAML template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", path, err)
	}

	tpl, err := ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	return tpl, nil
}

// ParseTemplate decodes a YAML template and validates its structure.
func ParseTemplate(data []byte) (*Template, error) {
	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, err
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Validate checks module and step IDs and the module dependency graph.
func (t *Template) Validate() error {
	if len(t.Modules) == 0 {
		return fmt.Errorf("template %q has no modules", t.Name)
	}

	stepIDs := make(map[string]bool)
	plan := NewPlan(t.Name)
	for _, tm := range t.Modules {
		if err := plan.AddModule(&Module{ID: tm.ID, DependsOn: tm.DependsOn}); err != nil {
			return err
		}
		for _, ts := range tm.Steps {
			if ts.ID == "" {
				return fmt.Errorf("module %q has a step without an id", tm.ID)
			}
			if stepIDs[ts.ID] {
				return fmt.Errorf("duplicate step id %q", ts.ID)
			}
			stepIDs[ts.ID] = true
		}
	}

	if _, err := plan.Validate(); err != nil {
		return err
	}
	return nil
}

func nameOr(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

// Instantiate creates a fresh workflow for a client from the template.
// Step and checklist IDs are prefixed with the workflow ID so they stay
// unique across clients. Modules and steps without a name are named after
// their ID. Every step starts in todo and every checklist item starts
// incomplete.
func (t *Template) Instantiate(workflowID, clientID string) *Workflow {
	wf := &Workflow{
		ID:       workflowID,
		ClientID: clientID,
		Name:     t.Name,
	}

	for _, tm := range t.Modules {
		m := &Module{
			ID:        tm.ID,
			Name:      nameOr(tm.Name, tm.ID),
			DependsOn: append([]string(nil), tm.DependsOn...),
		}
		for _, ts := range tm.Steps {
			step := gate.Step{
				ID:     fmt.Sprintf("%s/%s", workflowID, ts.ID),
				Name:   nameOr(ts.Name, ts.ID),
				Status: gate.StepTodo,
			}
			for i, item := range ts.Checklist {
				step.Checklist = append(step.Checklist, gate.ChecklistItem{
					ID:   fmt.Sprintf("%s/%s/%d", workflowID, ts.ID, i+1),
					Name: item,
				})
			}
			m.Steps = append(m.Steps, step)
		}
		wf.Modules = append(wf.Modules, m)
	}

	return wf
}
