package workflow

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gammazero/toposort"

	"github.com/aristath/deliverygate/internal/gate"
)

// ErrCycle is returned when module dependencies form a cycle.
var ErrCycle = errors.New("module dependencies contain a cycle")

// Plan is the module dependency graph of a single workflow.
type Plan struct {
	mu         sync.RWMutex
	workflowID string
	modules    map[string]*Module  // All modules indexed by ID
	order      []string            // Insertion order
	dependents map[string][]string // moduleID -> modules that depend on it
}

// NewPlan creates an empty plan for the given workflow ID.
func NewPlan(workflowID string) *Plan {
	return &Plan{
		workflowID: workflowID,
		modules:    make(map[string]*Module),
		dependents: make(map[string][]string),
	}
}

// PlanFor builds and validates a plan from a workflow.
func PlanFor(wf *Workflow) (*Plan, error) {
	p := NewPlan(wf.ID)
	for _, m := range wf.Modules {
		if err := p.AddModule(m); err != nil {
			return nil, err
		}
	}
	if _, err := p.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wf.ID, err)
	}
	return p, nil
}

// WorkflowID returns the ID of the workflow the plan was built for.
func (p *Plan) WorkflowID() string {
	return p.workflowID
}

// AddModule adds a module to the plan. Returns error if the ID already exists.
func (p *Plan) AddModule(m *Module) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ValidateID(m.ID); err != nil {
		return fmt.Errorf("module: %w", err)
	}
	if _, exists := p.modules[m.ID]; exists {
		return fmt.Errorf("module with ID %q already exists", m.ID)
	}
	seen := make(map[string]bool, len(m.DependsOn))
	for _, depID := range m.DependsOn {
		if seen[depID] {
			return fmt.Errorf("module %q lists dependency %q more than once", m.ID, depID)
		}
		seen[depID] = true
	}

	p.modules[m.ID] = cloneModule(m)
	p.order = append(p.order, m.ID)

	for _, depID := range m.DependsOn {
		p.dependents[depID] = append(p.dependents[depID], m.ID)
	}

	return nil
}

// Validate returns module IDs in dependency order, or an error if a
// dependency is unknown or the dependencies form a cycle.
func (p *Plan) Validate() ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.sortLocked()
}

func (p *Plan) sortLocked() ([]string, error) {
	for _, id := range p.order {
		for _, depID := range p.modules[id].DependsOn {
			if _, exists := p.modules[depID]; !exists {
				return nil, fmt.Errorf("module %q depends on non-existent module %q", id, depID)
			}
		}
	}

	var edges []toposort.Edge
	for _, id := range p.order {
		m := p.modules[id]
		if len(m.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, id})
			continue
		}
		for _, depID := range m.DependsOn {
			edges = append(edges, toposort.Edge{depID, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	seen := make(map[string]bool, len(sorted))
	for _, id := range sorted {
		if id != nil {
			seen[id.(string)] = true
		}
	}
	if len(seen) != len(p.modules) {
		var missing []string
		for _, id := range p.order {
			if !seen[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("%w: unreachable modules %s", ErrCycle, strings.Join(missing, ", "))
	}

	return p.stableOrderLocked(), nil
}

// stableOrderLocked returns a dependency order that keeps independent
// modules in declaration order. The graph must already be acyclic.
func (p *Plan) stableOrderLocked() []string {
	order := make([]string, 0, len(p.order))
	emitted := make(map[string]bool, len(p.order))

	for len(order) < len(p.order) {
		for _, id := range p.order {
			if emitted[id] {
				continue
			}
			ready := true
			for _, depID := range p.modules[id].DependsOn {
				if !emitted[depID] {
					ready = false
					break
				}
			}
			if ready {
				emitted[id] = true
				order = append(order, id)
				break
			}
		}
	}
	return order
}

// Module returns a copy of the module with the given ID.
func (p *Plan) Module(id string) (*Module, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.modules[id]
	if !ok {
		return nil, false
	}
	return cloneModule(m), true
}

// Modules returns copies of all modules in insertion order.
func (p *Plan) Modules() []*Module {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Module, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, cloneModule(p.modules[id]))
	}
	return out
}

// Dependents returns the IDs of modules that directly depend on id.
func (p *Plan) Dependents(id string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return append([]string(nil), p.dependents[id]...)
}

// ModuleScope returns the steps evaluated by a single module's gate.
func (p *Plan) ModuleScope(id string) ([]gate.Step, bool) {
	m, ok := p.Module(id)
	if !ok {
		return nil, false
	}
	return m.Steps, true
}

// WorkflowScope returns every step of the workflow, flattened in
// dependency order.
func (p *Plan) WorkflowScope() ([]gate.Step, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	order, err := p.sortLocked()
	if err != nil {
		return nil, err
	}

	var steps []gate.Step
	for _, id := range order {
		steps = append(steps, cloneModule(p.modules[id]).Steps...)
	}
	return steps, nil
}

// Unlocked returns the modules whose dependencies have all passed their
// gates, given the latest gate status per module ID. Modules with no
// dependencies are always unlocked.
func (p *Plan) Unlocked(statuses map[string]gate.GateStatus) []*Module {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var unlocked []*Module
	for _, id := range p.order {
		if p.dependenciesPassed(p.modules[id], statuses) {
			unlocked = append(unlocked, cloneModule(p.modules[id]))
		}
	}
	return unlocked
}

func (p *Plan) dependenciesPassed(m *Module, statuses map[string]gate.GateStatus) bool {
	for _, depID := range m.DependsOn {
		if _, exists := p.modules[depID]; !exists {
			return false
		}
		if statuses[depID] != gate.GatePassed {
			return false
		}
	}
	return true
}
