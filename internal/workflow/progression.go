package workflow

import (
	"fmt"

	"github.com/aristath/deliverygate/internal/gate"
)

// Progression tracks which modules of a plan a client may work on.
// When a module's gate passes, the modules that were waiting on it may
// become unlocked.
type Progression struct {
	plan *Plan
}

// NewProgression creates a Progression for the given plan.
func NewProgression(plan *Plan) *Progression {
	return &Progression{plan: plan}
}

// OnGatePassed is called after moduleID's gate evaluated to passed.
// statuses holds the latest gate status per module and must already
// include the pass. It returns the dependents of moduleID that are now
// unlocked, in declaration order.
func (pr *Progression) OnGatePassed(moduleID string, statuses map[string]gate.GateStatus) ([]*Module, error) {
	if _, ok := pr.plan.Module(moduleID); !ok {
		return nil, fmt.Errorf("module %q not found in workflow %q", moduleID, pr.plan.WorkflowID())
	}
	if statuses[moduleID] != gate.GatePassed {
		return nil, fmt.Errorf("module %q gate is %q, not passed", moduleID, statuses[moduleID])
	}

	waiting := make(map[string]bool)
	for _, id := range pr.plan.Dependents(moduleID) {
		waiting[id] = true
	}

	var unlocked []*Module
	for _, m := range pr.plan.Unlocked(statuses) {
		if waiting[m.ID] {
			unlocked = append(unlocked, m)
		}
	}
	return unlocked, nil
}

// Next returns the first module in dependency order whose gate has not
// passed but whose dependencies have. This is the phase a client is
// currently in; nil means every gate has passed.
func (pr *Progression) Next(statuses map[string]gate.GateStatus) (*Module, error) {
	order, err := pr.plan.Validate()
	if err != nil {
		return nil, err
	}

	unlocked := make(map[string]*Module)
	for _, m := range pr.plan.Unlocked(statuses) {
		unlocked[m.ID] = m
	}

	for _, id := range order {
		m, ok := unlocked[id]
		if !ok || statuses[id] == gate.GatePassed {
			continue
		}
		return m, nil
	}
	return nil, nil
}
