// Package report evaluates every gate of every stored workflow and
// summarizes the result as a portfolio.
package report

import (
	"sort"

	"github.com/aristath/deliverygate/internal/gate"
)

// GateSummary is the verdict of one gate. An empty ModuleID marks the
// workflow-level gate.
type GateSummary struct {
	ClientID     string
	WorkflowID   string
	WorkflowName string
	ModuleID     string
	ModuleName   string
	Locked       bool // A module whose dependencies have not all passed
	Verdict      gate.Verdict
}

// IsWorkflowGate reports whether s summarizes the workflow-level gate.
func (s GateSummary) IsWorkflowGate() bool {
	return s.ModuleID == ""
}

// Label returns a human-readable name for the gate.
func (s GateSummary) Label() string {
	if s.IsWorkflowGate() {
		return s.WorkflowName
	}
	return s.WorkflowName + " / " + s.ModuleName
}

// WorkflowError records a workflow that could not be evaluated.
type WorkflowError struct {
	WorkflowID string
	Err        error
}

// Portfolio is the result of one evaluation pass.
type Portfolio struct {
	Gates  []GateSummary
	Counts map[gate.GateStatus]int
	Next   map[string]string // Workflow ID -> next module to work on; absent when all passed
	Errors []WorkflowError
}

func newPortfolio() *Portfolio {
	counts := make(map[gate.GateStatus]int, len(gate.AllGateStatuses))
	for _, s := range gate.AllGateStatuses {
		counts[s] = 0
	}
	return &Portfolio{
		Gates:  []GateSummary{},
		Counts: counts,
		Next:   make(map[string]string),
	}
}

// Total returns the number of gates evaluated.
func (p *Portfolio) Total() int {
	return len(p.Gates)
}

// AtRisk returns the gates that are blocked or failed, in portfolio order.
func (p *Portfolio) AtRisk() []GateSummary {
	var out []GateSummary
	for _, g := range p.Gates {
		if g.Verdict.Status.AtRisk() {
			out = append(out, g)
		}
	}
	return out
}

// Health returns the fraction of gates that passed, or 0 for an empty portfolio.
func (p *Portfolio) Health() float64 {
	if len(p.Gates) == 0 {
		return 0
	}
	return float64(p.Counts[gate.GatePassed]) / float64(len(p.Gates))
}

// finalize sorts gates by client and workflow and recomputes the counts.
// Within a workflow, module gates keep declaration order and the workflow
// gate comes last.
func (p *Portfolio) finalize() {
	sort.SliceStable(p.Gates, func(i, j int) bool {
		a, b := p.Gates[i], p.Gates[j]
		if a.ClientID != b.ClientID {
			return a.ClientID < b.ClientID
		}
		if a.WorkflowID != b.WorkflowID {
			return a.WorkflowID < b.WorkflowID
		}
		return false
	})
	sort.Slice(p.Errors, func(i, j int) bool {
		return p.Errors[i].WorkflowID < p.Errors[j].WorkflowID
	})

	for s := range p.Counts {
		p.Counts[s] = 0
	}
	for _, g := range p.Gates {
		p.Counts[g.Verdict.Status]++
	}
}
