// Package gate decides whether a delivery gate is pending, passed, blocked
// or failed from the steps in its scope.
//
// Everything here is pure: no I/O, no shared state, inputs are never
// mutated. Callers may evaluate any number of gates concurrently.
package gate

const (
	stepIssuePrefix      = "Step pendente: "
	checklistIssuePrefix = "Checklist: "
)

// EvaluateChecklist returns one issue per incomplete item, in item order.
// A nil or empty checklist yields no issues.
func EvaluateChecklist(items []ChecklistItem) []Issue {
	var issues []Issue
	for _, item := range items {
		if item.Completed {
			continue
		}
		issues = append(issues, Issue{
			Kind:      IssueChecklist,
			SubjectID: item.ID,
			Message:   checklistIssuePrefix + item.Name,
		})
	}
	return issues
}

// EvaluateStep folds a step's status and checklist into a StepResult.
// A step that is not done reports itself first, then any incomplete
// checklist items. A done step still has its checklist evaluated.
func EvaluateStep(step Step) StepResult {
	var issues []Issue
	if step.Status != StepDone {
		issues = append(issues, Issue{
			Kind:      IssueStep,
			SubjectID: step.ID,
			Message:   stepIssuePrefix + step.Name,
		})
	}
	issues = append(issues, EvaluateChecklist(step.Checklist)...)

	return StepResult{
		Blocking: step.Status == StepBlocked,
		Issues:   issues,
	}
}

// Evaluate computes the verdict for a gate over steps, given the status
// recorded by the previous evaluation (zero value if none).
//
// Precedence, first match wins:
//  1. empty scope               -> pending
//  2. any blocked step          -> blocked
//  3. no issues                 -> passed
//  4. current is failed         -> failed
//  5. otherwise                 -> pending
//
// A failed gate therefore stays failed until a clean pass, and a blocked
// step is reported as blocked even when the gate was previously failed.
// An empty scope never passes and never carries a prior failure.
func Evaluate(steps []Step, current GateStatus) Verdict {
	issues := []Issue{}
	blocking := false

	for _, step := range steps {
		res := EvaluateStep(step)
		if res.Blocking {
			blocking = true
		}
		issues = append(issues, res.Issues...)
	}

	var status GateStatus
	switch {
	case len(steps) == 0:
		status = GatePending
	case blocking:
		status = GateBlocked
	case len(issues) == 0:
		status = GatePassed
	case current == GateFailed:
		status = GateFailed
	default:
		status = GatePending
	}

	return Verdict{Status: status, Issues: issues}
}
