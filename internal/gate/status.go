package gate

import "fmt"

// StepStatus is the workflow status of a single step. It mirrors the task
// statuses used by the rest of the dashboard.
type StepStatus string

const (
	StepTodo    StepStatus = "todo"
	StepDoing   StepStatus = "doing"
	StepReview  StepStatus = "review"
	StepDone    StepStatus = "done"
	StepBlocked StepStatus = "blocked"
	StepBacklog StepStatus = "backlog"
)

// String returns the string representation of the status.
func (s StepStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known step statuses.
func (s StepStatus) Valid() bool {
	switch s {
	case StepTodo, StepDoing, StepReview, StepDone, StepBlocked, StepBacklog:
		return true
	}
	return false
}

// ParseStepStatus converts user or storage input into a StepStatus.
func ParseStepStatus(s string) (StepStatus, error) {
	st := StepStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown step status %q", s)
	}
	return st, nil
}

// GateStatus is the verdict of a gate. The zero value means no status has
// been recorded for the gate yet.
type GateStatus string

const (
	GatePending GateStatus = "pending"
	GatePassed  GateStatus = "passed"
	GateBlocked GateStatus = "blocked"
	GateFailed  GateStatus = "failed"
)

// AllGateStatuses lists the gate statuses in display order.
var AllGateStatuses = []GateStatus{GatePending, GatePassed, GateBlocked, GateFailed}

// String returns the string representation of the status.
func (s GateStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known gate statuses.
func (s GateStatus) Valid() bool {
	switch s {
	case GatePending, GatePassed, GateBlocked, GateFailed:
		return true
	}
	return false
}

// AtRisk reports whether the gate needs operator attention.
func (s GateStatus) AtRisk() bool {
	return s == GateBlocked || s == GateFailed
}

// ParseGateStatus converts user or storage input into a GateStatus.
// The empty string parses to the zero value (no recorded status).
func ParseGateStatus(s string) (GateStatus, error) {
	if s == "" {
		return "", nil
	}
	st := GateStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown gate status %q", s)
	}
	return st, nil
}
