package gate

// ChecklistItem is a sub-requirement of a step. It must be completed
// independently of the step's own status.
type ChecklistItem struct {
	ID        string
	Name      string
	Completed bool
}

// Step is the atomic unit of work a gate is evaluated over.
type Step struct {
	ID        string
	Name      string
	Status    StepStatus
	Checklist []ChecklistItem // ordered, may be nil
}

// IssueKind says what produced an issue.
type IssueKind string

const (
	IssueStep      IssueKind = "step"
	IssueChecklist IssueKind = "checklist"
)

// Issue is one remediation entry explaining why a gate has not passed.
type Issue struct {
	Kind      IssueKind
	SubjectID string // step or checklist item ID
	Message   string
}

// String returns the human-readable message.
func (i Issue) String() string {
	return i.Message
}

// Verdict is the result of evaluating a gate. Status is authoritative;
// Issues is informational and ordered step-then-checklist.
type Verdict struct {
	Status GateStatus
	Issues []Issue
}

// Messages returns the issue messages in order.
func (v Verdict) Messages() []string {
	msgs := make([]string, 0, len(v.Issues))
	for _, issue := range v.Issues {
		msgs = append(msgs, issue.Message)
	}
	return msgs
}

// StepResult is the outcome of evaluating a single step.
type StepResult struct {
	Blocking bool
	Issues   []Issue
}
