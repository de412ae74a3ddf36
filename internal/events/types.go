package events

import (
	"time"

	"github.com/aristath/deliverygate/internal/gate"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	GateKey() string
}

// Topic constants
const (
	TopicGate      = "gate"
	TopicPortfolio = "portfolio"
)

// Event type constants
const (
	EventTypeGateEvaluated     = "gate.evaluated"
	EventTypeGateTransition    = "gate.transition"
	EventTypePortfolioProgress = "portfolio.progress"
)

// GateKeyFor returns the key events use to identify a gate.
// The workflow-level gate has an empty module ID.
func GateKeyFor(workflowID, moduleID string) string {
	if moduleID == "" {
		return workflowID
	}
	return workflowID + "/" + moduleID
}

// GateEvaluatedEvent is published after every gate evaluation.
type GateEvaluatedEvent struct {
	WorkflowID string
	ModuleID   string
	ClientID   string
	Verdict    gate.Verdict
	Timestamp  time.Time
}

func (e GateEvaluatedEvent) EventType() string { return EventTypeGateEvaluated }
func (e GateEvaluatedEvent) GateKey() string   { return GateKeyFor(e.WorkflowID, e.ModuleID) }

// GateTransitionEvent is published when a gate's recorded status changes.
type GateTransitionEvent struct {
	WorkflowID string
	ModuleID   string
	ClientID   string
	From       gate.GateStatus // Zero value for a gate with no prior history
	To         gate.GateStatus
	Reason     string
	Timestamp  time.Time
}

func (e GateTransitionEvent) EventType() string { return EventTypeGateTransition }
func (e GateTransitionEvent) GateKey() string   { return GateKeyFor(e.WorkflowID, e.ModuleID) }

// PortfolioProgressEvent is published after a portfolio evaluation pass.
type PortfolioProgressEvent struct {
	Total     int
	Passed    int
	Pending   int
	Blocked   int
	Failed    int
	Duration  time.Duration
	Timestamp time.Time
}

func (e PortfolioProgressEvent) EventType() string { return EventTypePortfolioProgress }
func (e PortfolioProgressEvent) GateKey() string   { return "" }
