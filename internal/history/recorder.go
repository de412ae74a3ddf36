// Package history records gate verdicts for audit and feeds the last
// recorded status back into the next evaluation.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/deliverygate/internal/events"
	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/persistence"
)

// Key identifies a gate. An empty ModuleID is the workflow-level gate.
type Key struct {
	WorkflowID string
	ModuleID   string
}

func (k Key) String() string {
	return events.GateKeyFor(k.WorkflowID, k.ModuleID)
}

// GateStore is the subset of persistence.Store the recorder needs.
type GateStore interface {
	AppendGateRecord(ctx context.Context, rec persistence.GateRecord) error
	LastGateStatus(ctx context.Context, workflowID, moduleID string) (gate.GateStatus, error)
	GateHistory(ctx context.Context, workflowID, moduleID string) ([]persistence.GateRecord, error)
}

// Options configures a Recorder.
type Options struct {
	Bus             *events.EventBus // Optional; nil disables events
	RecordUnchanged bool             // Append a record even if the status did not change
	Now             func() time.Time // Clock override for tests
}

// Recorder wraps the pure gate engine with history: it reads the last
// recorded status, evaluates, and appends the new status.
type Recorder struct {
	store GateStore
	locks *KeyedLocker
	opts  Options
}

// NewRecorder creates a Recorder backed by store.
func NewRecorder(store GateStore, opts Options) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Recorder{
		store: store,
		locks: NewKeyedLocker(),
		opts:  opts,
	}
}

// Evaluate evaluates the gate identified by key over steps and records the
// verdict. clientID is only used to label published events.
func (r *Recorder) Evaluate(ctx context.Context, key Key, clientID string, steps []gate.Step) (gate.Verdict, error) {
	r.locks.Lock(key.String())
	defer r.locks.Unlock(key.String())

	current, err := r.store.LastGateStatus(ctx, key.WorkflowID, key.ModuleID)
	if err != nil {
		return gate.Verdict{}, fmt.Errorf("reading status of gate %s: %w", key, err)
	}

	verdict := gate.Evaluate(steps, current)
	now := r.opts.Now()

	if verdict.Status != current || r.opts.RecordUnchanged {
		rec := persistence.GateRecord{
			WorkflowID: key.WorkflowID,
			ModuleID:   key.ModuleID,
			Status:     verdict.Status,
			IssueCount: len(verdict.Issues),
			RecordedAt: now,
		}
		if err := r.store.AppendGateRecord(ctx, rec); err != nil {
			return verdict, fmt.Errorf("recording gate %s: %w", key, err)
		}
	}

	r.publish(events.TopicGate, events.GateEvaluatedEvent{
		WorkflowID: key.WorkflowID,
		ModuleID:   key.ModuleID,
		ClientID:   clientID,
		Verdict:    verdict,
		Timestamp:  now,
	})
	if verdict.Status != current {
		r.publish(events.TopicGate, events.GateTransitionEvent{
			WorkflowID: key.WorkflowID,
			ModuleID:   key.ModuleID,
			ClientID:   clientID,
			From:       current,
			To:         verdict.Status,
			Timestamp:  now,
		})
	}

	return verdict, nil
}

// ErrReasonRequired is returned when a manual transition has no reason.
var ErrReasonRequired = errors.New("a reason is required")

// MarkFailed records an operator decision that the gate failed. The gate
// stays failed on later evaluations until its scope passes cleanly.
func (r *Recorder) MarkFailed(ctx context.Context, key Key, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	return r.override(ctx, key, gate.GateFailed, reason)
}

// Clear resets a gate to pending, dropping a sticky failure.
func (r *Recorder) Clear(ctx context.Context, key Key, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	return r.override(ctx, key, gate.GatePending, reason)
}

func (r *Recorder) override(ctx context.Context, key Key, status gate.GateStatus, reason string) error {
	r.locks.Lock(key.String())
	defer r.locks.Unlock(key.String())

	current, err := r.store.LastGateStatus(ctx, key.WorkflowID, key.ModuleID)
	if err != nil {
		return fmt.Errorf("reading status of gate %s: %w", key, err)
	}

	now := r.opts.Now()
	rec := persistence.GateRecord{
		WorkflowID: key.WorkflowID,
		ModuleID:   key.ModuleID,
		Status:     status,
		Reason:     reason,
		RecordedAt: now,
	}
	if err := r.store.AppendGateRecord(ctx, rec); err != nil {
		return fmt.Errorf("recording gate %s: %w", key, err)
	}

	if status != current {
		r.publish(events.TopicGate, events.GateTransitionEvent{
			WorkflowID: key.WorkflowID,
			ModuleID:   key.ModuleID,
			From:       current,
			To:         status,
			Reason:     reason,
			Timestamp:  now,
		})
	}
	return nil
}

// History returns the recorded entries of a gate, oldest first.
func (r *Recorder) History(ctx context.Context, key Key) ([]persistence.GateRecord, error) {
	recs, err := r.store.GateHistory(ctx, key.WorkflowID, key.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("loading history of gate %s: %w", key, err)
	}
	return recs, nil
}

func (r *Recorder) publish(topic string, ev events.Event) {
	if r.opts.Bus != nil {
		r.opts.Bus.Publish(topic, ev)
	}
}
