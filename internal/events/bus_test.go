package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/aristath/deliverygate/internal/gate"
)

func evaluated(workflowID, moduleID string, status gate.GateStatus) GateEvaluatedEvent {
	return GateEvaluatedEvent{
		WorkflowID: workflowID,
		ModuleID:   moduleID,
		ClientID:   "acme",
		Verdict:    gate.Verdict{Status: status},
		Timestamp:  time.Now(),
	}
}

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicGate, 10)

	bus.Publish(TopicGate, evaluated("wf-1", "kickoff", gate.GatePending))

	select {
	case received := <-ch:
		if received.GateKey() != "wf-1/kickoff" {
			t.Errorf("expected gate key 'wf-1/kickoff', got '%s'", received.GateKey())
		}
		if received.EventType() != EventTypeGateEvaluated {
			t.Errorf("expected event type '%s', got '%s'", EventTypeGateEvaluated, received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestGateKeyFor(t *testing.T) {
	if got := GateKeyFor("wf-1", ""); got != "wf-1" {
		t.Errorf("workflow gate key = %q, want wf-1", got)
	}
	if got := GateKeyFor("wf-1", "setup"); got != "wf-1/setup" {
		t.Errorf("module gate key = %q, want wf-1/setup", got)
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicGate, 10)
	ch2 := bus.Subscribe(TopicGate, 10)

	bus.Publish(TopicGate, GateTransitionEvent{
		WorkflowID: "wf-2",
		From:       gate.GatePending,
		To:         gate.GatePassed,
		Timestamp:  time.Now(),
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.GateKey() != "wf-2" {
				t.Errorf("subscriber %d: expected gate key 'wf-2', got '%s'", i+1, received.GateKey())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicGate, 1)

	done := make(chan bool)
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(TopicGate, evaluated(fmt.Sprintf("wf-%d", i), "", gate.GatePending))
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("publisher blocked (expected non-blocking behavior)")
	}

	select {
	case received := <-ch:
		if received == nil {
			t.Error("received nil event")
		}
	default:
		t.Error("expected at least one event in buffer")
	}

	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped = %d, want 9", got)
	}
}

// TestCloseSignalsSubscribers verifies that closing the bus closes subscriber channels.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicGate, 10)
	all := bus.SubscribeAll(10)

	bus.Close()
	bus.Close() // idempotent

	for _, c := range []<-chan Event{ch, all} {
		received := 0
		for range c {
			received++
		}
		if received != 0 {
			t.Errorf("expected 0 events after close, got %d", received)
		}
	}

	// Subscribing after close yields a closed channel.
	if _, ok := <-bus.Subscribe(TopicGate, 1); ok {
		t.Error("expected closed channel when subscribing after close")
	}
}

// TestPublishAfterClose verifies publishing after close doesn't panic.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(TopicGate, 10)
	bus.Close()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("publishing after close caused panic: %v", r)
		}
	}()

	bus.Publish(TopicGate, evaluated("wf-1", "", gate.GatePassed))
}

// TestSubscribeAll verifies topic isolation and cross-topic subscriptions.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	gateCh := bus.Subscribe(TopicGate, 10)
	allCh := bus.SubscribeAll(20)

	bus.Publish(TopicGate, evaluated("wf-1", "", gate.GateBlocked))
	bus.Publish(TopicPortfolio, PortfolioProgressEvent{Total: 3, Passed: 1, Pending: 1, Blocked: 1, Timestamp: time.Now()})

	receivedTypes := make(map[string]bool)
	for i := 0; i < 2; i++ {
		select {
		case received := <-allCh:
			receivedTypes[received.EventType()] = true
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}
	if !receivedTypes[EventTypeGateEvaluated] || !receivedTypes[EventTypePortfolioProgress] {
		t.Errorf("SubscribeAll missed an event type: %v", receivedTypes)
	}

	select {
	case received := <-gateCh:
		if received.EventType() != EventTypeGateEvaluated {
			t.Errorf("gate channel got %s", received.EventType())
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("gate channel: timeout waiting for event")
	}

	select {
	case <-gateCh:
		t.Error("gate channel received portfolio event")
	case <-time.After(10 * time.Millisecond):
	}
}
