package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/workflow"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func sampleWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		ID:       "wf-acme",
		ClientID: "acme",
		Name:     "Onboarding",
		Modules: []*workflow.Module{
			{
				ID:   "kickoff",
				Name: "Kickoff",
				Steps: []gate.Step{
					{ID: "s-contract", Name: "Contrato", Status: gate.StepDone, Checklist: []gate.ChecklistItem{
						{ID: "c-sign", Name: "Assinatura", Completed: true},
						{ID: "c-pay", Name: "Pagamento", Completed: false},
					}},
					{ID: "s-brief", Name: "Briefing", Status: gate.StepDoing},
				},
			},
			{
				ID:        "setup",
				Name:      "Setup",
				DependsOn: []string{"kickoff"},
				Steps: []gate.Step{
					{ID: "s-pixel", Name: "Pixel", Status: gate.StepTodo},
				},
			},
		},
	}
}

func TestSaveAndGetWorkflow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	wf := sampleWorkflow()
	if err := store.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("failed to save workflow: %v", err)
	}

	got, err := store.GetWorkflow(ctx, "wf-acme")
	if err != nil {
		t.Fatalf("failed to get workflow: %v", err)
	}

	if !reflect.DeepEqual(got, wf) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", got, wf)
	}
}

func TestSaveWorkflowReplacesTree(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	wf := sampleWorkflow()
	if err := store.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	// Drop the setup module and rename kickoff.
	wf.Modules = wf.Modules[:1]
	wf.Modules[0].Name = "Kickoff v2"
	if err := store.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := store.GetWorkflow(ctx, "wf-acme")
	if err != nil {
		t.Fatalf("failed to get workflow: %v", err)
	}
	if len(got.Modules) != 1 || got.Modules[0].Name != "Kickoff v2" {
		t.Errorf("unexpected modules after replace: %+v", got.Modules)
	}
	if got.StepCount() != 2 {
		t.Errorf("StepCount = %d, want 2", got.StepCount())
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	store := testStore(t)

	_, err := store.GetWorkflow(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListWorkflowsOrdered(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for _, wf := range []*workflow.Workflow{
		{ID: "wf-2", ClientID: "zeta", Name: "Z"},
		{ID: "wf-1", ClientID: "alpha", Name: "A"},
		{ID: "wf-3", ClientID: "alpha", Name: "A2"},
	} {
		if err := store.SaveWorkflow(ctx, wf); err != nil {
			t.Fatalf("save %s failed: %v", wf.ID, err)
		}
	}

	list, err := store.ListWorkflows(ctx)
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	var ids []string
	for _, wf := range list {
		ids = append(ids, wf.ID)
	}
	if want := []string{"wf-1", "wf-3", "wf-2"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestUpdateStepStatusAndChecklist(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := store.UpdateStepStatus(ctx, "s-brief", gate.StepDone); err != nil {
		t.Fatalf("UpdateStepStatus failed: %v", err)
	}
	if err := store.SetChecklistItem(ctx, "c-pay", true); err != nil {
		t.Fatalf("SetChecklistItem failed: %v", err)
	}

	got, err := store.GetWorkflow(ctx, "wf-acme")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	kickoff := got.Modules[0]
	if kickoff.Steps[1].Status != gate.StepDone {
		t.Errorf("brief status = %q, want done", kickoff.Steps[1].Status)
	}
	if !kickoff.Steps[0].Checklist[1].Completed {
		t.Error("payment checklist item not completed")
	}
	if v := gate.Evaluate(kickoff.Steps, ""); v.Status != gate.GatePassed {
		t.Errorf("kickoff gate = %q (%v), want passed", v.Status, v.Messages())
	}

	if err := store.UpdateStepStatus(ctx, "missing", gate.StepDone); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown step, got %v", err)
	}
	if err := store.SetChecklistItem(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown item, got %v", err)
	}
}

func TestGateHistory(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	status, err := store.LastGateStatus(ctx, "wf-acme", "kickoff")
	if err != nil {
		t.Fatalf("LastGateStatus failed: %v", err)
	}
	if status != "" {
		t.Errorf("expected no status before any record, got %q", status)
	}

	records := []GateRecord{
		{WorkflowID: "wf-acme", ModuleID: "kickoff", Status: gate.GatePending, IssueCount: 2},
		{WorkflowID: "wf-acme", ModuleID: "kickoff", Status: gate.GateFailed, Reason: "client rejected brief"},
		{WorkflowID: "wf-acme", ModuleID: "", Status: gate.GateBlocked, IssueCount: 4},
	}
	for _, rec := range records {
		if err := store.AppendGateRecord(ctx, rec); err != nil {
			t.Fatalf("AppendGateRecord failed: %v", err)
		}
	}

	status, err = store.LastGateStatus(ctx, "wf-acme", "kickoff")
	if err != nil {
		t.Fatalf("LastGateStatus failed: %v", err)
	}
	if status != gate.GateFailed {
		t.Errorf("last kickoff status = %q, want failed", status)
	}

	status, _ = store.LastGateStatus(ctx, "wf-acme", "")
	if status != gate.GateBlocked {
		t.Errorf("last workflow status = %q, want blocked", status)
	}

	history, err := store.GateHistory(ctx, "wf-acme", "kickoff")
	if err != nil {
		t.Fatalf("GateHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Status != gate.GatePending || history[0].IssueCount != 2 {
		t.Errorf("unexpected first record: %+v", history[0])
	}
	if history[1].Reason != "client rejected brief" {
		t.Errorf("reason = %q", history[1].Reason)
	}
	if history[1].RecordedAt.IsZero() {
		t.Error("RecordedAt not populated")
	}

	empty, err := store.GateHistory(ctx, "wf-acme", "setup")
	if err != nil {
		t.Fatalf("GateHistory failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil history, got %#v", empty)
	}
}

func TestReplaceWorkflowDropsGateHistory(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.AppendGateRecord(ctx, GateRecord{WorkflowID: "wf-acme", ModuleID: "kickoff", Status: gate.GateFailed, Reason: "paused"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// SaveWorkflow keeps history; ReplaceWorkflow does not.
	if err := store.SaveWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if status, _ := store.LastGateStatus(ctx, "wf-acme", "kickoff"); status != gate.GateFailed {
		t.Fatalf("SaveWorkflow dropped history: status = %q", status)
	}

	if err := store.ReplaceWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("ReplaceWorkflow failed: %v", err)
	}
	if status, _ := store.LastGateStatus(ctx, "wf-acme", "kickoff"); status != "" {
		t.Errorf("history survived replace: %q", status)
	}
	got, err := store.GetWorkflow(ctx, "wf-acme")
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if got.StepCount() != 3 {
		t.Errorf("StepCount = %d, want 3", got.StepCount())
	}
}

func TestDeleteWorkflow(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.SaveWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.AppendGateRecord(ctx, GateRecord{WorkflowID: "wf-acme", Status: gate.GatePending}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := store.DeleteWorkflow(ctx, "wf-acme"); err != nil {
		t.Fatalf("DeleteWorkflow failed: %v", err)
	}
	if _, err := store.GetWorkflow(ctx, "wf-acme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if status, _ := store.LastGateStatus(ctx, "wf-acme", ""); status != "" {
		t.Errorf("history survived delete: %q", status)
	}
	if err := store.DeleteWorkflow(ctx, "wf-acme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "gates.db")

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.SaveWorkflow(ctx, sampleWorkflow()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	wf, err := reopened.GetWorkflow(ctx, "wf-acme")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if wf.StepCount() != 3 {
		t.Errorf("StepCount = %d, want 3", wf.StepCount())
	}
}
