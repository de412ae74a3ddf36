package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/persistence"
	"github.com/aristath/deliverygate/internal/workflow"
)

const templateYAML = `
name: Onboarding
modules:
  - id: kickoff
    name: Kickoff
    steps:
      - id: contract
        name: Contrato
        checklist: [Assinatura, Pagamento]
  - id: setup
    name: Setup
    depends_on: [kickoff]
    steps:
      - id: pixel
        name: Pixel
`

// testEnv isolates config lookup and returns a database path and template path.
func testEnv(t *testing.T) (dbPath, tplPath string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	tplPath = filepath.Join(dir, "onboarding.yaml")
	if err := os.WriteFile(tplPath, []byte(templateYAML), 0644); err != nil {
		t.Fatalf("writing template: %v", err)
	}
	return filepath.Join(dir, "gates.db"), tplPath
}

// run executes the CLI with args against dbPath and returns its output.
func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--db", dbPath}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := run(t, dbPath, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\n%s", args, err, out)
	}
	return out
}

func TestCLI_WorkflowLifecycle(t *testing.T) {
	dbPath, tplPath := testEnv(t)

	out := mustRun(t, dbPath, "import", tplPath, "--client", "acme", "--workflow", "wf-acme")
	if !strings.Contains(out, "2 modules, 2 steps") {
		t.Errorf("unexpected import output: %q", out)
	}

	if _, err := run(t, dbPath, "import", tplPath, "--client", "acme", "--workflow", "wf-acme"); err == nil {
		t.Error("expected re-import without --force to fail")
	}

	out = mustRun(t, dbPath, "step", "wf-acme", "contract", "done")
	if !strings.Contains(out, "wf-acme/kickoff: pending") || !strings.Contains(out, "Checklist: Assinatura") {
		t.Errorf("unexpected step output: %q", out)
	}

	mustRun(t, dbPath, "check", "wf-acme", "contract", "Assinatura")
	out = mustRun(t, dbPath, "check", "wf-acme", "contract", "2")
	if !strings.Contains(out, "wf-acme/kickoff: passed") || !strings.Contains(out, "unlocked: Setup [setup]") {
		t.Errorf("expected kickoff to pass and unlock setup: %q", out)
	}
	if !strings.Contains(out, "wf-acme: pending") || !strings.Contains(out, "Step pendente: Pixel") {
		t.Errorf("unexpected workflow verdict: %q", out)
	}

	out = mustRun(t, dbPath, "--json", "evaluate")
	var p portfolioJSON
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("evaluate --json is not JSON: %v\n%s", err, out)
	}
	if len(p.Gates) != 3 || p.Counts[gate.GatePassed] != 1 || p.Next["wf-acme"] != "setup" {
		t.Errorf("unexpected portfolio: %+v", p)
	}

	mustRun(t, dbPath, "fail", "wf-acme", "setup", "--reason", "pixel vendor dropped")
	out = mustRun(t, dbPath, "evaluate", "--at-risk")
	if !strings.Contains(out, "FAILED") || !strings.Contains(out, "Onboarding / Setup") {
		t.Errorf("expected failed setup gate in at-risk list: %q", out)
	}

	out = mustRun(t, dbPath, "history", "wf-acme", "setup")
	if !strings.Contains(out, "failed") || !strings.Contains(out, "pixel vendor dropped") {
		t.Errorf("unexpected history: %q", out)
	}

	out = mustRun(t, dbPath, "step", "wf-acme", "pixel", "done")
	if !strings.Contains(out, "wf-acme/setup: passed") || !strings.Contains(out, "wf-acme: passed") {
		t.Errorf("completing the scope should clear the failure: %q", out)
	}
}

func TestCLI_ForceImportDiscardsGateHistory(t *testing.T) {
	dbPath, tplPath := testEnv(t)
	mustRun(t, dbPath, "import", tplPath, "--client", "acme", "--workflow", "wf-acme")
	mustRun(t, dbPath, "fail", "wf-acme", "kickoff", "--reason", "client paused the project")

	out := mustRun(t, dbPath, "import", tplPath, "--client", "acme", "--workflow", "wf-acme", "--force")
	if !strings.Contains(out, "2 modules, 2 steps") {
		t.Errorf("unexpected import output: %q", out)
	}

	out = mustRun(t, dbPath, "history", "wf-acme", "kickoff")
	if strings.Contains(out, "client paused the project") {
		t.Errorf("old history survived --force: %q", out)
	}

	out = mustRun(t, dbPath, "--json", "evaluate")
	var p portfolioJSON
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("evaluate --json is not JSON: %v\n%s", err, out)
	}
	if p.Counts[gate.GateFailed] != 0 || p.Counts[gate.GatePending] != 3 {
		t.Errorf("fresh workflow should be all pending: %+v", p.Counts)
	}
}

func TestCLI_Errors(t *testing.T) {
	dbPath, tplPath := testEnv(t)
	mustRun(t, dbPath, "import", tplPath, "--client", "acme", "--workflow", "wf-acme")

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing flags", args: []string{"import", tplPath}},
		{name: "slash in workflow id", args: []string{"import", tplPath, "--client", "acme", "--workflow", "acme/kickoff"}},
		{name: "unknown workflow", args: []string{"step", "ghost", "contract", "done"}},
		{name: "unknown step", args: []string{"step", "wf-acme", "ghost", "done"}},
		{name: "bad status", args: []string{"step", "wf-acme", "contract", "finished"}},
		{name: "unknown item", args: []string{"check", "wf-acme", "contract", "9"}},
		{name: "fail without reason", args: []string{"fail", "wf-acme"}},
		{name: "unknown module", args: []string{"history", "wf-acme", "ghost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, dbPath, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestResolveChecklistItem(t *testing.T) {
	step := gate.Step{Name: "Contrato", Checklist: []gate.ChecklistItem{
		{ID: "c1", Name: "Assinatura"},
		{ID: "c2", Name: "2"},
		{ID: "c3", Name: "Pagamento"},
	}}

	tests := []struct {
		ref    string
		wantID string
	}{
		{ref: "c3", wantID: "c3"},
		{ref: "Assinatura", wantID: "c1"},
		{ref: "2", wantID: "c2"}, // name wins over position
		{ref: "3", wantID: "c3"},
	}
	for _, tt := range tests {
		item, err := resolveChecklistItem(step, tt.ref)
		if err != nil {
			t.Errorf("resolveChecklistItem(%q) failed: %v", tt.ref, err)
			continue
		}
		if item.ID != tt.wantID {
			t.Errorf("resolveChecklistItem(%q) = %q, want %q", tt.ref, item.ID, tt.wantID)
		}
	}

	if _, err := resolveChecklistItem(step, "0"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound for position 0, got %v", err)
	}
}

func TestResolveStep(t *testing.T) {
	wf := &workflow.Workflow{ID: "wf", Modules: []*workflow.Module{
		{ID: "m", Steps: []gate.Step{{ID: "wf/brief"}, {ID: "custom"}}},
	}}

	if _, idx, err := resolveStep(wf, "brief"); err != nil || idx != 0 {
		t.Errorf("short ID: idx=%d err=%v", idx, err)
	}
	if _, idx, err := resolveStep(wf, "custom"); err != nil || idx != 1 {
		t.Errorf("full ID: idx=%d err=%v", idx, err)
	}
	if _, _, err := resolveStep(wf, "ghost"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 10)

	done := make(chan struct{})
	go func() {
		refreshLoop(ctx, 10*time.Millisecond, func() { calls <- struct{}{} })
		close(done)
	}()

	<-calls // immediate first pass
	<-calls // first tick
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refreshLoop did not stop after cancel")
	}
}
