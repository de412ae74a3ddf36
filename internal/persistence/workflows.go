package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/workflow"
)

// SaveWorkflow saves or replaces a workflow and its whole module, step and
// checklist tree in one transaction. Gate history is kept.
func (s *SQLiteStore) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	return s.saveWorkflow(ctx, wf, false)
}

// ReplaceWorkflow is SaveWorkflow for a fresh instance of the workflow: the
// gate history recorded against the old tree is dropped in the same
// transaction, so no sticky status carries over.
func (s *SQLiteStore) ReplaceWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	return s.saveWorkflow(ctx, wf, true)
}

func (s *SQLiteStore) saveWorkflow(ctx context.Context, wf *workflow.Workflow, resetHistory bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, client_id, name, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			name = excluded.name,
			updated_at = CURRENT_TIMESTAMP
	`, wf.ID, wf.ClientID, wf.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert workflow: %w", err)
	}

	// Replace the tree wholesale; children first so no dangling rows remain.
	for _, stmt := range []string{
		`DELETE FROM checklist_items WHERE step_id IN (SELECT id FROM steps WHERE workflow_id = ?)`,
		`DELETE FROM steps WHERE workflow_id = ?`,
		`DELETE FROM module_dependencies WHERE workflow_id = ?`,
		`DELETE FROM modules WHERE workflow_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, wf.ID); err != nil {
			return fmt.Errorf("failed to clear workflow tree: %w", err)
		}
	}
	if resetHistory {
		if _, err := tx.ExecContext(ctx, `DELETE FROM gate_history WHERE workflow_id = ?`, wf.ID); err != nil {
			return fmt.Errorf("failed to clear gate history: %w", err)
		}
	}

	for mPos, m := range wf.Modules {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO modules (workflow_id, id, name, position)
			VALUES (?, ?, ?, ?)
		`, wf.ID, m.ID, m.Name, mPos)
		if err != nil {
			return fmt.Errorf("failed to insert module %s: %w", m.ID, err)
		}

		for dPos, depID := range m.DependsOn {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO module_dependencies (workflow_id, module_id, depends_on_id, position)
				VALUES (?, ?, ?, ?)
			`, wf.ID, m.ID, depID, dPos)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", m.ID, depID, err)
			}
		}

		for sPos, step := range m.Steps {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO steps (id, workflow_id, module_id, name, status, position)
				VALUES (?, ?, ?, ?, ?, ?)
			`, step.ID, wf.ID, m.ID, step.Name, string(step.Status), sPos)
			if err != nil {
				return fmt.Errorf("failed to insert step %s: %w", step.ID, err)
			}

			for iPos, item := range step.Checklist {
				_, err = tx.ExecContext(ctx, `
					INSERT INTO checklist_items (id, step_id, name, completed, position)
					VALUES (?, ?, ?, ?, ?)
				`, item.ID, step.ID, item.Name, item.Completed, iPos)
				if err != nil {
					return fmt.Errorf("failed to insert checklist item %s: %w", item.ID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetWorkflow loads a workflow with its modules, steps and checklists in
// their stored order.
func (s *SQLiteStore) GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	wf := &workflow.Workflow{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, name FROM workflows WHERE id = ?
	`, workflowID).Scan(&wf.ID, &wf.ClientID, &wf.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %q: %w", workflowID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}

	modules, err := s.loadModules(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if err := s.loadDependencies(ctx, workflowID, modules); err != nil {
		return nil, err
	}
	steps, err := s.loadSteps(ctx, workflowID, modules)
	if err != nil {
		return nil, err
	}
	if err := s.loadChecklists(ctx, workflowID, steps); err != nil {
		return nil, err
	}

	wf.Modules = modules.order
	return wf, nil
}

type moduleIndex struct {
	order []*workflow.Module
	byID  map[string]*workflow.Module
}

func (s *SQLiteStore) loadModules(ctx context.Context, workflowID string) (*moduleIndex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name FROM modules WHERE workflow_id = ? ORDER BY position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query modules: %w", err)
	}
	defer rows.Close()

	idx := &moduleIndex{byID: make(map[string]*workflow.Module)}
	for rows.Next() {
		m := &workflow.Module{}
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		idx.order = append(idx.order, m)
		idx.byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating modules: %w", err)
	}
	return idx, nil
}

func (s *SQLiteStore) loadDependencies(ctx context.Context, workflowID string, idx *moduleIndex) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT module_id, depends_on_id FROM module_dependencies
		WHERE workflow_id = ?
		ORDER BY module_id, position
	`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var moduleID, depID string
		if err := rows.Scan(&moduleID, &depID); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		if m, ok := idx.byID[moduleID]; ok {
			m.DependsOn = append(m.DependsOn, depID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating dependencies: %w", err)
	}
	return nil
}

// stepRef locates a loaded step inside its module's slice.
type stepRef struct {
	module *workflow.Module
	index  int
}

func (s *SQLiteStore) loadSteps(ctx context.Context, workflowID string, idx *moduleIndex) (map[string]stepRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, module_id, name, status FROM steps
		WHERE workflow_id = ?
		ORDER BY module_id, position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]stepRef)
	for rows.Next() {
		var step gate.Step
		var moduleID, status string
		if err := rows.Scan(&step.ID, &moduleID, &step.Name, &status); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		// Stored statuses are passed through as-is; the engine treats
		// anything other than done as incomplete.
		step.Status = gate.StepStatus(status)

		m, ok := idx.byID[moduleID]
		if !ok {
			continue
		}
		m.Steps = append(m.Steps, step)
		refs[step.ID] = stepRef{module: m, index: len(m.Steps) - 1}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}
	return refs, nil
}

func (s *SQLiteStore) loadChecklists(ctx context.Context, workflowID string, refs map[string]stepRef) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.step_id, c.name, c.completed
		FROM checklist_items c
		JOIN steps s ON s.id = c.step_id
		WHERE s.workflow_id = ?
		ORDER BY c.step_id, c.position
	`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to query checklist items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item gate.ChecklistItem
		var stepID string
		if err := rows.Scan(&item.ID, &stepID, &item.Name, &item.Completed); err != nil {
			return fmt.Errorf("failed to scan checklist item: %w", err)
		}
		ref, ok := refs[stepID]
		if !ok {
			continue
		}
		step := &ref.module.Steps[ref.index]
		step.Checklist = append(step.Checklist, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating checklist items: %w", err)
	}
	return nil
}

// ListWorkflows returns every workflow ordered by client and workflow ID.
func (s *SQLiteStore) ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	ids, err := s.workflowIDs(ctx)
	if err != nil {
		return nil, err
	}

	workflows := make([]*workflow.Workflow, 0, len(ids))
	for _, id := range ids {
		wf, err := s.GetWorkflow(ctx, id)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

func (s *SQLiteStore) workflowIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM workflows ORDER BY client_id, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workflow id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}
	return ids, nil
}

// DeleteWorkflow removes a workflow, its tree and its gate history.
func (s *SQLiteStore) DeleteWorkflow(ctx context.Context, workflowID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM checklist_items WHERE step_id IN (SELECT id FROM steps WHERE workflow_id = ?)`,
		`DELETE FROM steps WHERE workflow_id = ?`,
		`DELETE FROM module_dependencies WHERE workflow_id = ?`,
		`DELETE FROM modules WHERE workflow_id = ?`,
		`DELETE FROM gate_history WHERE workflow_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, workflowID); err != nil {
			return fmt.Errorf("failed to delete workflow tree: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return fmt.Errorf("workflow %q: %w", workflowID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateStepStatus sets the status of a single step.
func (s *SQLiteStore) UpdateStepStatus(ctx context.Context, stepID string, status gate.StepStatus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE steps SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), stepID)
	if err != nil {
		return fmt.Errorf("failed to update step status: %w", err)
	}
	return requireRow(res, "step", stepID)
}

// SetChecklistItem marks a checklist item completed or not.
func (s *SQLiteStore) SetChecklistItem(ctx context.Context, itemID string, completed bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE checklist_items SET completed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, completed, itemID)
	if err != nil {
		return fmt.Errorf("failed to update checklist item: %w", err)
	}
	return requireRow(res, "checklist item", itemID)
}

func requireRow(res sql.Result, kind, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	return nil
}
