package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_workflows_client_id ON workflows(client_id);

	CREATE TABLE IF NOT EXISTS modules (
		workflow_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (workflow_id, id),
		FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS module_dependencies (
		workflow_id TEXT NOT NULL,
		module_id TEXT NOT NULL,
		depends_on_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (workflow_id, module_id, depends_on_id),
		FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS steps (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		module_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		position INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_steps_workflow_module ON steps(workflow_id, module_id, position);

	CREATE TABLE IF NOT EXISTS checklist_items (
		id TEXT PRIMARY KEY,
		step_id TEXT NOT NULL,
		name TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (step_id) REFERENCES steps(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_checklist_items_step ON checklist_items(step_id, position);

	CREATE TABLE IF NOT EXISTS gate_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workflow_id TEXT NOT NULL,
		module_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		issue_count INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		recorded_at DATETIME NOT NULL,
		FOREIGN KEY (workflow_id) REFERENCES workflows(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_gate_history_scope
		ON gate_history(workflow_id, module_id, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
