package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/deliverygate/internal/gate"
)

// AppendGateRecord appends an entry to a gate's history.
// History is append-only.
func (s *SQLiteStore) AppendGateRecord(ctx context.Context, rec GateRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gate_history (workflow_id, module_id, status, issue_count, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.WorkflowID, rec.ModuleID, string(rec.Status), rec.IssueCount, rec.Reason, rec.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append gate record: %w", err)
	}
	return nil
}

// LastGateStatus returns the most recently recorded status of a gate, or
// the zero GateStatus if the gate has no history.
func (s *SQLiteStore) LastGateStatus(ctx context.Context, workflowID, moduleID string) (gate.GateStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM gate_history
		WHERE workflow_id = ? AND module_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, workflowID, moduleID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last gate status: %w", err)
	}

	return gate.ParseGateStatus(status)
}

// GateHistory returns all records of a gate, oldest first.
// Returns empty slice (not nil) if no history exists.
func (s *SQLiteStore) GateHistory(ctx context.Context, workflowID, moduleID string) ([]GateRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, issue_count, reason, recorded_at
		FROM gate_history
		WHERE workflow_id = ? AND module_id = ?
		ORDER BY id ASC
	`, workflowID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gate history: %w", err)
	}
	defer rows.Close()

	history := []GateRecord{}
	for rows.Next() {
		rec := GateRecord{WorkflowID: workflowID, ModuleID: moduleID}
		var status string
		if err := rows.Scan(&status, &rec.IssueCount, &rec.Reason, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gate record: %w", err)
		}
		rec.Status = gate.GateStatus(status)
		history = append(history, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gate history: %w", err)
	}

	return history, nil
}
