package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aristath/deliverygate/internal/gate"
	"github.com/aristath/deliverygate/internal/workflow"
)

// ErrNotFound is returned when a workflow, step or checklist item does not exist.
var ErrNotFound = errors.New("not found")

// queryTimeout bounds every store operation.
const queryTimeout = 5 * time.Second

// GateRecord is one entry of a gate's audit history.
type GateRecord struct {
	WorkflowID string
	ModuleID   string // Empty for the workflow-level gate
	Status     gate.GateStatus
	IssueCount int
	Reason     string // Operator note for manual transitions
	RecordedAt time.Time
}

// Store defines the persistence interface for workflows and gate history.
type Store interface {
	// Workflow tree
	SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error
	ReplaceWorkflow(ctx context.Context, wf *workflow.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context) ([]*workflow.Workflow, error)
	DeleteWorkflow(ctx context.Context, workflowID string) error

	// Step and checklist updates
	UpdateStepStatus(ctx context.Context, stepID string, status gate.StepStatus) error
	SetChecklistItem(ctx context.Context, itemID string, completed bool) error

	// Gate history
	AppendGateRecord(ctx context.Context, rec GateRecord) error
	LastGateStatus(ctx context.Context, workflowID, moduleID string) (gate.GateStatus, error)
	GateHistory(ctx context.Context, workflowID, moduleID string) ([]GateRecord, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Pragmas go through _pragma so they apply to every pooled connection.
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)", dbPath)
	// Allow 2 connections: one for primary queries, one for concurrent readers
	store, err := open(ctx, connStr, 2)
	if err != nil {
		return nil, err
	}

	log.Printf("gate store opened at %s", dbPath)
	return store, nil
}

var memoryStoreSeq atomic.Int64

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each call gets its own database. A single connection keeps shared-cache
// table locks from surfacing as SQLITE_LOCKED under concurrent callers.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	name := fmt.Sprintf("memdb%d", memoryStoreSeq.Add(1))
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)
	return open(ctx, connStr, 1)
}

func open(ctx context.Context, connStr string, maxConns int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
