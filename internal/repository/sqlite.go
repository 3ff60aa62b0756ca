package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cascadeai/orchestrator/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			state TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			checkpoint TEXT,
			result TEXT,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
		`CREATE TABLE IF NOT EXISTS trace (
			run_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			agent TEXT NOT NULL,
			success INTEGER NOT NULL,
			confidence REAL NOT NULL,
			cost REAL NOT NULL,
			error TEXT,
			report TEXT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trace_run ON trace(run_id, seq)`,
		`CREATE TABLE IF NOT EXISTS holds (
			hold_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			step_ordinal INTEGER NOT NULL,
			risk_level TEXT NOT NULL,
			reason TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			decided_by TEXT,
			decide_reason TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			decided_at DATETIME,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_holds_run_status ON holds(run_id, status)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun creates a new run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	task, err := json.Marshal(run.Task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, task, state, started_at) VALUES (?, ?, ?, ?)`,
		run.RunID, string(task), run.State, run.StartedAt)
	return err
}

// GetRun retrieves a run by ID. Returns (nil, nil) when the run does not exist.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, task, state, started_at, ended_at, checkpoint, result, error FROM runs WHERE run_id = ?`,
		runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns lists runs in start order, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	query := `SELECT run_id, task, state, started_at, ended_at, checkpoint, result, error FROM runs ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var task string
	var endedAt sql.NullTime
	var checkpoint, result, errData sql.NullString
	if err := row.Scan(&run.RunID, &task, &run.State, &run.StartedAt, &endedAt, &checkpoint, &result, &errData); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(task), &run.Task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if checkpoint.Valid && checkpoint.String != "" {
		run.Checkpoint = json.RawMessage(checkpoint.String)
	}
	if result.Valid && result.String != "" {
		var res domain.RunResult
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		run.Result = &res
	}
	if errData.Valid {
		run.Error = errData.String
	}
	return &run, nil
}

// UpdateRunState moves a run to a new pipeline state.
func (s *SQLiteStore) UpdateRunState(ctx context.Context, runID string, state domain.RunState) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ? WHERE run_id = ?`,
		state, runID)
	return err
}

// UpdateRunCheckpoint stores the serialized resume state alongside the state
// transition, so an escalated run can pick up where it left off.
func (s *SQLiteStore) UpdateRunCheckpoint(ctx context.Context, runID string, state domain.RunState, checkpoint json.RawMessage) error {
	var cp sql.NullString
	if len(checkpoint) > 0 {
		cp = sql.NullString{String: string(checkpoint), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, checkpoint = ? WHERE run_id = ?`,
		state, cp, runID)
	return err
}

// UpdateRunCompleted finalizes a run. The checkpoint is cleared since the run
// can no longer resume.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, state domain.RunState, result *domain.RunResult, runErr string) error {
	now := time.Now()
	var res sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		res = sql.NullString{String: string(data), Valid: true}
	}
	var errStr sql.NullString
	if runErr != "" {
		errStr = sql.NullString{String: runErr, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, ended_at = ?, result = ?, error = ?, checkpoint = NULL WHERE run_id = ?`,
		state, now, res, errStr, runID)
	return err
}

// AppendTrace inserts one trace row. Trace rows are never updated.
func (s *SQLiteStore) AppendTrace(ctx context.Context, runID string, ordinal int, entry domain.TraceEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trace (run_id, ordinal, agent, success, confidence, cost, error, report) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, ordinal, entry.Agent, entry.Success, entry.Confidence, entry.Cost, nullString(entry.Error), nullString(entry.Report))
	return err
}

// ListTrace returns a run's trace rows in insertion order.
func (s *SQLiteStore) ListTrace(ctx context.Context, runID string) ([]domain.TraceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, success, confidence, cost, error, report FROM trace WHERE run_id = ? ORDER BY seq ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.TraceEntry
	for rows.Next() {
		var e domain.TraceEntry
		var errData, report sql.NullString
		if err := rows.Scan(&e.Agent, &e.Success, &e.Confidence, &e.Cost, &errData, &report); err != nil {
			return nil, err
		}
		if errData.Valid {
			e.Error = errData.String
		}
		if report.Valid {
			e.Report = report.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateHold creates a new pending hold.
func (s *SQLiteStore) CreateHold(ctx context.Context, hold *domain.Hold) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holds (hold_id, run_id, step_ordinal, risk_level, reason, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hold.HoldID, hold.RunID, hold.StepOrdinal, hold.RiskLevel, hold.Reason, hold.Status, hold.CreatedAt)
	return err
}

// GetHold retrieves a hold by ID. Returns (nil, nil) when it does not exist.
func (s *SQLiteStore) GetHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hold_id, run_id, step_ordinal, risk_level, reason, status, decided_by, decide_reason, created_at, decided_at FROM holds WHERE hold_id = ?`,
		holdID)
	hold, err := scanHold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// GetPendingHoldForRun returns the run's oldest undecided hold, if any.
func (s *SQLiteStore) GetPendingHoldForRun(ctx context.Context, runID string) (*domain.Hold, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hold_id, run_id, step_ordinal, risk_level, reason, status, decided_by, decide_reason, created_at, decided_at
		 FROM holds WHERE run_id = ? AND status = ? ORDER BY created_at ASC LIMIT 1`,
		runID, domain.HoldStatusPending)
	hold, err := scanHold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hold, nil
}

// ListHolds lists holds, optionally filtered by status. The empty status
// matches everything.
func (s *SQLiteStore) ListHolds(ctx context.Context, status domain.HoldStatus) ([]domain.Hold, error) {
	query := `SELECT hold_id, run_id, step_ordinal, risk_level, reason, status, decided_by, decide_reason, created_at, decided_at FROM holds`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		hold, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *hold)
	}
	return holds, rows.Err()
}

func scanHold(row rowScanner) (*domain.Hold, error) {
	var h domain.Hold
	var reason, decidedBy, decideReason sql.NullString
	var decidedAt sql.NullTime
	if err := row.Scan(&h.HoldID, &h.RunID, &h.StepOrdinal, &h.RiskLevel, &reason, &h.Status, &decidedBy, &decideReason, &h.CreatedAt, &decidedAt); err != nil {
		return nil, err
	}
	if reason.Valid {
		h.Reason = reason.String
	}
	if decidedBy.Valid {
		h.DecidedBy = decidedBy.String
	}
	if decideReason.Valid {
		h.DecideReason = decideReason.String
	}
	if decidedAt.Valid {
		h.DecidedAt = &decidedAt.Time
	}
	return &h, nil
}

// DecideHold records a decision on a pending hold. Returns false when the hold
// was already decided, making decisions first-writer-wins.
func (s *SQLiteStore) DecideHold(ctx context.Context, holdID string, status domain.HoldStatus, decidedBy, reason string) (bool, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE holds SET status = ?, decided_by = ?, decide_reason = ?, decided_at = ? WHERE hold_id = ? AND status = ?`,
		status, decidedBy, reason, now, holdID, domain.HoldStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
