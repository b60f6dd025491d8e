package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run history in a single-file SQLite database.
// WAL mode, one writer connection, auto-migration on first use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite-backed history
// store at path. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: %s: %w", pragma, err)
		}
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS run_history (
		workflow_id TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		timestamp   DATETIME NOT NULL,
		backend     TEXT NOT NULL,
		job_count   INTEGER NOT NULL,
		error_count INTEGER NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, r RunRecord) error {
	const stmt = `
	INSERT INTO run_history (workflow_id, name, timestamp, backend, job_count, error_count)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(workflow_id) DO UPDATE SET
		name=excluded.name, timestamp=excluded.timestamp, backend=excluded.backend,
		job_count=excluded.job_count, error_count=excluded.error_count`
	_, err := s.db.ExecContext(ctx, stmt, r.WorkflowID, r.Name, r.Timestamp, r.Backend, r.JobCount, r.ErrorCount)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	query := "SELECT workflow_id, name, timestamp, backend, job_count, error_count FROM run_history ORDER BY timestamp DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.WorkflowID, &r.Name, &r.Timestamp, &r.Backend, &r.JobCount, &r.ErrorCount); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(ctx context.Context, workflowID string) (RunRecord, error) {
	const query = `SELECT workflow_id, name, timestamp, backend, job_count, error_count FROM run_history WHERE workflow_id = ?`
	var r RunRecord
	err := s.db.QueryRowContext(ctx, query, workflowID).Scan(&r.WorkflowID, &r.Name, &r.Timestamp, &r.Backend, &r.JobCount, &r.ErrorCount)
	if err == sql.ErrNoRows {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("history: get: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
