package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists run history in a shared MySQL database, for teams
// running the history index across multiple driver machines. Same schema
// and upsert semantics as SQLiteStore, with a pool of up to 10 open and 5
// idle connections.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL-backed history store. dsn follows
// go-sql-driver/mysql's DSN format, e.g.
// "user:pass@tcp(127.0.0.1:3306)/dagflow?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	s := &MySQLStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS run_history (
		workflow_id VARCHAR(191) PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		timestamp   DATETIME NOT NULL,
		backend     VARCHAR(32) NOT NULL,
		job_count   INT NOT NULL,
		error_count INT NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

func (s *MySQLStore) Record(ctx context.Context, r RunRecord) error {
	const stmt = `
	INSERT INTO run_history (workflow_id, name, timestamp, backend, job_count, error_count)
	VALUES (?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE name=VALUES(name), timestamp=VALUES(timestamp),
		backend=VALUES(backend), job_count=VALUES(job_count), error_count=VALUES(error_count)`
	_, err := s.db.ExecContext(ctx, stmt, r.WorkflowID, r.Name, r.Timestamp, r.Backend, r.JobCount, r.ErrorCount)
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

func (s *MySQLStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
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

func (s *MySQLStore) Get(ctx context.Context, workflowID string) (RunRecord, error) {
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

func (s *MySQLStore) Close() error { return s.db.Close() }
