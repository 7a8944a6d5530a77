package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FrenchMajesty/newsbench/experiment"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id VARCHAR(36) NOT NULL,
    strategy VARCHAR(50) NOT NULL,
    portion REAL NOT NULL,
    accuracy REAL NOT NULL,
    duration_ms INTEGER NOT NULL,
    metrics TEXT,
    recorded_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_run ON results(run_id);
`

// SQLiteStore persists results across runs
type SQLiteStore struct {
	db *sql.DB
}

var _ experiment.Recorder = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the results database at path
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record implements experiment.Recorder
func (s *SQLiteStore) Record(ctx context.Context, r experiment.Result) error {
	var metrics sql.NullString
	if len(r.Metrics) > 0 {
		data, err := json.Marshal(r.Metrics)
		if err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
		metrics = sql.NullString{String: string(data), Valid: true}
	}

	recordedAt := r.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, strategy, portion, accuracy, duration_ms, metrics, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Strategy, r.Portion, r.Accuracy, r.Duration.Milliseconds(), metrics, recordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}
	return nil
}

// List returns the results of one run in insertion order. An empty runID
// lists every stored result.
func (s *SQLiteStore) List(ctx context.Context, runID string) ([]experiment.Result, error) {
	query := `SELECT run_id, strategy, portion, accuracy, duration_ms, metrics, recorded_at FROM results`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []experiment.Result
	for rows.Next() {
		var r experiment.Result
		var durationMs int64
		var metrics sql.NullString
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Portion, &r.Accuracy, &durationMs, &metrics, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if metrics.Valid {
			if err := json.Unmarshal([]byte(metrics.String), &r.Metrics); err != nil {
				return nil, fmt.Errorf("failed to decode metrics: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
