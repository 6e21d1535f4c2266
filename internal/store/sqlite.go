package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rbazzell/distributed-systems-project/internal/matrix"
	"github.com/rbazzell/distributed-systems-project/internal/model"

	_ "modernc.org/sqlite"
)

const createResultsTable = `
CREATE TABLE IF NOT EXISTS results (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    a_rows      INTEGER NOT NULL,
    a_cols      INTEGER NOT NULL,
    b_rows      INTEGER NOT NULL,
    b_cols      INTEGER NOT NULL,
    rows        INTEGER NOT NULL,
    cols        INTEGER NOT NULL,
    matrix      TEXT,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER,
    created_at  DATETIME NOT NULL,
    finished_at DATETIME
)`

const selectResultColumns = `SELECT id, status, a_rows, a_cols, b_rows, b_cols,
	matrix, error, duration_ms, created_at, finished_at FROM results`

// ErrNotFound is returned when a result is not found.
var ErrNotFound = errors.New("result not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A second connection to ":memory:" would open a second, empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createResultsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateResult inserts a new result record.
func (s *SQLiteStore) CreateResult(ctx context.Context, r *model.Result) error {
	var data *string
	if r.Matrix != nil {
		encoded, err := encodeMatrix(r.Matrix)
		if err != nil {
			return err
		}
		data = &encoded
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (
			id, status, a_rows, a_cols, b_rows, b_cols, rows, cols,
			matrix, error, duration_ms, created_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.ShapeA.Rows, r.ShapeA.Cols, r.ShapeB.Rows, r.ShapeB.Cols,
		r.ShapeA.Rows, r.ShapeB.Cols, data, r.Error, r.DurationMS, r.CreatedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*model.Result, error) {
	r := &model.Result{}
	var data sql.NullString
	if err := row.Scan(
		&r.ID, &r.Status, &r.ShapeA.Rows, &r.ShapeA.Cols, &r.ShapeB.Rows, &r.ShapeB.Cols,
		&data, &r.Error, &r.DurationMS, &r.CreatedAt, &r.FinishedAt,
	); err != nil {
		return nil, err
	}
	if data.Valid {
		if err := json.Unmarshal([]byte(data.String), &r.Matrix); err != nil {
			return nil, fmt.Errorf("decode matrix: %w", err)
		}
	}
	return r, nil
}

// GetResult retrieves a result by ID.
func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, selectResultColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return r, nil
}

// ListResults returns a paginated list of results ordered by created_at DESC,
// along with the total count of all results.
func (s *SQLiteStore) ListResults(ctx context.Context, limit, offset int) ([]*model.Result, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM results").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count results: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		selectResultColumns+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []*model.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate results: %w", err)
	}

	return results, total, nil
}

// CompleteResult stores the final product of a pending result.
func (s *SQLiteStore) CompleteResult(ctx context.Context, id string, m matrix.Matrix, durationMS int) error {
	data, err := encodeMatrix(m)
	if err != nil {
		return err
	}
	return s.finish(ctx, id, model.StatusCompleted, &data, "", durationMS)
}

// FailResult marks a pending result as failed with the given reason.
func (s *SQLiteStore) FailResult(ctx context.Context, id, reason string, durationMS int) error {
	return s.finish(ctx, id, model.StatusFailed, nil, reason, durationMS)
}

// finish moves a result to a terminal status inside a transaction so the
// transition check and the update see the same row.
func (s *SQLiteStore) finish(ctx context.Context, id, status string, data *string, errMsg string, durationMS int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM results WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read result status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE results SET status = ?, matrix = ?, error = ?, duration_ms = ?, finished_at = ?
		WHERE id = ?`,
		status, data, errMsg, durationMS, time.Now().UTC(), id,
	); err != nil {
		return fmt.Errorf("update result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

// GetResultStats returns aggregate counts by status and the mean duration of
// completed results.
func (s *SQLiteStore) GetResultStats(ctx context.Context) (*ResultStats, error) {
	stats := &ResultStats{CountByStatus: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM results GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.CountByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM results WHERE status = ? AND duration_ms IS NOT NULL",
		model.StatusCompleted,
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}

func encodeMatrix(m matrix.Matrix) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode matrix: %w", err)
	}
	return string(data), nil
}
