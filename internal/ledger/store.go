package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shelfmark/internal/config"
)

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "ledger.db"))
}

// OpenPath opens the ledger database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

const runColumns = `id, run_key, source_path, source_name, filter_name, bundle,
	derivative_path, status, error_message, created_at, updated_at`

// Enqueue inserts a pending run for one (source, filter) pair.
func (s *Store) Enqueue(ctx context.Context, sourcePath, sourceName, filterName, bundle string) (*Run, error) {
	now := timestamp()
	key := uuid.NewString()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO filter_runs (
			run_key, source_path, source_name, filter_name, bundle,
			status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key, sourcePath, sourceName, filterName, bundle,
		StatusPending, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a single run.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM filter_runs WHERE id = ?", id)
	return scanRun(row)
}

// NextPending claims the oldest pending run, transitioning it to running.
// It returns nil when nothing is pending.
func (s *Store) NextPending(ctx context.Context) (*Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := tx.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM filter_runs WHERE status = ? ORDER BY id LIMIT 1",
		StatusPending)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	now := timestamp()
	if _, err := tx.ExecContext(ctx,
		"UPDATE filter_runs SET status = ?, updated_at = ? WHERE id = ?",
		StatusRunning, now, run.ID); err != nil {
		return nil, fmt.Errorf("claim run %d: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	run.Status = StatusRunning
	return run, nil
}

// MarkCompleted records a successful run and the derivative it produced.
func (s *Store) MarkCompleted(ctx context.Context, id int64, derivativePath string) error {
	return s.update(ctx, id,
		"UPDATE filter_runs SET status = ?, derivative_path = ?, error_message = '', updated_at = ? WHERE id = ?",
		StatusCompleted, derivativePath, timestamp(), id)
}

// MarkFailed records a failed run with its terminal status and reason.
func (s *Store) MarkFailed(ctx context.Context, id int64, status Status, message string) error {
	if status != StatusFailed && status != StatusReview {
		return fmt.Errorf("mark failed: status %q is not terminal-failure", status)
	}
	return s.update(ctx, id,
		"UPDATE filter_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?",
		status, message, timestamp(), id)
}

// Retry moves a failed or review run back to pending.
func (s *Store) Retry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE filter_runs SET status = ?, error_message = '', updated_at = ? WHERE id = ? AND status IN (?, ?)",
		StatusPending, timestamp(), id, StatusFailed, StatusReview)
	if err != nil {
		return fmt.Errorf("retry run %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retry rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("retry run %d: not found or not in a retryable status", id)
	}
	return nil
}

// Completed reports whether a (source, filter) pair already has a completed
// run. The batch manager uses it to skip already-filtered bitstreams.
func (s *Store) Completed(ctx context.Context, sourcePath, filterName string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM filter_runs WHERE source_path = ? AND filter_name = ? AND status = ?",
		sourcePath, filterName, StatusCompleted).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check completed: %w", err)
	}
	return count > 0, nil
}

// HasActive reports whether a (source, filter) pair has a pending or running
// run, so re-enqueueing cannot stack duplicates.
func (s *Store) HasActive(ctx context.Context, sourcePath, filterName string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM filter_runs WHERE source_path = ? AND filter_name = ? AND status IN (?, ?)",
		sourcePath, filterName, StatusPending, StatusRunning).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active: %w", err)
	}
	return count > 0, nil
}

// List returns runs, newest first, optionally restricted to the given
// statuses.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM filter_runs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]byte, 0, len(statuses)*2)
		for i, status := range statuses {
			if i > 0 {
				placeholders = append(placeholders, ',', ' ')
			}
			placeholders = append(placeholders, '?')
			args = append(args, status)
		}
		query += " WHERE status IN (" + string(placeholders) + ")"
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Clear deletes runs in the given statuses and returns how many were removed.
// With no statuses it clears everything.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := "DELETE FROM filter_runs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]byte, 0, len(statuses)*2)
		for i, status := range statuses {
			if i > 0 {
				placeholders = append(placeholders, ',', ' ')
			}
			placeholders = append(placeholders, '?')
			args = append(args, status)
		}
		query += " WHERE status IN (" + string(placeholders) + ")"
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// ResetRunning returns interrupted running runs to pending. Called on batch
// startup so runs orphaned by a killed process are picked up again.
func (s *Store) ResetRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE filter_runs SET status = ?, updated_at = ? WHERE status = ?",
		StatusPending, timestamp(), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reset running runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) update(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update run %d: not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status, createdAt, updatedAt string
	err := row.Scan(
		&run.ID, &run.RunKey, &run.SourcePath, &run.SourceName,
		&run.FilterName, &run.Bundle, &run.DerivativePath,
		&status, &run.ErrorMessage, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Status = Status(status)
	if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		run.CreatedAt = ts
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		run.UpdatedAt = ts
	}
	return &run, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
