// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/pagesplit/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		input_digest TEXT,
		page_count INTEGER NOT NULL,
		dropped_pages INTEGER NOT NULL,
		bundle_path TEXT,
		bundle_url TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_input_digest ON runs(input_digest);

	CREATE TABLE IF NOT EXISTS run_outputs (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		identifier TEXT,
		name TEXT,
		start_page INTEGER NOT NULL,
		end_page INTEGER NOT NULL,
		path TEXT NOT NULL,
		url TEXT,
		PRIMARY KEY (run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateRun inserts a run and its outputs in one transaction. CreatedAt is set when zero.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *models.RunResult) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, input_path, input_digest, page_count, dropped_pages, bundle_path, bundle_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputPath, run.InputDigest, run.PageCount, run.DroppedPages, run.BundlePath, run.BundleURL, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_outputs (run_id, seq, identifier, name, start_page, end_page, path, url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, o := range run.Outputs {
		seg := o.Segment
		if _, err := stmt.ExecContext(ctx, run.ID, i, seg.Identifier, seg.Name, seg.StartPage, seg.EndPage, o.Path, o.URL); err != nil {
			return fmt.Errorf("insert output %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run with its outputs in run order.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.RunResult, error) {
	var run models.RunResult
	var digest, bundlePath, bundleURL sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, input_digest, page_count, dropped_pages, bundle_path, bundle_url, created_at
		 FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.InputPath, &digest, &run.PageCount, &run.DroppedPages, &bundlePath, &bundleURL, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	run.InputDigest = digest.String
	run.BundlePath = bundlePath.String
	run.BundleURL = bundleURL.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT identifier, name, start_page, end_page, path, url
		 FROM run_outputs WHERE run_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var o models.OutputFile
		var identifier, name, url sql.NullString
		if err := rows.Scan(&identifier, &name, &o.Segment.StartPage, &o.Segment.EndPage, &o.Path, &url); err != nil {
			return nil, err
		}
		o.Segment.Identifier = identifier.String
		o.Segment.Name = name.String
		o.URL = url.String
		run.Outputs = append(run.Outputs, o)
	}
	return &run, rows.Err()
}

// ListRuns returns runs newest first with pagination. Outputs are not loaded.
func (s *SQLiteStorage) ListRuns(ctx context.Context, offset, limit int) ([]*models.RunResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_path, input_digest, page_count, dropped_pages, bundle_path, bundle_url, created_at
		 FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.RunResult
	for rows.Next() {
		var run models.RunResult
		var digest, bundlePath, bundleURL sql.NullString
		if err := rows.Scan(&run.ID, &run.InputPath, &digest, &run.PageCount, &run.DroppedPages, &bundlePath, &bundleURL, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.InputDigest = digest.String
		run.BundlePath = bundlePath.String
		run.BundleURL = bundleURL.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// HasDigest reports whether any recorded run used an input with the given digest.
func (s *SQLiteStorage) HasDigest(ctx context.Context, digest string) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE input_digest = ?`, digest).Scan(&count)
	return count > 0, err
}

// CountRuns returns the total number of runs.
func (s *SQLiteStorage) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// CountOutputs returns the total number of produced files across runs.
func (s *SQLiteStorage) CountOutputs(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_outputs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
