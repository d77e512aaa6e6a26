// Package catalog keeps a SQLite record of the result files bulk downloads
// stored, one row per file per run.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// File statuses.
const (
	StatusDownloaded = "downloaded"
	StatusExists     = "exists"
)

// Entry is one stored file.
type Entry struct {
	RunID           string
	Project         string
	AnalysisID      string
	Alias           string
	ResultGroup     string
	PipelineVersion string
	Path            string
	Size            int64
	MD5             string
	URL             string
	Status          string
	RecordedAt      time.Time
}

// Catalog wraps the SQL database connection. Every Record call made
// through one Catalog shares the run id assigned at Open.
type Catalog struct {
	*sql.DB
	path  string
	runID string
}

// Open creates or opens the catalog at path.
func Open(path string) (*Catalog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Catalog{DB: db, path: path, runID: uuid.NewString()}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS stored_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		project TEXT NOT NULL,
		analysis_id TEXT,
		alias TEXT,
		result_group TEXT,
		pipeline_version TEXT,
		path TEXT NOT NULL,
		size INTEGER,
		md5 TEXT,
		url TEXT,
		status TEXT,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_stored_files_project ON stored_files(project);
	CREATE INDEX IF NOT EXISTS idx_stored_files_run ON stored_files(run_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.path }

// RunID returns the id stamped on entries recorded through c.
func (c *Catalog) RunID() string { return c.runID }

// Record stores one entry. RunID and RecordedAt are filled in when unset.
func (c *Catalog) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		e.RunID = c.runID
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stored_files
			(run_id, project, analysis_id, alias, result_group, pipeline_version,
			 path, size, md5, url, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.ExecContext(ctx, query,
		e.RunID, e.Project, e.AnalysisID, e.Alias, e.ResultGroup, e.PipelineVersion,
		e.Path, e.Size, e.MD5, e.URL, e.Status, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", e.Path, err)
	}
	return nil
}

// List returns recorded entries in insertion order, optionally restricted
// to one project.
func (c *Catalog) List(ctx context.Context, project string) ([]Entry, error) {
	query := `
		SELECT run_id, project, analysis_id, alias, result_group, pipeline_version,
		       path, size, md5, url, status, recorded_at
		FROM stored_files`
	var args []any
	if project != "" {
		query += " WHERE project = ?"
		args = append(args, project)
	}
	query += " ORDER BY id"

	rows, err := c.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e   Entry
			md5 sql.NullString
			url sql.NullString
		)
		if err := rows.Scan(&e.RunID, &e.Project, &e.AnalysisID, &e.Alias, &e.ResultGroup,
			&e.PipelineVersion, &e.Path, &e.Size, &md5, &url, &e.Status, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		e.MD5, e.URL = md5.String, url.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
