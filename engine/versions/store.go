// Package versions keeps a durable local history of workflow snapshots with
// list, compare, prune, stats, and restore operations.
package versions

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/pressly/goose/v3"
	"github.com/segmentio/ksuid"
	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var gooseInitMu sync.Mutex

// ErrVersionNotFound is returned when a version id or number does not exist.
var ErrVersionNotFound = errors.New("versions: version not found")

// Trigger records which mutating path produced a backup.
type Trigger string

const (
	TriggerFullUpdate    Trigger = "full_update"
	TriggerPartialUpdate Trigger = "partial_update"
	TriggerAutofix       Trigger = "autofix"
	TriggerManual        Trigger = "manual"
)

// Record is one stored workflow snapshot.
type Record struct {
	ID            string             `json:"id"`
	WorkflowID    string             `json:"workflowId"`
	VersionNumber int                `json:"versionNumber"`
	Trigger       Trigger            `json:"trigger"`
	CreatedAt     time.Time          `json:"createdAt"`
	WorkflowName  string             `json:"workflowName"`
	Snapshot      *workflow.Workflow `json:"snapshot,omitempty"`
	FixTypes      []string           `json:"fixTypes,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// Store is the sqlite-backed version history. Writers serialize per
// workflowId through an advisory file lock so concurrent bulk commands
// cannot interleave version numbers.
type Store struct {
	db      *sql.DB
	lockDir string
}

// Open creates the store directory if needed, applies embedded migrations,
// and opens the database.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("versions: create store dir: %w", err)
	}
	lockDir := filepath.Join(dir, "locks")
	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return nil, fmt.Errorf("versions: create lock dir: %w", err)
	}
	dbPath := filepath.Join(dir, "versions.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("versions: open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, lockDir: lockDir}, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	gooseInitMu.Lock()
	defer func() {
		goose.SetBaseFS(nil)
		gooseInitMu.Unlock()
	}()
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("versions: set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("versions: apply migrations: %w", err)
	}
	return nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("versions: close store: %w", err)
	}
	s.db = nil
	return nil
}

// CreateBackup stores a snapshot under the next version number for the
// workflow. The snapshot is deep-copied before serialization so later caller
// mutations cannot leak into the stored record.
func (s *Store) CreateBackup(ctx context.Context, workflowID string, snapshot *workflow.Workflow, trigger Trigger, opts ...BackupOption) (*Record, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("versions: create backup: empty workflow id")
	}
	rec := &Record{
		ID:         ksuid.New().String(),
		WorkflowID: workflowID,
		Trigger:    trigger,
		CreatedAt:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(rec)
	}
	copied, err := snapshot.Clone()
	if err != nil {
		return nil, fmt.Errorf("versions: create backup: %w", err)
	}
	rec.Snapshot = copied
	rec.WorkflowName = copied.Name

	lock := flock.New(filepath.Join(s.lockDir, workflowID+".lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("versions: lock workflow %s: %w", workflowID, err)
	}
	defer lock.Unlock()

	encoded, err := json.Marshal(copied)
	if err != nil {
		return nil, fmt.Errorf("versions: encode snapshot: %w", err)
	}
	fixTypes, metadata, err := encodeExtras(rec)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("versions: begin tx: %w", err)
	}
	defer tx.Rollback()

	const next = `SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE workflow_id = ?`
	if err := tx.QueryRowContext(ctx, next, workflowID).Scan(&rec.VersionNumber); err != nil {
		return nil, fmt.Errorf("versions: next version number: %w", err)
	}
	const q = `INSERT INTO versions
		(id, workflow_id, version_number, trigger_type, created_at, workflow_name, snapshot, fix_types, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		rec.ID, rec.WorkflowID, rec.VersionNumber, string(rec.Trigger), rec.CreatedAt,
		rec.WorkflowName, string(encoded), fixTypes, metadata); err != nil {
		return nil, fmt.Errorf("versions: insert version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("versions: commit version: %w", err)
	}
	return rec, nil
}

// BackupOption attaches optional fields to a new record.
type BackupOption func(*Record)

// WithFixTypes records which fix kinds produced the snapshot.
func WithFixTypes(fixTypes []string) BackupOption {
	return func(r *Record) {
		r.FixTypes = fixTypes
	}
}

// WithMetadata attaches free-form metadata to the record.
func WithMetadata(metadata map[string]any) BackupOption {
	return func(r *Record) {
		r.Metadata = metadata
	}
}

func encodeExtras(rec *Record) (sql.NullString, sql.NullString, error) {
	var fixTypes, metadata sql.NullString
	if len(rec.FixTypes) > 0 {
		encoded, err := json.Marshal(rec.FixTypes)
		if err != nil {
			return fixTypes, metadata, fmt.Errorf("versions: encode fix types: %w", err)
		}
		fixTypes = sql.NullString{String: string(encoded), Valid: true}
	}
	if len(rec.Metadata) > 0 {
		encoded, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fixTypes, metadata, fmt.Errorf("versions: encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(encoded), Valid: true}
	}
	return fixTypes, metadata, nil
}

const recordColumns = `id, workflow_id, version_number, trigger_type, created_at, workflow_name, snapshot, fix_types, metadata`

// ListVersions returns the workflow's history, newest first. limit <= 0
// returns everything.
func (s *Store) ListVersions(ctx context.Context, workflowID string, limit int) ([]*Record, error) {
	q := `SELECT ` + recordColumns + ` FROM versions WHERE workflow_id = ? ORDER BY version_number DESC`
	args := []any{workflowID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("versions: list versions: %w", err)
	}
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("versions: iter versions: %w", err)
	}
	return out, nil
}

// Get returns one record by its id.
func (s *Store) Get(ctx context.Context, versionID string) (*Record, error) {
	const q = `SELECT ` + recordColumns + ` FROM versions WHERE id = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, versionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	return rec, err
}

// GetByNumber returns the record for (workflowId, versionNumber). A zero
// versionNumber resolves to the latest version.
func (s *Store) GetByNumber(ctx context.Context, workflowID string, versionNumber int) (*Record, error) {
	if versionNumber <= 0 {
		const q = `SELECT ` + recordColumns + ` FROM versions
			WHERE workflow_id = ? ORDER BY version_number DESC LIMIT 1`
		rec, err := scanRecord(s.db.QueryRowContext(ctx, q, workflowID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVersionNotFound
		}
		return rec, err
	}
	const q = `SELECT ` + recordColumns + ` FROM versions WHERE workflow_id = ? AND version_number = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, workflowID, versionNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	return rec, err
}

// DeleteVersion removes one record by id.
func (s *Store) DeleteVersion(ctx context.Context, versionID string) error {
	const q = `DELETE FROM versions WHERE id = ?`
	tag, err := s.db.ExecContext(ctx, q, versionID)
	if err != nil {
		return fmt.Errorf("versions: delete version: %w", err)
	}
	if n, raErr := tag.RowsAffected(); raErr == nil {
		if n == 0 {
			return ErrVersionNotFound
		}
	} else {
		return fmt.Errorf("versions: rows affected (delete version): %w", raErr)
	}
	return nil
}

// DeleteAllVersions wipes a workflow's history and returns how many records
// were removed.
func (s *Store) DeleteAllVersions(ctx context.Context, workflowID string) (int, error) {
	const q = `DELETE FROM versions WHERE workflow_id = ?`
	tag, err := s.db.ExecContext(ctx, q, workflowID)
	if err != nil {
		return 0, fmt.Errorf("versions: delete all versions: %w", err)
	}
	n, err := tag.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("versions: rows affected (delete all): %w", err)
	}
	return int(n), nil
}

// Prune keeps the newest `keep` versions of a workflow and deletes the rest.
func (s *Store) Prune(ctx context.Context, workflowID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	const q = `DELETE FROM versions WHERE workflow_id = ? AND version_number NOT IN (
		SELECT version_number FROM versions WHERE workflow_id = ? ORDER BY version_number DESC LIMIT ?)`
	tag, err := s.db.ExecContext(ctx, q, workflowID, workflowID, keep)
	if err != nil {
		return 0, fmt.Errorf("versions: prune versions: %w", err)
	}
	n, err := tag.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("versions: rows affected (prune): %w", err)
	}
	return int(n), nil
}

// WorkflowStats summarizes one workflow's history.
type WorkflowStats struct {
	WorkflowID   string    `json:"workflowId"`
	WorkflowName string    `json:"workflowName"`
	Versions     int       `json:"versions"`
	Size         int64     `json:"size"`
	LatestAt     time.Time `json:"latestAt"`
}

// Stats summarizes the whole store.
type Stats struct {
	TotalVersions int             `json:"totalVersions"`
	TotalSize     int64           `json:"totalSize"`
	PerWorkflow   []WorkflowStats `json:"perWorkflow"`
}

// Stats aggregates version counts and snapshot sizes per workflow.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	const q = `SELECT workflow_id, MAX(workflow_name), COUNT(*), SUM(LENGTH(snapshot)), MAX(created_at)
		FROM versions GROUP BY workflow_id ORDER BY workflow_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("versions: stats: %w", err)
	}
	defer rows.Close()
	stats := &Stats{}
	for rows.Next() {
		var ws WorkflowStats
		if err := rows.Scan(&ws.WorkflowID, &ws.WorkflowName, &ws.Versions, &ws.Size, &ws.LatestAt); err != nil {
			return nil, fmt.Errorf("versions: scan stats: %w", err)
		}
		stats.TotalVersions += ws.Versions
		stats.TotalSize += ws.Size
		stats.PerWorkflow = append(stats.PerWorkflow, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("versions: iter stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var trigger, snapshot string
	var fixTypes, metadata sql.NullString
	if err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.VersionNumber, &trigger, &rec.CreatedAt,
		&rec.WorkflowName, &snapshot, &fixTypes, &metadata); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("versions: scan version: %w", err)
	}
	rec.Trigger = Trigger(trigger)
	var w workflow.Workflow
	if err := json.Unmarshal([]byte(snapshot), &w); err != nil {
		return nil, fmt.Errorf("versions: decode snapshot %s: %w", rec.ID, err)
	}
	rec.Snapshot = &w
	if fixTypes.Valid {
		if err := json.Unmarshal([]byte(fixTypes.String), &rec.FixTypes); err != nil {
			return nil, fmt.Errorf("versions: decode fix types %s: %w", rec.ID, err)
		}
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("versions: decode metadata %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
