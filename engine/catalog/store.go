package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"sync"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// Store is the read-only relational snapshot backing the catalog. A single
// handle is shared by all readers; statements are prepared per call.
type Store struct {
	db *sql.DB

	ftsOnce    sync.Once
	ftsEnabled bool
}

// OpenStore opens the catalog snapshot read-only. A missing file fails here
// with a single clear error; the store is never partially initialized.
func OpenStore(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog: node database not found at %s: %w", path, err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", url.PathEscape(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open node database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: open node database: %w", err)
	}
	// Read-only snapshot: one connection is plenty and keeps sqlite happy
	// under concurrent readers.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HasFTS feature-detects full-text support lazily on first use.
func (s *Store) HasFTS(ctx context.Context) bool {
	s.ftsOnce.Do(func() {
		const q = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'nodes_fts'`
		var name string
		if err := s.db.QueryRowContext(ctx, q).Scan(&name); err == nil {
			s.ftsEnabled = true
		}
	})
	return s.ftsEnabled
}

const nodeColumns = `node_type, display_name, description, category, package_name,
	is_trigger, is_webhook, is_ai_tool, is_versioned, version,
	properties_schema, operations, credentials_required`

func scanNode(row interface{ Scan(...any) error }) (*NodeDefinition, error) {
	var def NodeDefinition
	var props, ops, creds sql.NullString
	var desc, category, pkg, version sql.NullString
	err := row.Scan(
		&def.NodeType, &def.DisplayName, &desc, &category, &pkg,
		&def.IsTrigger, &def.IsWebhook, &def.IsAITool, &def.IsVersioned, &version,
		&props, &ops, &creds,
	)
	if err != nil {
		return nil, err
	}
	def.Description = desc.String
	def.Category = category.String
	def.Package = pkg.String
	def.Version = version.String
	if def.Properties, err = decodeProperties(props.String); err != nil {
		return nil, err
	}
	if def.Operations, err = decodeOperations(ops.String); err != nil {
		return nil, err
	}
	if def.Credentials, err = decodeCredentials(creds.String); err != nil {
		return nil, err
	}
	return &def, nil
}
