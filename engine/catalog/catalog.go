// Package catalog exposes an immutable view of the embedded node-definition
// snapshot: lookup by type, fulltext and fuzzy search, properties,
// operations, credentials and version metadata.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/n8nkit/n8nctl/engine/similarity"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

const definitionCacheSize = 256

// Catalog is the read-only node-definition service.
type Catalog struct {
	store *Store
	cache *lru.Cache[string, *NodeDefinition]
}

// New wraps an opened store.
func New(store *Store) (*Catalog, error) {
	cache, err := lru.New[string, *NodeDefinition](definitionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: init cache: %w", err)
	}
	return &Catalog{store: store, cache: cache}, nil
}

// Open opens the snapshot at path and wraps it.
func Open(path string) (*Catalog, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return New(store)
}

// Close releases the underlying store.
func (c *Catalog) Close() error { return c.store.Close() }

// Get resolves a node definition. The input is normalized to short form
// first; if that misses, the original input is tried once before reporting a
// miss (nil, nil).
func (c *Catalog) Get(ctx context.Context, nodeType string) (*NodeDefinition, error) {
	normalized := workflow.NormalizeNodeType(nodeType)
	if def, ok := c.cache.Get(normalized); ok {
		return def, nil
	}
	def, err := c.getExact(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if def == nil && nodeType != normalized {
		if def, err = c.getExact(ctx, nodeType); err != nil {
			return nil, err
		}
	}
	if def != nil {
		c.cache.Add(normalized, def)
	}
	return def, nil
}

func (c *Catalog) getExact(ctx context.Context, nodeType string) (*NodeDefinition, error) {
	q := `SELECT ` + nodeColumns + ` FROM nodes WHERE node_type = ? COLLATE NOCASE`
	def, err := scanNode(c.store.db.QueryRowContext(ctx, q, nodeType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: get %s: %w", nodeType, err)
	}
	return def, nil
}

// CategoryStat is the per-category node count.
type CategoryStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// GetCategoryStats returns node counts grouped by category.
func (c *Catalog) GetCategoryStats(ctx context.Context) ([]CategoryStat, error) {
	const q = `SELECT COALESCE(category, ''), COUNT(*) FROM nodes GROUP BY category ORDER BY COUNT(*) DESC, category`
	rows, err := c.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: category stats: %w", err)
	}
	defer rows.Close()
	var out []CategoryStat
	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.Category, &s.Count); err != nil {
			return nil, fmt.Errorf("catalog: scan category stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetTriggerNodes lists every trigger node definition.
func (c *Catalog) GetTriggerNodes(ctx context.Context) ([]*NodeDefinition, error) {
	return c.listWhere(ctx, "is_trigger = 1")
}

// GetAITools lists every node usable as an AI tool.
func (c *Catalog) GetAITools(ctx context.Context) ([]*NodeDefinition, error) {
	return c.listWhere(ctx, "is_ai_tool = 1")
}

// GetByCategory lists nodes in a category.
func (c *Catalog) GetByCategory(ctx context.Context, category string) ([]*NodeDefinition, error) {
	q := `SELECT ` + nodeColumns + ` FROM nodes WHERE category = ? ORDER BY node_type`
	rows, err := c.store.db.QueryContext(ctx, q, category)
	if err != nil {
		return nil, fmt.Errorf("catalog: list category %s: %w", category, err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (c *Catalog) listWhere(ctx context.Context, where string) ([]*NodeDefinition, error) {
	q := `SELECT ` + nodeColumns + ` FROM nodes WHERE ` + where + ` ORDER BY node_type`
	rows, err := c.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list nodes: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

func collectNodes(rows *sql.Rows) ([]*NodeDefinition, error) {
	var out []*NodeDefinition
	for rows.Next() {
		def, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan node: %w", err)
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// Candidates returns the (nodeType, displayName) pairs of every known node,
// feeding the similarity engine.
func (c *Catalog) Candidates(ctx context.Context) ([]similarity.Candidate, error) {
	const q = `SELECT node_type, display_name FROM nodes ORDER BY node_type`
	rows, err := c.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: list candidates: %w", err)
	}
	defer rows.Close()
	var out []similarity.Candidate
	for rows.Next() {
		var cand similarity.Candidate
		if err := rows.Scan(&cand.NodeType, &cand.DisplayName); err != nil {
			return nil, fmt.Errorf("catalog: scan candidate: %w", err)
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

// SearchProperties filters a node's property schemas by a case-insensitive
// substring over name, display name and description.
func (c *Catalog) SearchProperties(ctx context.Context, nodeType, query string, maxResults int) ([]PropertySchema, error) {
	def, err := c.Get(ctx, nodeType)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("catalog: unknown node type %s", nodeType)
	}
	if maxResults <= 0 {
		maxResults = 20
	}
	needle := strings.ToLower(query)
	var out []PropertySchema
	for _, p := range def.Properties {
		if len(out) >= maxResults {
			break
		}
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.DisplayName), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
