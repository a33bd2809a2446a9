package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/n8nkit/n8nctl/engine/similarity"
	"github.com/n8nkit/n8nctl/pkg/logger"
)

// SearchMode selects how the query tokens are combined.
type SearchMode string

const (
	SearchOR    SearchMode = "OR"
	SearchAND   SearchMode = "AND"
	SearchFuzzy SearchMode = "FUZZY"
)

// SearchResult is one ranked catalog hit.
type SearchResult struct {
	NodeType    string  `json:"nodeType"`
	DisplayName string  `json:"displayName"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Relevance   float64 `json:"relevance"`
}

// Relevance boosts applied on top of any FTS rank. Published BM25 scores are
// approximate; only the resulting ordering is contractual.
const (
	boostExactType      = 150
	boostTypeSubstring  = 100
	boostExactDisplay   = 100
	boostDisplaySub     = 75
	boostDescriptionSub = 25
)

// Search runs a catalog query. OR/AND tokenize on whitespace and match
// nodeType, displayName and description by substring; FUZZY ranks by edit
// distance. When the store has full-text support it is preferred; any FTS
// syntax error falls back to LIKE scanning for that query only.
func (c *Catalog) Search(ctx context.Context, query string, mode SearchMode, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if mode == SearchFuzzy {
		return c.searchFuzzy(ctx, query, limit)
	}
	if c.store.HasFTS(ctx) {
		results, err := c.searchFTS(ctx, query, mode, limit)
		if err == nil {
			return results, nil
		}
		logger.FromContext(ctx).Debug("fts query failed, falling back to LIKE", "query", query, "err", err)
	}
	return c.searchLike(ctx, query, mode, limit)
}

func (c *Catalog) searchFTS(ctx context.Context, query string, mode SearchMode, limit int) ([]SearchResult, error) {
	match := buildFTSQuery(query, mode)
	const q = `
		SELECT n.node_type, n.display_name, COALESCE(n.description, ''), COALESCE(n.category, ''),
		       bm25(nodes_fts) AS rank
		FROM nodes_fts
		JOIN nodes n ON n.rowid = nodes_fts.rowid
		WHERE nodes_fts MATCH ?
		ORDER BY rank
		LIMIT ?`
	rows, err := c.store.db.QueryContext(ctx, q, match, limit*4)
	if err != nil {
		return nil, fmt.Errorf("catalog: fts search: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.NodeType, &r.DisplayName, &r.Description, &r.Category, &rank); err != nil {
			return nil, fmt.Errorf("catalog: scan fts result: %w", err)
		}
		// bm25 returns lower-is-better; negate so higher is better before
		// layering the boosts.
		r.Relevance = -rank + relevanceBoost(query, &r)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: fts search: %w", err)
	}
	sortResults(out)
	return truncate(out, limit), nil
}

// ftsSpecials are characters with meaning in the FTS query grammar; user
// input containing them is quoted per token.
const ftsSpecials = "\"'(){}[]*+-:^~"

func buildFTSQuery(query string, mode SearchMode) string {
	tokens := strings.Fields(query)
	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.ContainsAny(tok, ftsSpecials) {
			tok = strings.ReplaceAll(tok, `"`, `""`)
		}
		quoted = append(quoted, `"`+tok+`"`)
	}
	sep := " OR "
	if mode == SearchAND {
		sep = " AND "
	}
	return strings.Join(quoted, sep)
}

func (c *Catalog) searchLike(ctx context.Context, query string, mode SearchMode, limit int) ([]SearchResult, error) {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}
	var conds []string
	var args []any
	for _, tok := range tokens {
		conds = append(conds,
			`(lower(node_type) LIKE ? OR lower(display_name) LIKE ? OR lower(COALESCE(description, '')) LIKE ?)`)
		pat := "%" + tok + "%"
		args = append(args, pat, pat, pat)
	}
	sep := " OR "
	if mode == SearchAND {
		sep = " AND "
	}
	q := `SELECT node_type, display_name, COALESCE(description, ''), COALESCE(category, '')
		FROM nodes WHERE ` + strings.Join(conds, sep)
	rows, err := c.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: like search: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.NodeType, &r.DisplayName, &r.Description, &r.Category); err != nil {
			return nil, fmt.Errorf("catalog: scan search result: %w", err)
		}
		r.Relevance = relevanceBoost(query, &r)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: like search: %w", err)
	}
	sortResults(out)
	return truncate(out, limit), nil
}

func (c *Catalog) searchFuzzy(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	const q = `SELECT node_type, display_name, COALESCE(description, ''), COALESCE(category, '') FROM nodes`
	rows, err := c.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("catalog: fuzzy search: %w", err)
	}
	defer rows.Close()
	lower := strings.ToLower(query)
	threshold := len(lower) * 2 / 5
	if threshold < 2 {
		threshold = 2
	}
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.NodeType, &r.DisplayName, &r.Description, &r.Category); err != nil {
			return nil, fmt.Errorf("catalog: scan fuzzy result: %w", err)
		}
		min := fuzzyDistance(lower, &r)
		contained := strings.Contains(strings.ToLower(r.NodeType), lower) ||
			strings.Contains(strings.ToLower(r.DisplayName), lower)
		if min > threshold && !contained {
			continue
		}
		r.Relevance = float64(threshold-min) + relevanceBoost(query, &r)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: fuzzy search: %w", err)
	}
	sortResults(out)
	return truncate(out, limit), nil
}

// fuzzyDistance is the minimum edit distance over node type, display name
// and each word of the display name.
func fuzzyDistance(lowerQuery string, r *SearchResult) int {
	min := similarity.Distance(lowerQuery, strings.ToLower(r.NodeType))
	if d := similarity.Distance(lowerQuery, strings.ToLower(r.DisplayName)); d < min {
		min = d
	}
	for _, word := range strings.Fields(strings.ToLower(r.DisplayName)) {
		if d := similarity.Distance(lowerQuery, word); d < min {
			min = d
		}
	}
	return min
}

func relevanceBoost(query string, r *SearchResult) float64 {
	lower := strings.ToLower(strings.TrimSpace(query))
	nodeType := strings.ToLower(r.NodeType)
	display := strings.ToLower(r.DisplayName)
	desc := strings.ToLower(r.Description)
	var score float64
	switch {
	case nodeType == lower:
		score += boostExactType
	case strings.Contains(nodeType, lower):
		score += boostTypeSubstring
	}
	switch {
	case display == lower:
		score += boostExactDisplay
	case strings.Contains(display, lower):
		score += boostDisplaySub
	}
	if strings.Contains(desc, lower) {
		score += boostDescriptionSub
	}
	return score
}

func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance == results[j].Relevance {
			return results[i].NodeType < results[j].NodeType
		}
		return results[i].Relevance > results[j].Relevance
	})
}

func truncate(results []SearchResult, limit int) []SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
