package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8nkit/n8nctl/engine/catalog"
	"github.com/n8nkit/n8nctl/engine/catalog/catalogtest"
)

func TestOpenStore(t *testing.T) {
	t.Run("Should fail on a missing snapshot file", func(t *testing.T) {
		_, err := catalog.OpenStore("/nonexistent/nodes.db")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node database not found")
	})
	t.Run("Should open a valid snapshot", func(t *testing.T) {
		path := catalogtest.Write(t, catalogtest.DefaultRows())
		store, err := catalog.OpenStore(path)
		require.NoError(t, err)
		require.NoError(t, store.Close())
	})
}

func TestCatalogGet(t *testing.T) {
	ctx := context.Background()
	cat := catalogtest.OpenDefault(t)

	t.Run("Should resolve a short-form node type", func(t *testing.T) {
		def, err := cat.Get(ctx, "nodes-base.httpRequest")
		require.NoError(t, err)
		require.NotNil(t, def)
		assert.Equal(t, "HTTP Request", def.DisplayName)
		assert.Equal(t, "4.2", def.Version)
	})
	t.Run("Should normalize legacy prefixes before lookup", func(t *testing.T) {
		def, err := cat.Get(ctx, "n8n-nodes-base.webhook")
		require.NoError(t, err)
		require.NotNil(t, def)
		assert.Equal(t, "nodes-base.webhook", def.NodeType)
		assert.True(t, def.IsTrigger)
		assert.True(t, def.IsWebhook)
	})
	t.Run("Should normalize the scoped langchain prefix", func(t *testing.T) {
		def, err := cat.Get(ctx, "@n8n/n8n-nodes-langchain.agent")
		require.NoError(t, err)
		require.NotNil(t, def)
		assert.Equal(t, "nodes-langchain.agent", def.NodeType)
	})
	t.Run("Should report a miss as nil without error", func(t *testing.T) {
		def, err := cat.Get(ctx, "nodes-base.doesNotExist")
		require.NoError(t, err)
		assert.Nil(t, def)
	})
	t.Run("Should decode property schemas", func(t *testing.T) {
		def, err := cat.Get(ctx, "nodes-base.httpRequest")
		require.NoError(t, err)
		require.NotNil(t, def)
		prop, ok := def.Property("url")
		require.True(t, ok)
		assert.True(t, prop.Required)
		method, ok := def.Property("method")
		require.True(t, ok)
		assert.Len(t, method.Options, 4)
	})
	t.Run("Should decode operations and credentials", func(t *testing.T) {
		def, err := cat.Get(ctx, "nodes-base.slack")
		require.NoError(t, err)
		require.NotNil(t, def)
		require.Len(t, def.Operations, 2)
		assert.Equal(t, "post", def.Operations[0].Operation)
		require.Len(t, def.Credentials, 1)
		assert.True(t, def.Credentials[0].Required)
	})
}

func TestNodeDefinitionLatestVersion(t *testing.T) {
	t.Run("Should parse major-only versions", func(t *testing.T) {
		def := &catalog.NodeDefinition{NodeType: "nodes-base.code", Version: "2"}
		v, err := def.LatestVersion()
		require.NoError(t, err)
		assert.Equal(t, 2, v.Major)
		assert.Equal(t, 0, v.Minor)
	})
	t.Run("Should parse major.minor versions", func(t *testing.T) {
		def := &catalog.NodeDefinition{NodeType: "nodes-base.httpRequest", Version: "4.2"}
		v, err := def.LatestVersion()
		require.NoError(t, err)
		assert.Equal(t, 4, v.Major)
		assert.Equal(t, 2, v.Minor)
	})
	t.Run("Should default an empty version to 1", func(t *testing.T) {
		def := &catalog.NodeDefinition{NodeType: "nodes-base.noop"}
		v, err := def.LatestVersion()
		require.NoError(t, err)
		assert.Equal(t, 1, v.Major)
	})
}

func TestCatalogSearch(t *testing.T) {
	ctx := context.Background()
	cat := catalogtest.OpenDefault(t)

	t.Run("Should rank an exact type match first", func(t *testing.T) {
		results, err := cat.Search(ctx, "nodes-base.slack", catalog.SearchOR, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "nodes-base.slack", results[0].NodeType)
	})
	t.Run("Should match tokens across fields in OR mode", func(t *testing.T) {
		results, err := cat.Search(ctx, "http webhook", catalog.SearchOR, 10)
		require.NoError(t, err)
		types := resultTypes(results)
		assert.Contains(t, types, "nodes-base.httpRequest")
		assert.Contains(t, types, "nodes-base.webhook")
	})
	t.Run("Should require every token in AND mode", func(t *testing.T) {
		results, err := cat.Search(ctx, "http request", catalog.SearchAND, 10)
		require.NoError(t, err)
		types := resultTypes(results)
		assert.Contains(t, types, "nodes-base.httpRequest")
		assert.NotContains(t, types, "nodes-base.webhook")
	})
	t.Run("Should find close misspellings in fuzzy mode", func(t *testing.T) {
		results, err := cat.Search(ctx, "webhok", catalog.SearchFuzzy, 5)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "nodes-base.webhook", results[0].NodeType)
	})
	t.Run("Should honor the result limit", func(t *testing.T) {
		results, err := cat.Search(ctx, "nodes", catalog.SearchOR, 3)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(results), 3)
	})
	t.Run("Should return nothing for a blank query", func(t *testing.T) {
		results, err := cat.Search(ctx, "   ", catalog.SearchOR, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func resultTypes(results []catalog.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.NodeType)
	}
	return out
}

func TestCatalogListings(t *testing.T) {
	ctx := context.Background()
	cat := catalogtest.OpenDefault(t)

	t.Run("Should count nodes per category", func(t *testing.T) {
		stats, err := cat.GetCategoryStats(ctx)
		require.NoError(t, err)
		counts := map[string]int{}
		for _, s := range stats {
			counts[s.Category] = s.Count
		}
		assert.Equal(t, 2, counts["trigger"])
		assert.Equal(t, 3, counts["ai"])
	})
	t.Run("Should list trigger nodes", func(t *testing.T) {
		defs, err := cat.GetTriggerNodes(ctx)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		for _, def := range defs {
			assert.True(t, def.IsTrigger)
		}
	})
	t.Run("Should list AI tools", func(t *testing.T) {
		defs, err := cat.GetAITools(ctx)
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "nodes-langchain.toolHttpRequest", defs[0].NodeType)
	})
	t.Run("Should expose candidates for similarity ranking", func(t *testing.T) {
		cands, err := cat.Candidates(ctx)
		require.NoError(t, err)
		assert.Len(t, cands, len(catalogtest.DefaultRows()))
	})
}

func TestSearchProperties(t *testing.T) {
	ctx := context.Background()
	cat := catalogtest.OpenDefault(t)

	t.Run("Should filter properties by substring", func(t *testing.T) {
		props, err := cat.SearchProperties(ctx, "nodes-base.httpRequest", "auth", 10)
		require.NoError(t, err)
		require.Len(t, props, 1)
		assert.Equal(t, "authentication", props[0].Name)
	})
	t.Run("Should fail for an unknown node type", func(t *testing.T) {
		_, err := cat.SearchProperties(ctx, "nodes-base.missing", "url", 10)
		require.Error(t, err)
	})
}
