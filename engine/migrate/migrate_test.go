package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8nkit/n8nctl/engine/changes"
	"github.com/n8nkit/n8nctl/engine/core"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

func TestMigrateNode(t *testing.T) {
	t.Run("Should rename properties and advance typeVersion", func(t *testing.T) {
		n := &workflow.Node{
			Name:        "Transform",
			Type:        "nodes-base.set",
			TypeVersion: 2,
			Parameters:  map[string]any{"values": []any{"a"}},
		}
		result := MigrateNode(n, core.Version{Major: 3})
		assert.Equal(t, "2", result.FromVersion)
		assert.Equal(t, "3", result.ToVersion)
		require.Len(t, result.AppliedMigrations, 1)
		assert.Equal(t, changes.ChangeRenamed, result.AppliedMigrations[0].ChangeType)
		assert.NotContains(t, n.Parameters, "values")
		assert.Equal(t, []any{"a"}, n.Parameters["assignments"])
		assert.Equal(t, 3.0, n.TypeVersion)
	})
	t.Run("Should add new properties with their defaults", func(t *testing.T) {
		n := &workflow.Node{
			Name:        "Run Code",
			Type:        "nodes-base.code",
			TypeVersion: 1,
			Parameters:  map[string]any{"jsCode": "return items;"},
		}
		result := MigrateNode(n, core.Version{Major: 2})
		require.Len(t, result.AppliedMigrations, 1)
		assert.Equal(t, "runOnceForAllItems", n.Parameters["mode"])
		assert.Empty(t, result.RemainingIssues)
	})
	t.Run("Should not overwrite a property the user already set", func(t *testing.T) {
		n := &workflow.Node{
			Name:        "Run Code",
			Type:        "nodes-base.code",
			TypeVersion: 1,
			Parameters:  map[string]any{"mode": "runOnceForEachItem"},
		}
		result := MigrateNode(n, core.Version{Major: 2})
		assert.Empty(t, result.AppliedMigrations)
		assert.Equal(t, "runOnceForEachItem", n.Parameters["mode"])
	})
	t.Run("Should leave manual removals untouched and surface them", func(t *testing.T) {
		n := &workflow.Node{
			Name:        "Agent",
			Type:        "nodes-langchain.agent",
			TypeVersion: 1.7,
			Parameters:  map[string]any{"agent": "conversationalAgent"},
		}
		result := MigrateNode(n, core.Version{Major: 2})
		assert.Contains(t, n.Parameters, "agent")
		assert.Empty(t, result.AppliedMigrations)
		require.Len(t, result.RemainingIssues, 1)
		assert.Equal(t, "agent", result.RemainingIssues[0].PropertyName)
	})
	t.Run("Should report non-migratable changes as remaining issues", func(t *testing.T) {
		n := &workflow.Node{
			Name:        "Fetch",
			Type:        "nodes-base.httpRequest",
			TypeVersion: 1,
			Parameters:  map[string]any{"requestMethod": "POST"},
		}
		result := MigrateNode(n, core.Version{Major: 4, Minor: 2})
		applied := map[string]bool{}
		for _, m := range result.AppliedMigrations {
			applied[m.PropertyName] = true
		}
		assert.True(t, applied["requestMethod"])
		require.Len(t, result.RemainingIssues, 1)
		assert.Equal(t, "responseFormat", result.RemainingIssues[0].PropertyName)
		assert.False(t, result.RemainingIssues[0].AutoMigratable)
		assert.Equal(t, "POST", n.Parameters["method"])
		assert.Equal(t, 4.2, n.TypeVersion)
	})
	t.Run("Should advance typeVersion even when nothing applies", func(t *testing.T) {
		n := &workflow.Node{Name: "Hook", Type: "nodes-base.webhook", TypeVersion: 1.1}
		result := MigrateNode(n, core.Version{Major: 2})
		assert.Empty(t, result.AppliedMigrations)
		require.Len(t, result.RemainingIssues, 1)
		assert.Equal(t, 2.0, n.TypeVersion)
	})
}
