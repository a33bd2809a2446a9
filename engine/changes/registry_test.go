package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8nkit/n8nctl/engine/core"
)

func TestLatestVersion(t *testing.T) {
	t.Run("Should return the highest tracked version", func(t *testing.T) {
		assert.Equal(t, core.Version{Major: 4, Minor: 2}, LatestVersion("nodes-base.httpRequest"))
	})
	t.Run("Should normalize legacy prefixes", func(t *testing.T) {
		assert.Equal(t, core.Version{Major: 4, Minor: 2}, LatestVersion("n8n-nodes-base.httpRequest"))
	})
	t.Run("Should return zero for an untracked type", func(t *testing.T) {
		assert.True(t, LatestVersion("nodes-base.noOpNode").IsZero())
	})
}

func TestTrackedVersions(t *testing.T) {
	t.Run("Should list distinct versions ascending", func(t *testing.T) {
		got := TrackedVersions("nodes-base.set")
		require.Len(t, got, 3)
		assert.Equal(t, "2", got[0].String())
		assert.Equal(t, "3", got[1].String())
		assert.Equal(t, "3.4", got[2].String())
	})
}

func TestChangesInRange(t *testing.T) {
	t.Run("Should use a half-open interval excluding from", func(t *testing.T) {
		got := ChangesInRange("nodes-base.httpRequest", core.Version{Major: 2}, core.Version{Major: 4})
		require.Len(t, got, 2)
		assert.Equal(t, "queryParametersUi", got[0].PropertyName)
		assert.Equal(t, "responseFormat", got[1].PropertyName)
	})
	t.Run("Should include the upper bound", func(t *testing.T) {
		got := ChangesInRange("nodes-base.httpRequest", core.Version{Major: 4}, core.Version{Major: 4, Minor: 1})
		require.Len(t, got, 1)
		assert.Equal(t, "allowUnauthorizedCerts", got[0].PropertyName)
	})
	t.Run("Should return nothing for an empty range", func(t *testing.T) {
		assert.Empty(t, ChangesInRange("nodes-base.httpRequest", core.Version{Major: 4, Minor: 2}, core.Version{Major: 4, Minor: 2}))
	})
	t.Run("Should preserve registry order", func(t *testing.T) {
		got := ChangesInRange("nodes-base.httpRequest", core.Version{Major: 1}, core.Version{Major: 4, Minor: 2})
		require.Len(t, got, 4)
		assert.Equal(t, "requestMethod", got[0].PropertyName)
		assert.Equal(t, "sendBody", got[3].PropertyName)
	})
}

func TestAnalyzeUpgrade(t *testing.T) {
	t.Run("Should summarize breaking changes and severity", func(t *testing.T) {
		a := AnalyzeUpgrade("nodes-base.httpRequest", core.Version{Major: 1}, core.Version{Major: 4, Minor: 2})
		assert.True(t, a.HasBreaking)
		assert.Equal(t, SeverityHigh, a.OverallSeverity)
		assert.Equal(t, 3, a.AutoMigratableCount)
		assert.Equal(t, 1, a.ManualRequiredCount)
		assert.NotEmpty(t, a.Recommendations)
	})
	t.Run("Should flag a clean range as non-breaking", func(t *testing.T) {
		a := AnalyzeUpgrade("nodes-base.httpRequest", core.Version{Major: 4}, core.Version{Major: 4, Minor: 2})
		assert.False(t, a.HasBreaking)
		assert.Equal(t, SeverityLow, a.OverallSeverity)
	})
	t.Run("Should recommend testing after HIGH severity upgrades", func(t *testing.T) {
		a := AnalyzeUpgrade("nodes-base.webhook", core.Version{Major: 1}, core.Version{Major: 2})
		assert.True(t, a.HasBreaking)
		assert.Contains(t, a.Recommendations[len(a.Recommendations)-1], "HIGH severity")
	})
	t.Run("Should handle untracked ranges", func(t *testing.T) {
		a := AnalyzeUpgrade("nodes-base.noOpNode", core.Version{Major: 1}, core.Version{Major: 2})
		assert.False(t, a.HasBreaking)
		assert.Empty(t, a.Changes)
		require.Len(t, a.Recommendations, 1)
		assert.Contains(t, a.Recommendations[0], "No tracked changes")
	})
}
