package autofix_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8nkit/n8nctl/engine/autofix"
	"github.com/n8nkit/n8nctl/engine/catalog/catalogtest"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

type fixture struct {
	engine    *autofix.Engine
	validator *validate.Validator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalogtest.OpenDefault(t)
	return &fixture{engine: autofix.NewEngine(cat), validator: validate.New(cat)}
}

func (f *fixture) validated(t *testing.T, ctx context.Context, w *workflow.Workflow) (*workflow.Document, *validate.Result) {
	t.Helper()
	if w.Connections == nil {
		w.Connections = map[string]workflow.ConnectionGroup{}
	}
	doc := &workflow.Document{Workflow: w}
	result, err := f.validator.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
	require.NoError(t, err)
	return doc, result
}

func node(name, nodeType string, version float64, params map[string]any) *workflow.Node {
	return &workflow.Node{
		Name:        name,
		Type:        nodeType,
		TypeVersion: version,
		Position:    []float64{0, 0},
		Parameters:  params,
	}
}

func fixesOfType(fixes []autofix.FixOperation, ft autofix.FixType) []autofix.FixOperation {
	var out []autofix.FixOperation
	for _, fix := range fixes {
		if fix.FixType == ft {
			out = append(out, fix)
		}
	}
	return out
}

func TestExpressionFormatFix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should apply the = prefix and count it as high confidence", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Expr", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "{{ $json.url }}"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{Apply: true})
		require.NoError(t, err)
		assert.Equal(t, 1, result.AppliedCount)
		assert.Equal(t, 1, result.Stats.ByConfidence["high"])
		assert.Equal(t, "={{ $json.url }}", result.Workflow.Nodes[0].Parameters["url"])
		// The input document is untouched.
		assert.Equal(t, "{{ $json.url }}", doc.Workflow.Nodes[0].Parameters["url"])
	})
}

func TestPreviewPurity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should yield identical fixes on repeated previews", func(t *testing.T) {
		build := func() (*workflow.Document, *validate.Result) {
			return f.validated(t, ctx, &workflow.Workflow{
				ID:   "wf-pure",
				Name: "Pure",
				Nodes: []*workflow.Node{
					func() *workflow.Node {
						n := node("Hook A", "nodes-base.webhook", 2, map[string]any{"path": "a"})
						n.WebhookID = "dup-id"
						return n
					}(),
					func() *workflow.Node {
						n := node("Hook B", "nodes-base.webhook", 2, map[string]any{"path": "b"})
						n.WebhookID = "dup-id"
						return n
					}(),
					node("Fetch", "nodes-base.httpRequest", 1, map[string]any{"url": "{{ $json.url }}"}),
				},
			})
		}
		doc, issues := build()
		first, err := f.engine.Run(ctx, doc, issues, autofix.Options{UpgradeVersions: true})
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			doc, issues = build()
			again, err := f.engine.Run(ctx, doc, issues, autofix.Options{UpgradeVersions: true})
			require.NoError(t, err)
			assert.Equal(t, first.Fixes, again.Fixes)
		}
		assert.Zero(t, first.AppliedCount)
		assert.Nil(t, first.Workflow)
	})
}

func TestWebhookFixes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should fill a missing path from the webhookId", func(t *testing.T) {
		hook := node("Hook", "nodes-base.webhook", 2, map[string]any{})
		hook.WebhookID = "abc-123"
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Hooks", Nodes: []*workflow.Node{hook}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixWebhookMissingPath},
			Apply:    true,
		})
		require.NoError(t, err)
		require.Len(t, result.Fixes, 1)
		assert.Equal(t, "parameters.path", result.Fixes[0].Field)
		assert.Equal(t, "abc-123", result.Workflow.Nodes[0].Parameters["path"])
	})
	t.Run("Should regenerate a duplicated webhookId deterministically", func(t *testing.T) {
		build := func() (*workflow.Document, *validate.Result) {
			a := node("Hook A", "nodes-base.webhook", 2, map[string]any{"path": "a"})
			a.WebhookID = "dup-id"
			b := node("Hook B", "nodes-base.webhook", 2, map[string]any{"path": "b"})
			b.WebhookID = "dup-id"
			return f.validated(t, ctx, &workflow.Workflow{ID: "wf-1", Name: "Dups", Nodes: []*workflow.Node{a, b}})
		}
		doc, issues := build()
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixWebhookMissingPath},
			Apply:    true,
		})
		require.NoError(t, err)
		require.Len(t, result.Fixes, 1)
		assert.Equal(t, "Hook B", result.Fixes[0].NodeName)
		assert.Equal(t, "webhookId", result.Fixes[0].Field)
		regenerated := result.Workflow.Nodes[1].WebhookID
		assert.NotEqual(t, "dup-id", regenerated)
		assert.Equal(t, regenerated, result.Workflow.Nodes[1].Parameters["path"])

		doc, issues = build()
		again, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixWebhookMissingPath},
		})
		require.NoError(t, err)
		require.Len(t, again.Fixes, 1)
		assert.Equal(t, regenerated, again.Fixes[0].After)
	})
}

func TestNodeTypeCorrection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should correct a confidently matched unknown type", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Typo", Nodes: []*workflow.Node{
			node("Hook", "nodes-base.webhok", 2, map[string]any{"path": "in"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixNodeTypeCorrection},
			Apply:    true,
		})
		require.NoError(t, err)
		require.Len(t, result.Fixes, 1)
		assert.Equal(t, "nodes-base.webhook", result.Workflow.Nodes[0].Type)
	})
}

func TestTypeVersionFixes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should clamp an impossible typeVersion at medium confidence", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Future", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 9, map[string]any{"url": "https://example.com"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{Apply: true})
		require.NoError(t, err)
		clamps := fixesOfType(result.Fixes, autofix.FixTypeVersionCorrection)
		require.Len(t, clamps, 1)
		assert.Equal(t, autofix.ConfidenceMedium, clamps[0].Confidence)
		assert.Equal(t, 4.2, result.Workflow.Nodes[0].TypeVersion)
	})
	t.Run("Should drop medium fixes below a high threshold", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Future", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 9, map[string]any{"url": "https://example.com"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			ConfidenceThreshold: autofix.ConfidenceHigh,
		})
		require.NoError(t, err)
		assert.Empty(t, fixesOfType(result.Fixes, autofix.FixTypeVersionCorrection))
	})
	t.Run("Should preview upgrades with migration guidance entries", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Old", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 1, map[string]any{
				"url":           "https://example.com",
				"requestMethod": "POST",
			}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{UpgradeVersions: true})
		require.NoError(t, err)
		upgrades := fixesOfType(result.Fixes, autofix.FixTypeVersionUpgrade)
		require.Len(t, upgrades, 1)
		assert.Equal(t, autofix.ConfidenceHigh, upgrades[0].Confidence)
		assert.Equal(t, 4.2, upgrades[0].After)

		migrations := fixesOfType(result.Fixes, autofix.FixVersionMigration)
		require.Len(t, migrations, 5)
		for _, m := range migrations {
			assert.Equal(t, autofix.ConfidenceLow, m.Confidence)
		}
		assert.Equal(t, "parameters.requestMethod", migrations[0].Field)
	})
	t.Run("Should never apply version-migration entries", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Old", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 1, map[string]any{"url": "https://example.com"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixVersionMigration},
			Apply:    true,
		})
		require.NoError(t, err)
		require.NotEmpty(t, result.Fixes)
		assert.Zero(t, result.AppliedCount)
		assert.Equal(t, len(result.Fixes), result.SkippedCount)
		assert.Equal(t, 1.0, result.Workflow.Nodes[0].TypeVersion)
	})
	t.Run("Should migrate parameters and emit guidance when upgrading", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Old", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 3, map[string]any{"url": "https://example.com"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{UpgradeVersions: true, Apply: true})
		require.NoError(t, err)
		n := result.Workflow.Nodes[0]
		assert.Equal(t, 4.2, n.TypeVersion)
		assert.Equal(t, false, n.Parameters["allowUnauthorizedCerts"])
		assert.Equal(t, false, n.Parameters["sendBody"])
		require.Len(t, result.Guidance, 1)
		assert.Equal(t, autofix.MigrationRequiresReview, result.Guidance[0].MigrationStatus)
		assert.NotEmpty(t, result.Guidance[0].RequiredActions)
		assert.Equal(t, "5-15 minutes", result.Guidance[0].EstimatedTime)
	})
}

func TestErrorOutputFix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should normalize onError aliases", func(t *testing.T) {
		n := node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "https://example.com"})
		n.OnError = "continue"
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Err", Nodes: []*workflow.Node{n}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{Apply: true})
		require.NoError(t, err)
		fixes := fixesOfType(result.Fixes, autofix.FixErrorOutputConfig)
		require.Len(t, fixes, 1)
		assert.Equal(t, autofix.ConfidenceMedium, fixes[0].Confidence)
		assert.Equal(t, "continueRegularOutput", result.Workflow.Nodes[0].OnError)
	})
	t.Run("Should leave canonical onError values alone", func(t *testing.T) {
		n := node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "https://example.com"})
		n.OnError = "continueRegularOutput"
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Err", Nodes: []*workflow.Node{n}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{})
		require.NoError(t, err)
		assert.Empty(t, fixesOfType(result.Fixes, autofix.FixErrorOutputConfig))
	})
}

func TestSwitchOptionFixes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should repair modern switch rule plumbing", func(t *testing.T) {
		sw := node("Route", "nodes-base.switch", 3.2, map[string]any{
			"options": map[string]any{},
			"rules": map[string]any{
				"fallbackOutput": "extra",
				"values": []any{
					map[string]any{
						"conditions": map[string]any{
							"options":    map[string]any{},
							"conditions": []any{},
						},
					},
				},
			},
		})
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Switch", Nodes: []*workflow.Node{sw}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixSwitchOptions},
		})
		require.NoError(t, err)
		fixes := fixesOfType(result.Fixes, autofix.FixSwitchOptions)
		require.Len(t, fixes, 4)

		assert.Equal(t, "nodes[0].parameters.options", fixes[0].Field)
		assert.Nil(t, fixes[0].After)

		filled, ok := fixes[1].After.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, filled["caseSensitive"])
		assert.Equal(t, "strict", filled["typeValidation"])
		assert.Equal(t, float64(2), filled["version"])

		assert.Equal(t, "nodes[0].parameters.options.fallbackOutput", fixes[2].Field)
		assert.Equal(t, "extra", fixes[2].After)
		assert.Equal(t, "nodes[0].parameters.rules.fallbackOutput", fixes[3].Field)
		assert.Nil(t, fixes[3].After)
	})
	t.Run("Should move fallbackOutput even when options does not exist yet", func(t *testing.T) {
		sw := node("Route", "nodes-base.switch", 3.2, map[string]any{
			"rules": map[string]any{"fallbackOutput": "extra"},
		})
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Switch", Nodes: []*workflow.Node{sw}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixSwitchOptions},
			Apply:    true,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.AppliedCount)
		assert.Zero(t, result.SkippedCount)
		params := result.Workflow.Nodes[0].Parameters
		opts, ok := params["options"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "extra", opts["fallbackOutput"])
		rules := params["rules"].(map[string]any)
		assert.NotContains(t, rules, "fallbackOutput")
	})
	t.Run("Should skip version 2 switches", func(t *testing.T) {
		sw := node("Route", "nodes-base.switch", 2, map[string]any{"options": map[string]any{}})
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Switch", Nodes: []*workflow.Node{sw}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixSwitchOptions},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Fixes)
	})
	t.Run("Should not add the conditions schema version below switch 3.2", func(t *testing.T) {
		sw := node("Route", "nodes-base.switch", 3, map[string]any{
			"rules": map[string]any{
				"values": []any{
					map[string]any{"conditions": map[string]any{"options": map[string]any{}}},
				},
			},
		})
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Switch", Nodes: []*workflow.Node{sw}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{
			FixTypes: []autofix.FixType{autofix.FixSwitchOptions},
		})
		require.NoError(t, err)
		fixes := fixesOfType(result.Fixes, autofix.FixSwitchOptions)
		require.Len(t, fixes, 1)
		filled, ok := fixes[0].After.(map[string]any)
		require.True(t, ok)
		assert.NotContains(t, filled, "version")
	})
}

func TestRunOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("Should cap fixes at MaxFixes", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "Many", Nodes: []*workflow.Node{
			node("A", "nodes-base.set", 3.4, map[string]any{"v1": "{{ $json.a }}", "v2": "{{ $json.b }}", "v3": "{{ $json.c }}"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{MaxFixes: 2})
		require.NoError(t, err)
		assert.Len(t, result.Fixes, 2)
	})
	t.Run("Should summarize preview runs", func(t *testing.T) {
		doc, issues := f.validated(t, ctx, &workflow.Workflow{Name: "None", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "https://example.com"}),
		}})
		result, err := f.engine.Run(ctx, doc, issues, autofix.Options{})
		require.NoError(t, err)
		assert.Equal(t, "no fixable issues found", result.Summary)
	})
}
