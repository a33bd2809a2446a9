package validate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8nkit/n8nctl/engine/catalog/catalogtest"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

func newValidator(t *testing.T) *validate.Validator {
	t.Helper()
	return validate.New(catalogtest.OpenDefault(t))
}

func node(name, nodeType string, version float64, params map[string]any) *workflow.Node {
	return &workflow.Node{
		Name:        name,
		Type:        nodeType,
		TypeVersion: version,
		Position:    []float64{100, 200},
		Parameters:  params,
	}
}

func docOf(w *workflow.Workflow) *workflow.Document {
	if w.Connections == nil {
		w.Connections = map[string]workflow.ConnectionGroup{}
	}
	return &workflow.Document{Workflow: w}
}

func codes(issues []validate.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, iss := range issues {
		out = append(out, iss.Code)
	}
	return out
}

func byCode(issues []validate.Issue, code string) []validate.Issue {
	var out []validate.Issue
	for _, iss := range issues {
		if iss.Code == code {
			out = append(out, iss)
		}
	}
	return out
}

func TestValidateStructure(t *testing.T) {
	ctx := context.Background()
	v := newValidator(t)

	t.Run("Should accept an empty workflow at runtime profile", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Empty", Nodes: []*workflow.Node{}})
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileRuntime})
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Issues)
	})
	t.Run("Should error on a missing nodes array", func(t *testing.T) {
		doc, err := workflow.Parse([]byte(`{"name": "Bare", "connections": {}}`), workflow.ParseOptions{})
		require.NoError(t, err)
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, codes(result.Issues), validate.CodeMissingProperty)
	})
	t.Run("Should error on duplicate node names", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Dup", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "https://a.example"}),
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "https://b.example"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		assert.False(t, result.Valid)
		dups := byCode(result.Issues, validate.CodeDuplicateNodeName)
		require.Len(t, dups, 1)
		assert.Equal(t, "nodes[1].name", dups[0].Location.Path)
	})
	t.Run("Should error on dangling connections", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{
			Name:  "Dangling",
			Nodes: []*workflow.Node{node("Start", "nodes-base.manualTrigger", 1, nil)},
			Connections: map[string]workflow.ConnectionGroup{
				"Start": {workflow.ConnectionMain: [][]workflow.ConnectionTarget{
					{{Node: "Ghost", Type: workflow.ConnectionMain, Index: 0}},
				}},
			},
		})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		assert.False(t, result.Valid)
		dangling := byCode(result.Issues, validate.CodeConnectionDangling)
		require.Len(t, dangling, 1)
		assert.Equal(t, "Ghost", dangling[0].Context["target"])
	})
	t.Run("Should warn when an edge touches a disabled node", func(t *testing.T) {
		worker := node("Work", "nodes-base.set", 3.4, nil)
		worker.Disabled = true
		doc := docOf(&workflow.Workflow{
			Name:  "Disabled",
			Nodes: []*workflow.Node{node("Start", "nodes-base.manualTrigger", 1, nil), worker},
			Connections: map[string]workflow.ConnectionGroup{
				"Start": {workflow.ConnectionMain: [][]workflow.ConnectionTarget{
					{{Node: "Work", Type: workflow.ConnectionMain, Index: 0}},
				}},
			},
		})
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		assert.True(t, result.Valid)
		require.Len(t, byCode(result.Issues, validate.CodeConnectionDangling), 1)
	})
	t.Run("Should emit exactly one error for active without trigger", func(t *testing.T) {
		active := true
		doc := docOf(&workflow.Workflow{
			Name:   "Active",
			Active: &active,
			Nodes:  []*workflow.Node{node("Work", "nodes-base.set", 3.4, nil)},
		})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, byCode(result.Issues, validate.CodeNoTriggerWhenActive), 1)
	})
	t.Run("Should error on a prefix-less node type", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Bad", Nodes: []*workflow.Node{
			node("Hook", "webhook", 2, nil),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		bad := byCode(result.Issues, validate.CodeInvalidNodeTypeFormat)
		require.Len(t, bad, 1)
		assert.Equal(t, "nodes-base.webhook", bad[0].Context["expected"])
	})
}

func TestValidateNodeConfig(t *testing.T) {
	ctx := context.Background()
	v := newValidator(t)

	t.Run("Should suggest replacements for unknown node types", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Typo", Nodes: []*workflow.Node{
			node("Hook", "nodes-base.webhok", 2, map[string]any{"path": "in"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileRuntime})
		require.NoError(t, err)
		unknown := byCode(result.Issues, validate.CodeUnknownNodeType)
		require.Len(t, unknown, 1)
		require.NotEmpty(t, unknown[0].Suggestions)
		assert.Equal(t, "nodes-base.webhook", unknown[0].Suggestions[0].NodeType)
		assert.True(t, unknown[0].Suggestions[0].AutoFixable)
	})
	t.Run("Should error on missing required properties", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "NoURL", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		missing := byCode(result.Issues, validate.CodeMissingRequiredProperty)
		require.Len(t, missing, 1)
		assert.Equal(t, "nodes[0].parameters.url", missing[0].Location.Path)
	})
	t.Run("Should error on a disallowed option value", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "BadOpt", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{
				"url":    "https://example.com",
				"method": "FETCH",
			}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		invalid := byCode(result.Issues, validate.CodeInvalidOption)
		require.Len(t, invalid, 1)
		assert.Equal(t, "FETCH", invalid[0].Context["value"])
	})
	t.Run("Should skip option checks for expression values", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Expr", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{
				"url":    "https://example.com",
				"method": "={{ $json.method }}",
			}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		assert.Empty(t, byCode(result.Issues, validate.CodeInvalidOption))
	})
	t.Run("Should error when typeVersion exceeds the latest", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Future", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 9, map[string]any{"url": "https://example.com"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		exceeds := byCode(result.Issues, validate.CodeTypeVersionExceedsMax)
		require.Len(t, exceeds, 1)
		assert.Equal(t, "4.2", exceeds[0].Context["expected"])
	})
	t.Run("Should warn about outdated typeVersion only outside runtime", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Old", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 2, map[string]any{"url": "https://example.com"}),
		}})
		runtime, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileRuntime})
		require.NoError(t, err)
		assert.Empty(t, byCode(runtime.Issues, validate.CodeOutdatedTypeVersion))

		friendly, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		require.Len(t, byCode(friendly.Issues, validate.CodeOutdatedTypeVersion), 1)
	})
	t.Run("Should flag eval in code nodes", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Evil", Nodes: []*workflow.Node{
			node("Run Code", "nodes-base.code", 2, map[string]any{"jsCode": "eval(input)"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		require.Len(t, byCode(result.Issues, validate.CodeEnhancedSecurity), 1)
	})
}

func TestValidateExpressions(t *testing.T) {
	ctx := context.Background()
	v := newValidator(t)

	t.Run("Should error on an expression missing its = marker", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Expr", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "{{ $json.url }}"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		missing := byCode(result.Issues, validate.CodeExpressionMissingPrefix)
		require.Len(t, missing, 1)
		assert.Equal(t, "nodes[0].parameters.url", missing[0].Location.Path)
		assert.Equal(t, "={{ $json.url }}", missing[0].Context["expected"])
	})
	t.Run("Should flag mixed literal and expression text", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Mixed", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{
				"url": "https://example.com/{{ $json.id }}",
			}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		missing := byCode(result.Issues, validate.CodeExpressionMissingPrefix)
		require.Len(t, missing, 1)
		assert.Equal(t, true, missing[0].Context["mixedLiteral"])
	})
	t.Run("Should accept properly prefixed expressions", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "OK", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "={{ $json.url }}"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		assert.Empty(t, byCode(result.Issues, validate.CodeExpressionMissingPrefix))
	})
	t.Run("Should walk deeply nested parameters", func(t *testing.T) {
		leaf := map[string]any{"value": "{{ $json.x }}"}
		var nested any = leaf
		for i := 0; i < 100; i++ {
			nested = map[string]any{"inner": nested}
		}
		doc := docOf(&workflow.Workflow{Name: "Deep", Nodes: []*workflow.Node{
			node("Transform", "nodes-base.set", 3.4, map[string]any{"deep": nested}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		require.Len(t, byCode(result.Issues, validate.CodeExpressionMissingPrefix), 1)
	})
}

func TestValidateAITopology(t *testing.T) {
	ctx := context.Background()
	v := newValidator(t)

	agentFlow := func(withModel bool) *workflow.Document {
		w := &workflow.Workflow{
			Name: "Agent",
			Nodes: []*workflow.Node{
				node("Agent", "nodes-langchain.agent", 1.7, map[string]any{"promptType": "auto"}),
				node("Model", "nodes-langchain.lmChatOpenAi", 1, nil),
			},
			Connections: map[string]workflow.ConnectionGroup{},
		}
		if withModel {
			w.Connections["Model"] = workflow.ConnectionGroup{
				workflow.ConnectionAILanguageModel: [][]workflow.ConnectionTarget{
					{{Node: "Agent", Type: workflow.ConnectionAILanguageModel, Index: 0}},
				},
			}
		}
		return docOf(w)
	}

	t.Run("Should error when an agent has no language model", func(t *testing.T) {
		result, err := v.Validate(ctx, agentFlow(false), validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.Len(t, byCode(result.Issues, validate.CodeMissingLanguageModel), 1)
	})
	t.Run("Should pass a wired agent", func(t *testing.T) {
		result, err := v.Validate(ctx, agentFlow(true), validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		assert.Empty(t, byCode(result.Issues, validate.CodeMissingLanguageModel))
	})
	t.Run("Should surface agent hints as info at ai-friendly only", func(t *testing.T) {
		friendly, err := v.Validate(ctx, agentFlow(true), validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		assert.NotEmpty(t, friendly.Infos())

		runtime, err := v.Validate(ctx, agentFlow(true), validate.Options{Profile: validate.ProfileRuntime})
		require.NoError(t, err)
		assert.Empty(t, runtime.Infos())
	})
	t.Run("Should error on empty prompt text when promptType is define", func(t *testing.T) {
		doc := agentFlow(true)
		doc.Workflow.Nodes[0].Parameters["promptType"] = "define"
		doc.Workflow.Nodes[0].Parameters["text"] = "  "
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		prompt := byCode(result.Issues, validate.CodeMissingPromptText)
		var errors []validate.Issue
		for _, iss := range prompt {
			if iss.Severity == validate.SeverityError {
				errors = append(errors, iss)
			}
		}
		require.Len(t, errors, 1)
	})
	t.Run("Should error on multiple memory connections", func(t *testing.T) {
		doc := agentFlow(true)
		doc.Workflow.Nodes = append(doc.Workflow.Nodes,
			node("Memory A", "nodes-langchain.memoryBufferWindow", 1, nil),
			node("Memory B", "nodes-langchain.memoryBufferWindow", 1, nil),
		)
		for _, name := range []string{"Memory A", "Memory B"} {
			doc.Workflow.Connections[name] = workflow.ConnectionGroup{
				workflow.ConnectionAIMemory: [][]workflow.ConnectionTarget{
					{{Node: "Agent", Type: workflow.ConnectionAIMemory, Index: 0}},
				},
			}
		}
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileRuntime})
		require.NoError(t, err)
		require.Len(t, byCode(result.Issues, validate.CodeMultipleMemoryConnections), 1)
	})
	t.Run("Should warn on an undescribed AI tool", func(t *testing.T) {
		doc := agentFlow(true)
		doc.Workflow.Nodes = append(doc.Workflow.Nodes,
			node("Lookup", "nodes-langchain.toolHttpRequest", 1.1, nil))
		doc.Workflow.Connections["Lookup"] = workflow.ConnectionGroup{
			workflow.ConnectionAITool: [][]workflow.ConnectionTarget{
				{{Node: "Agent", Type: workflow.ConnectionAITool, Index: 0}},
			},
		}
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		require.Len(t, byCode(result.Issues, validate.CodeMissingToolDescription), 1)
	})
}

func TestProfileFiltering(t *testing.T) {
	ctx := context.Background()
	v := newValidator(t)

	mixed := func() *workflow.Document {
		return docOf(&workflow.Workflow{Name: "Mixed", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 2, map[string]any{}),
			node("Hook", "nodes-base.webhok", 2, map[string]any{"path": "in"}),
		}})
	}

	t.Run("Should keep only blocking errors at minimal", func(t *testing.T) {
		result, err := v.Validate(ctx, mixed(), validate.Options{Profile: validate.ProfileMinimal})
		require.NoError(t, err)
		for _, iss := range result.Issues {
			assert.Equal(t, validate.SeverityError, iss.Severity)
		}
		assert.Empty(t, byCode(result.Issues, validate.CodeUnknownNodeType))
	})
	t.Run("Should keep security warnings at minimal", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Sec", Nodes: []*workflow.Node{
			node("Run Code", "nodes-base.code", 2, map[string]any{"jsCode": "eval('x')"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileMinimal})
		require.NoError(t, err)
		security := byCode(result.Issues, validate.CodeEnhancedSecurity)
		require.Len(t, security, 1)
		assert.Equal(t, validate.SeverityWarning, security[0].Severity)
	})
	t.Run("Should keep blocking warnings at runtime", func(t *testing.T) {
		result, err := v.Validate(ctx, mixed(), validate.Options{Profile: validate.ProfileRuntime})
		require.NoError(t, err)
		assert.NotEmpty(t, byCode(result.Issues, validate.CodeUnknownNodeType))
		assert.Empty(t, byCode(result.Issues, validate.CodeOutdatedTypeVersion))
	})
	t.Run("Should keep everything at ai-friendly", func(t *testing.T) {
		result, err := v.Validate(ctx, mixed(), validate.Options{Profile: validate.ProfileAIFriendly})
		require.NoError(t, err)
		assert.NotEmpty(t, byCode(result.Issues, validate.CodeOutdatedTypeVersion))
	})
	t.Run("Should add strict extras", func(t *testing.T) {
		doc := docOf(&workflow.Workflow{Name: "Strict", Nodes: []*workflow.Node{
			node("Fetch", "nodes-base.httpRequest", 4.2, map[string]any{"url": "https://example.com"}),
		}})
		result, err := v.Validate(ctx, doc, validate.Options{Profile: validate.ProfileStrict})
		require.NoError(t, err)
		var notes int
		for _, iss := range byCode(result.Issues, validate.CodeMissingProperty) {
			if iss.Location.Path == "nodes[0].notes" {
				notes++
			}
		}
		assert.Equal(t, 1, notes)
	})
	t.Run("Should default an unknown profile name to runtime", func(t *testing.T) {
		assert.Equal(t, validate.ProfileRuntime, validate.ParseProfile("bogus"))
		assert.Equal(t, validate.ProfileStrict, validate.ParseProfile("strict"))
	})
}

func TestSourceAttachment(t *testing.T) {
	ctx := context.Background()
	v := newValidator(t)

	t.Run("Should attach source locations when raw text is available", func(t *testing.T) {
		src := fmt.Sprintf(`{
  "name": "Located",
  "nodes": [
    {
      "name": "Fetch",
      "type": "n8n-nodes-base.httpRequest",
      "typeVersion": 4.2,
      "position": [0, 0],
      "parameters": {
        "url": "%s"
      }
    }
  ],
  "connections": {}
}`, "{{ $json.url }}")
		doc, err := workflow.Parse([]byte(src), workflow.ParseOptions{})
		require.NoError(t, err)
		result, err := v.Validate(ctx, doc, validate.Options{})
		require.NoError(t, err)
		missing := byCode(result.Issues, validate.CodeExpressionMissingPrefix)
		require.Len(t, missing, 1)
		require.NotNil(t, missing[0].SourceLocation)
		assert.Equal(t, 10, missing[0].SourceLocation.Line)
		require.NotNil(t, missing[0].SourceSnippet)
	})
}
