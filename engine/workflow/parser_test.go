package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSource = `{
  "name": "Minimal",
  "nodes": [
    {
      "name": "Start",
      "type": "n8n-nodes-base.manualTrigger",
      "typeVersion": 1
    },
    {
      "name": "Fetch",
      "type": "n8n-nodes-base.httpRequest",
      "typeVersion": 4.2,
      "parameters": {
        "url": "https://example.com"
      }
    }
  ],
  "connections": {
    "Start": {
      "main": [[{"node": "Fetch", "type": "main", "index": 0}]]
    }
  }
}`

func TestParse(t *testing.T) {
	t.Run("Should parse strict JSON and normalize node types", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		require.Len(t, doc.Workflow.Nodes, 2)
		assert.Equal(t, "nodes-base.manualTrigger", doc.Workflow.Nodes[0].Type)
		assert.Equal(t, "nodes-base.httpRequest", doc.Workflow.Nodes[1].Type)
		assert.False(t, doc.Repaired)
		assert.False(t, doc.MissingNodes)
		assert.False(t, doc.MissingConnections)
	})
	t.Run("Should reject empty input", func(t *testing.T) {
		_, err := Parse([]byte("  \n "), ParseOptions{})
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "PARSE_ERROR", pe.Code)
	})
	t.Run("Should report line and column on a syntax error", func(t *testing.T) {
		src := "{\n  \"name\": \"Broken\",\n  \"nodes\": }\n}"
		_, err := Parse([]byte(src), ParseOptions{})
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 3, pe.Line)
		assert.Greater(t, pe.Col, 0)
	})
	t.Run("Should repair trailing commas when asked", func(t *testing.T) {
		src := `{"name": "Fixable", "nodes": [], "connections": {},}`
		_, err := Parse([]byte(src), ParseOptions{})
		require.Error(t, err)

		doc, err := Parse([]byte(src), ParseOptions{Repair: true})
		require.NoError(t, err)
		assert.True(t, doc.Repaired)
		assert.Equal(t, "Fixable", doc.Workflow.Name)
	})
	t.Run("Should accept a JavaScript object literal when asked", func(t *testing.T) {
		src := `{name: 'Literal', nodes: [{name: 'Start', type: 'n8n-nodes-base.manualTrigger', typeVersion: 1}], connections: {}}`
		doc, err := Parse([]byte(src), ParseOptions{AcceptJSObject: true})
		require.NoError(t, err)
		assert.True(t, doc.Repaired)
		require.Len(t, doc.Workflow.Nodes, 1)
		assert.Equal(t, "nodes-base.manualTrigger", doc.Workflow.Nodes[0].Type)
		assert.Equal(t, 1.0, doc.Workflow.Nodes[0].TypeVersion)
	})
	t.Run("Should default missing connections and flag them", func(t *testing.T) {
		doc, err := Parse([]byte(`{"name": "Bare", "nodes": []}`), ParseOptions{})
		require.NoError(t, err)
		assert.True(t, doc.MissingConnections)
		assert.NotNil(t, doc.Workflow.Connections)
	})
	t.Run("Should flag a missing nodes array", func(t *testing.T) {
		doc, err := Parse([]byte(`{"name": "Empty", "connections": {}}`), ParseOptions{})
		require.NoError(t, err)
		assert.True(t, doc.MissingNodes)
	})
}

func TestSerialize(t *testing.T) {
	t.Run("Should round-trip through parse", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		out, err := Serialize(doc.Workflow)
		require.NoError(t, err)
		again, err := Parse(out, ParseOptions{})
		require.NoError(t, err)
		assert.Equal(t, doc.Workflow, again.Workflow)
	})
}

func TestFromMap(t *testing.T) {
	t.Run("Should build a document from a decoded value", func(t *testing.T) {
		doc, err := FromMap(map[string]any{
			"name": "FromAPI",
			"nodes": []any{
				map[string]any{"name": "Hook", "type": "n8n-nodes-base.webhook", "typeVersion": 2.0},
			},
		})
		require.NoError(t, err)
		require.Len(t, doc.Workflow.Nodes, 1)
		assert.Equal(t, "nodes-base.webhook", doc.Workflow.Nodes[0].Type)
		assert.True(t, doc.MissingConnections)
	})
}

func TestNormalizeNodeType(t *testing.T) {
	t.Run("Should shorten legacy and scoped prefixes", func(t *testing.T) {
		assert.Equal(t, "nodes-base.set", NormalizeNodeType("n8n-nodes-base.set"))
		assert.Equal(t, "nodes-langchain.agent", NormalizeNodeType("@n8n/n8n-nodes-langchain.agent"))
	})
	t.Run("Should be idempotent", func(t *testing.T) {
		short := NormalizeNodeType("n8n-nodes-base.set")
		assert.Equal(t, short, NormalizeNodeType(short))
	})
	t.Run("Should pass unknown prefixes through", func(t *testing.T) {
		assert.Equal(t, "custom.mine", NormalizeNodeType("custom.mine"))
	})
}

func TestDisplayNodeType(t *testing.T) {
	t.Run("Should invert normalization", func(t *testing.T) {
		assert.Equal(t, "n8n-nodes-base.set", DisplayNodeType("nodes-base.set"))
		assert.Equal(t, "@n8n/n8n-nodes-langchain.agent", DisplayNodeType("nodes-langchain.agent"))
	})
}

func TestTriggerClassification(t *testing.T) {
	t.Run("Should classify triggers by name fragments", func(t *testing.T) {
		assert.True(t, IsTriggerType("nodes-base.webhook"))
		assert.True(t, IsTriggerType("nodes-base.scheduleTrigger"))
		assert.True(t, IsTriggerType("nodes-base.manualTrigger"))
		assert.True(t, IsTriggerType("nodes-base.start"))
	})
	t.Run("Should not classify respondToWebhook as a trigger", func(t *testing.T) {
		assert.False(t, IsTriggerType("nodes-base.respondToWebhook"))
	})
	t.Run("Should exclude sub-workflow triggers from activation", func(t *testing.T) {
		assert.True(t, IsTriggerType("nodes-base.executeWorkflowTrigger"))
		assert.False(t, IsActivatableTriggerType("nodes-base.executeWorkflowTrigger"))
	})
	t.Run("Should ignore disabled triggers for activation", func(t *testing.T) {
		w := &Workflow{Nodes: []*Node{
			{Name: "Hook", Type: "nodes-base.webhook", Disabled: true},
			{Name: "Work", Type: "nodes-base.set"},
		}}
		assert.False(t, w.HasActivatableTrigger())
		w.Nodes[0].Disabled = false
		assert.True(t, w.HasActivatableTrigger())
	})
}

func TestRemoveNode(t *testing.T) {
	t.Run("Should drop the node and every edge touching it", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		w := doc.Workflow
		require.True(t, w.RemoveNode("Fetch"))
		_, ok := w.GetNode("Fetch")
		assert.False(t, ok)
		for _, group := range w.Connections {
			for _, slots := range group {
				for _, slot := range slots {
					for _, target := range slot {
						assert.NotEqual(t, "Fetch", target.Node)
					}
				}
			}
		}
	})
	t.Run("Should report a miss", func(t *testing.T) {
		w := &Workflow{}
		assert.False(t, w.RemoveNode("Nope"))
	})
}

func TestBuildReverseIndex(t *testing.T) {
	t.Run("Should index edges by their target", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		idx := BuildReverseIndex(doc.Workflow)
		incoming := idx["Fetch"]
		require.Len(t, incoming, 1)
		assert.Equal(t, "Start", incoming[0].SourceName)
		assert.Equal(t, ConnectionMain, incoming[0].SourceType)
	})
	t.Run("Should filter by connection type", func(t *testing.T) {
		w := &Workflow{Connections: map[string]ConnectionGroup{
			"Model": {ConnectionAILanguageModel: [][]ConnectionTarget{
				{{Node: "Agent", Type: ConnectionAILanguageModel, Index: 0}},
			}},
			"Start": {ConnectionMain: [][]ConnectionTarget{
				{{Node: "Agent", Type: ConnectionMain, Index: 0}},
			}},
		}}
		idx := BuildReverseIndex(w)
		models := idx.IncomingOfType("Agent", ConnectionAILanguageModel)
		require.Len(t, models, 1)
		assert.Equal(t, "Model", models[0].SourceName)
	})
}

func TestLocator(t *testing.T) {
	t.Run("Should resolve a node parameter to its source line", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		loc := NewLocator(doc).Locate("nodes[1].parameters.url")
		require.NotNil(t, loc)
		assert.Equal(t, 14, loc.Line)
		assert.Greater(t, loc.Col, 0)
	})
	t.Run("Should miss gracefully without raw text", func(t *testing.T) {
		loc := NewLocator(&Document{Workflow: &Workflow{}}).Locate("nodes[0]")
		assert.Nil(t, loc)
	})
	t.Run("Should miss on an unresolvable path", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		assert.Nil(t, NewLocator(doc).Locate("nodes[9].parameters.url"))
	})
	t.Run("Should build a highlighted snippet", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		locator := NewLocator(doc)
		loc := locator.Locate("nodes[1].parameters.url")
		require.NotNil(t, loc)
		snippet := locator.Snippet(loc, 1)
		require.NotNil(t, snippet)
		require.Len(t, snippet.Lines, 3)
		assert.True(t, snippet.Lines[1].Highlight)
		assert.Contains(t, snippet.Lines[1].Text, "example.com")
	})
}

func TestClone(t *testing.T) {
	t.Run("Should deep copy so mutations do not leak", func(t *testing.T) {
		doc, err := Parse([]byte(minimalSource), ParseOptions{})
		require.NoError(t, err)
		clone, err := doc.Workflow.Clone()
		require.NoError(t, err)
		clone.Nodes[1].Parameters["url"] = "https://changed.example"
		assert.Equal(t, "https://example.com", doc.Workflow.Nodes[1].Parameters["url"])
	})
}
