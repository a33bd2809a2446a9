// Package catalogtest builds throwaway node-catalog snapshots for tests.
package catalogtest

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/n8nkit/n8nctl/engine/catalog"
)

// Row seeds one node definition in the fixture snapshot.
type Row struct {
	NodeType    string
	DisplayName string
	Description string
	Category    string
	Package     string
	IsTrigger   bool
	IsWebhook   bool
	IsAITool    bool
	IsVersioned bool
	Version     string
	Properties  []catalog.PropertySchema
	Operations  []catalog.OperationInfo
	Credentials []catalog.CredentialInfo
}

const createNodes = `
	CREATE TABLE nodes (
		node_type            TEXT PRIMARY KEY,
		display_name         TEXT NOT NULL,
		description          TEXT,
		category             TEXT,
		package_name         TEXT,
		is_trigger           BOOLEAN NOT NULL DEFAULT 0,
		is_webhook           BOOLEAN NOT NULL DEFAULT 0,
		is_ai_tool           BOOLEAN NOT NULL DEFAULT 0,
		is_versioned         BOOLEAN NOT NULL DEFAULT 0,
		version              TEXT,
		properties_schema    TEXT,
		operations           TEXT,
		credentials_required TEXT
	)`

// Write creates a snapshot database containing the given rows and returns its
// path.
func Write(t *testing.T, rows []Row) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(createNodes)
	require.NoError(t, err)
	const insert = `
		INSERT INTO nodes (node_type, display_name, description, category, package_name,
			is_trigger, is_webhook, is_ai_tool, is_versioned, version,
			properties_schema, operations, credentials_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, row := range rows {
		_, err = db.Exec(insert,
			row.NodeType, row.DisplayName, row.Description, row.Category, row.Package,
			row.IsTrigger, row.IsWebhook, row.IsAITool, row.IsVersioned, row.Version,
			encode(t, row.Properties), encode(t, row.Operations), encode(t, row.Credentials),
		)
		require.NoError(t, err)
	}
	return path
}

// Open builds a snapshot from rows and opens a catalog over it. The catalog
// is closed when the test finishes.
func Open(t *testing.T, rows []Row) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(Write(t, rows))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

// OpenDefault opens a catalog seeded with DefaultRows.
func OpenDefault(t *testing.T) *catalog.Catalog {
	t.Helper()
	return Open(t, DefaultRows())
}

func encode(t *testing.T, v any) any {
	t.Helper()
	switch x := v.(type) {
	case []catalog.PropertySchema:
		if len(x) == 0 {
			return nil
		}
	case []catalog.OperationInfo:
		if len(x) == 0 {
			return nil
		}
	case []catalog.CredentialInfo:
		if len(x) == 0 {
			return nil
		}
	}
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

// DefaultRows covers the node types the engine tests lean on: triggers,
// plumbing nodes, versioned nodes and a small AI cluster.
func DefaultRows() []Row {
	return []Row{
		{
			NodeType:    "nodes-base.webhook",
			DisplayName: "Webhook",
			Description: "Starts the workflow when a webhook is called",
			Category:    "trigger",
			Package:     "n8n-nodes-base",
			IsTrigger:   true,
			IsWebhook:   true,
			IsVersioned: true,
			Version:     "2",
			Properties: []catalog.PropertySchema{
				{Name: "path", Type: "string", Required: true},
				{Name: "httpMethod", Type: "options", Default: "GET"},
			},
		},
		{
			NodeType:    "nodes-base.manualTrigger",
			DisplayName: "Manual Trigger",
			Description: "Starts the workflow on manual execution",
			Category:    "trigger",
			Package:     "n8n-nodes-base",
			IsTrigger:   true,
			Version:     "1",
		},
		{
			NodeType:    "nodes-base.httpRequest",
			DisplayName: "HTTP Request",
			Description: "Makes an HTTP request and returns the response",
			Category:    "core",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "4.2",
			Properties: []catalog.PropertySchema{
				{Name: "url", Type: "string", Required: true},
				{Name: "method", Type: "options", Default: "GET", Options: []catalog.PropertyOption{
					{Value: "GET"}, {Value: "POST"}, {Value: "PUT"}, {Value: "DELETE"},
				}},
				{Name: "authentication", Type: "options", Default: "none"},
			},
		},
		{
			NodeType:    "nodes-base.set",
			DisplayName: "Edit Fields (Set)",
			Description: "Sets values on items",
			Category:    "core",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "3.4",
		},
		{
			NodeType:    "nodes-base.code",
			DisplayName: "Code",
			Description: "Runs custom JavaScript or Python code",
			Category:    "core",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "2",
		},
		{
			NodeType:    "nodes-base.if",
			DisplayName: "If",
			Description: "Routes items based on conditions",
			Category:    "logic",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "2.2",
		},
		{
			NodeType:    "nodes-base.switch",
			DisplayName: "Switch",
			Description: "Routes items to different outputs",
			Category:    "logic",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "3.2",
		},
		{
			NodeType:    "nodes-base.respondToWebhook",
			DisplayName: "Respond to Webhook",
			Description: "Sends a response to the calling webhook",
			Category:    "core",
			Package:     "n8n-nodes-base",
			Version:     "1.1",
		},
		{
			NodeType:    "nodes-base.slack",
			DisplayName: "Slack",
			Description: "Sends messages and manages channels in Slack",
			Category:    "communication",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "2.2",
			Operations: []catalog.OperationInfo{
				{Resource: "message", Operation: "post", Name: "Post Message"},
				{Resource: "channel", Operation: "create", Name: "Create Channel"},
			},
			Credentials: []catalog.CredentialInfo{{Name: "slackApi", Required: true}},
		},
		{
			NodeType:    "nodes-base.googleSheets",
			DisplayName: "Google Sheets",
			Description: "Reads and writes Google Sheets rows",
			Category:    "productivity",
			Package:     "n8n-nodes-base",
			IsVersioned: true,
			Version:     "4.5",
			Credentials: []catalog.CredentialInfo{{Name: "googleSheetsOAuth2Api", Required: true}},
		},
		{
			NodeType:    "nodes-langchain.agent",
			DisplayName: "AI Agent",
			Description: "Runs an agent backed by a chat model and tools",
			Category:    "ai",
			Package:     "@n8n/n8n-nodes-langchain",
			IsVersioned: true,
			Version:     "1.7",
			Properties: []catalog.PropertySchema{
				{Name: "promptType", Type: "options", Default: "auto"},
				{Name: "text", Type: "string"},
			},
		},
		{
			NodeType:    "nodes-langchain.lmChatOpenAi",
			DisplayName: "OpenAI Chat Model",
			Description: "Chat model for agents and chains",
			Category:    "ai",
			Package:     "@n8n/n8n-nodes-langchain",
			Version:     "1",
		},
		{
			NodeType:    "nodes-langchain.toolHttpRequest",
			DisplayName: "HTTP Request Tool",
			Description: "Lets an agent call HTTP endpoints",
			Category:    "ai",
			Package:     "@n8n/n8n-nodes-langchain",
			IsAITool:    true,
			Version:     "1.1",
		},
	}
}
