package changes

import "github.com/n8nkit/n8nctl/engine/core"

func v(major, minor int) core.Version { return core.Version{Major: major, Minor: minor} }

// registry maps a short-form node type to its recorded version changes.
// Entries are in upgrade order; ChangesInRange preserves it.
var registry = map[string][]BreakingChange{
	"nodes-base.httpRequest": {
		{
			NodeType:       "nodes-base.httpRequest",
			FromVersion:    v(1, 0),
			ToVersion:      v(2, 0),
			PropertyName:   "requestMethod",
			ChangeType:     ChangeRenamed,
			NewName:        "method",
			IsBreaking:     true,
			Severity:       SeverityHigh,
			AutoMigratable: true,
			MigrationHint:  "requestMethod was renamed to method",
		},
		{
			NodeType:       "nodes-base.httpRequest",
			FromVersion:    v(2, 0),
			ToVersion:      v(3, 0),
			PropertyName:   "queryParametersUi",
			ChangeType:     ChangeRenamed,
			NewName:        "queryParameters",
			IsBreaking:     true,
			Severity:       SeverityMedium,
			AutoMigratable: true,
			MigrationHint:  "queryParametersUi was flattened into queryParameters",
		},
		{
			NodeType:       "nodes-base.httpRequest",
			FromVersion:    v(3, 0),
			ToVersion:      v(4, 0),
			PropertyName:   "responseFormat",
			ChangeType:     ChangeSemanticChanged,
			IsBreaking:     true,
			Severity:       SeverityHigh,
			AutoMigratable: false,
			MigrationHint:  "Response handling moved under options.response; review response parsing",
		},
		{
			NodeType:       "nodes-base.httpRequest",
			FromVersion:    v(4, 0),
			ToVersion:      v(4, 1),
			PropertyName:   "allowUnauthorizedCerts",
			ChangeType:     ChangeDefaultChanged,
			NewDefault:     false,
			IsBreaking:     false,
			Severity:       SeverityLow,
			AutoMigratable: true,
			MigrationHint:  "Unauthorized certificates are rejected by default",
		},
		{
			NodeType:       "nodes-base.httpRequest",
			FromVersion:    v(4, 1),
			ToVersion:      v(4, 2),
			PropertyName:   "sendBody",
			ChangeType:     ChangeAdded,
			NewDefault:     false,
			IsBreaking:     false,
			Severity:       SeverityLow,
			AutoMigratable: true,
			MigrationHint:  "Body payloads must opt in via sendBody",
		},
	},
	"nodes-base.webhook": {
		{
			NodeType:       "nodes-base.webhook",
			FromVersion:    v(1, 0),
			ToVersion:      v(1, 1),
			PropertyName:   "responseMode",
			ChangeType:     ChangeDefaultChanged,
			NewDefault:     "onReceived",
			IsBreaking:     false,
			Severity:       SeverityLow,
			AutoMigratable: true,
			MigrationHint:  "responseMode defaults to onReceived",
		},
		{
			NodeType:       "nodes-base.webhook",
			FromVersion:    v(1, 1),
			ToVersion:      v(2, 0),
			PropertyName:   "responseData",
			ChangeType:     ChangeSemanticChanged,
			IsBreaking:     true,
			Severity:       SeverityHigh,
			AutoMigratable: false,
			MigrationHint:  "Custom responses now require a Respond to Webhook node",
		},
	},
	"nodes-base.switch": {
		{
			NodeType:       "nodes-base.switch",
			FromVersion:    v(2, 0),
			ToVersion:      v(3, 0),
			PropertyName:   "rules",
			ChangeType:     ChangeTypeChanged,
			IsBreaking:     true,
			Severity:       SeverityHigh,
			AutoMigratable: false,
			MigrationHint:  "Rules moved to the conditions collection format; rebuild each rule",
		},
		{
			NodeType:       "nodes-base.switch",
			FromVersion:    v(3, 0),
			ToVersion:      v(3, 2),
			PropertyName:   "options.fallbackOutput",
			ChangeType:     ChangeSemanticChanged,
			IsBreaking:     false,
			Severity:       SeverityMedium,
			AutoMigratable: true,
			MigrationHint:  "fallbackOutput lives under options, not rules",
		},
	},
	"nodes-base.if": {
		{
			NodeType:       "nodes-base.if",
			FromVersion:    v(1, 0),
			ToVersion:      v(2, 0),
			PropertyName:   "conditions",
			ChangeType:     ChangeTypeChanged,
			IsBreaking:     true,
			Severity:       SeverityHigh,
			AutoMigratable: false,
			MigrationHint:  "Typed condition groups replaced the flat comparison list",
		},
	},
	"nodes-base.set": {
		{
			NodeType:       "nodes-base.set",
			FromVersion:    v(2, 0),
			ToVersion:      v(3, 0),
			PropertyName:   "values",
			ChangeType:     ChangeRenamed,
			NewName:        "assignments",
			IsBreaking:     true,
			Severity:       SeverityMedium,
			AutoMigratable: true,
			MigrationHint:  "values was renamed to assignments",
		},
		{
			NodeType:       "nodes-base.set",
			FromVersion:    v(3, 0),
			ToVersion:      v(3, 4),
			PropertyName:   "includeOtherFields",
			ChangeType:     ChangeAdded,
			NewDefault:     false,
			IsBreaking:     false,
			Severity:       SeverityLow,
			AutoMigratable: true,
			MigrationHint:  "Passthrough of input fields is now explicit",
		},
	},
	"nodes-base.code": {
		{
			NodeType:       "nodes-base.code",
			FromVersion:    v(1, 0),
			ToVersion:      v(2, 0),
			PropertyName:   "mode",
			ChangeType:     ChangeAdded,
			NewDefault:     "runOnceForAllItems",
			IsBreaking:     false,
			Severity:       SeverityMedium,
			AutoMigratable: true,
			MigrationHint:  "Execution mode is explicit; runOnceForAllItems matches v1 behavior",
		},
	},
	"nodes-langchain.agent": {
		{
			NodeType:       "nodes-langchain.agent",
			FromVersion:    v(1, 0),
			ToVersion:      v(1, 7),
			PropertyName:   "promptType",
			ChangeType:     ChangeAdded,
			NewDefault:     "auto",
			IsBreaking:     false,
			Severity:       SeverityLow,
			AutoMigratable: true,
			MigrationHint:  "promptType auto reads the prompt from the incoming chat message",
		},
		{
			NodeType:       "nodes-langchain.agent",
			FromVersion:    v(1, 7),
			ToVersion:      v(2, 0),
			PropertyName:   "agent",
			ChangeType:     ChangeRemoved,
			IsBreaking:     true,
			Severity:       SeverityHigh,
			AutoMigratable: false,
			MigrationHint:  "Agent type selection was removed; the tools agent is the only variant",
		},
	},
	"nodes-langchain.openAi": {
		{
			NodeType:       "nodes-langchain.openAi",
			FromVersion:    v(1, 0),
			ToVersion:      v(1, 8),
			PropertyName:   "model",
			ChangeType:     ChangeTypeChanged,
			IsBreaking:     true,
			Severity:       SeverityMedium,
			AutoMigratable: false,
			MigrationHint:  "model is a resource locator now; re-select the model",
		},
	},
}
