// Package validate runs structural and per-node configuration checks over a
// workflow document, producing located issues filtered by profile.
package validate

import (
	"sort"

	"github.com/n8nkit/n8nctl/engine/similarity"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

// Severity grades an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue codes form a closed, stable taxonomy.
const (
	CodeParseError          = "PARSE_ERROR"
	CodeInvalidJSON         = "INVALID_JSON"
	CodeRepairFailed        = "REPAIR_FAILED"
	CodeMissingProperty     = "MISSING_PROPERTY"
	CodeMissingNodeName     = "MISSING_NODE_NAME"
	CodeDuplicateNodeName   = "DUPLICATE_NODE_NAME"
	CodeConnectionDangling  = "CONNECTION_DANGLING"
	CodeNoTriggerWhenActive = "NO_TRIGGER_WHEN_ACTIVE"

	CodeUnknownNodeType       = "UNKNOWN_NODE_TYPE"
	CodeInvalidNodeTypeFormat = "INVALID_NODE_TYPE_FORMAT"

	CodeMissingRequiredProperty = "MISSING_REQUIRED_PROPERTY"
	CodeInvalidOption           = "INVALID_OPTION"
	CodeTypeMismatch            = "TYPE_MISMATCH"
	CodeExpressionMissingPrefix = "EXPRESSION_MISSING_PREFIX"
	CodeExpressionMixedLiteral  = "EXPRESSION_MIXED_LITERAL"

	CodeOutdatedTypeVersion   = "OUTDATED_TYPE_VERSION"
	CodeTypeVersionExceedsMax = "TYPEVERSION_EXCEEDS_MAX"
	CodeBreakingChange        = "BREAKING_CHANGE"

	CodeMissingLanguageModel       = "MISSING_LANGUAGE_MODEL"
	CodeTooManyLanguageModels      = "TOO_MANY_LANGUAGE_MODELS"
	CodeFallbackMissingSecondModel = "FALLBACK_MISSING_SECOND_MODEL"
	CodeMissingPromptText          = "MISSING_PROMPT_TEXT"
	CodeStreamingWrongTarget       = "STREAMING_WRONG_TARGET"
	CodeStreamingWithMainOutput    = "STREAMING_WITH_MAIN_OUTPUT"
	CodeMissingOutputParser        = "MISSING_OUTPUT_PARSER"
	CodeMultipleMemoryConnections  = "MULTIPLE_MEMORY_CONNECTIONS"
	CodeMissingToolDescription     = "MISSING_TOOL_DESCRIPTION"

	CodeEnhancedSecurity = "ENHANCED_SECURITY"

	CodeInvalidOperationType    = "INVALID_OPERATION_TYPE"
	CodeTargetNodeMissing       = "TARGET_NODE_MISSING"
	CodeNameCollision           = "NAME_COLLISION"
	CodeConnectionTargetMissing = "CONNECTION_TARGET_MISSING"
)

// Location pins an issue to a node and a logical path over the document.
type Location struct {
	NodeName  string `json:"nodeName,omitempty"`
	NodeID    string `json:"nodeId,omitempty"`
	NodeType  string `json:"nodeType,omitempty"`
	NodeIndex *int   `json:"nodeIndex,omitempty"`
	Path      string `json:"path,omitempty"`
}

// Issue is one located validation finding.
type Issue struct {
	Code           string                   `json:"code"`
	Severity       Severity                 `json:"severity"`
	Message        string                   `json:"message"`
	Location       Location                 `json:"location,omitempty"`
	SourceLocation *workflow.SourceLocation `json:"sourceLocation,omitempty"`
	SourceSnippet  *workflow.SourceSnippet  `json:"sourceSnippet,omitempty"`
	Context        map[string]any           `json:"context,omitempty"`
	Suggestions    []similarity.Suggestion  `json:"suggestions,omitempty"`
}

// Result is the collected outcome of a validation run.
type Result struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// Errors returns the error-severity issues.
func (r *Result) Errors() []Issue { return r.bySeverity(SeverityError) }

// Warnings returns the warning-severity issues.
func (r *Result) Warnings() []Issue { return r.bySeverity(SeverityWarning) }

// Infos returns the info-severity issues.
func (r *Result) Infos() []Issue { return r.bySeverity(SeverityInfo) }

func (r *Result) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, iss := range r.Issues {
		if iss.Severity == s {
			out = append(out, iss)
		}
	}
	return out
}

// sortIssues orders issues stably: by node index, then path, then code.
func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		ai, bi := indexOrMax(a.Location.NodeIndex), indexOrMax(b.Location.NodeIndex)
		if ai != bi {
			return ai < bi
		}
		if a.Location.Path != b.Location.Path {
			return a.Location.Path < b.Location.Path
		}
		return a.Code < b.Code
	})
}

func indexOrMax(i *int) int {
	if i == nil {
		return int(^uint(0) >> 1)
	}
	return *i
}

func intPtr(i int) *int { return &i }
