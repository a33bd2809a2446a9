// Package autofix turns validation issues into a confidence-graded, ordered
// set of fixes and optionally applies them. Fixes must never corrupt a
// workflow: anything below mechanical certainty stays preview-only.
package autofix

import "github.com/n8nkit/n8nctl/engine/workflow"

// Confidence grades how safe a fix is to apply mechanically.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func confidenceRank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// FixType is the closed set of fix kinds.
type FixType string

const (
	FixExpressionFormat      FixType = "expression-format"
	FixTypeVersionCorrection FixType = "typeversion-correction"
	FixTypeVersionUpgrade    FixType = "typeversion-upgrade"
	FixVersionMigration      FixType = "version-migration"
	FixErrorOutputConfig     FixType = "error-output-config"
	FixNodeTypeCorrection    FixType = "node-type-correction"
	FixWebhookMissingPath    FixType = "webhook-missing-path"
	FixSwitchOptions         FixType = "switch-options"
)

// FixOperation describes one proposed change to a workflow.
type FixOperation struct {
	NodeName    string     `json:"nodeName"`
	NodeID      string     `json:"nodeId,omitempty"`
	FixType     FixType    `json:"fixType"`
	Field       string     `json:"field"`
	Before      any        `json:"before"`
	After       any        `json:"after"`
	Confidence  Confidence `json:"confidence"`
	Description string     `json:"description"`
}

// Options tunes a fix run.
type Options struct {
	// FixTypes restricts generation to the listed kinds when non-empty.
	FixTypes []FixType
	// ConfidenceThreshold discards fixes graded below it.
	ConfidenceThreshold Confidence
	// MaxFixes caps the total number of fixes kept.
	MaxFixes int
	// Apply mutates the workflow; otherwise the run is a pure preview.
	Apply bool
	// UpgradeVersions enables typeversion-upgrade generation.
	UpgradeVersions bool
}

// Stats aggregates the kept fixes.
type Stats struct {
	ByConfidence map[string]int `json:"byConfidence"`
	ByType       map[string]int `json:"byType"`
}

// MigrationStatus of a post-update guidance record.
const (
	MigrationComplete       = "complete"
	MigrationRequiresReview = "requires-review"
)

// PostUpdateGuidance is produced for each applied typeversion-upgrade.
type PostUpdateGuidance struct {
	NodeName        string     `json:"nodeName"`
	MigrationStatus string     `json:"migrationStatus"`
	Confidence      Confidence `json:"confidence"`
	RequiredActions []string   `json:"requiredActions"`
	EstimatedTime   string     `json:"estimatedTime"`
}

// Result is the outcome of a fix run.
type Result struct {
	// Workflow is the mutated document when fixes were applied.
	Workflow     *workflow.Workflow   `json:"workflow,omitempty"`
	Fixes        []FixOperation       `json:"fixes"`
	Stats        Stats                `json:"stats"`
	Summary      string               `json:"summary"`
	AppliedCount int                  `json:"appliedCount"`
	SkippedCount int                  `json:"skippedCount"`
	Guidance     []PostUpdateGuidance `json:"postUpdateGuidance,omitempty"`
}
