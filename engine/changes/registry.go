// Package changes is the compiled-in registry of breaking changes between
// node type versions, with upgrade analysis.
package changes

import (
	"fmt"
	"sort"

	"github.com/n8nkit/n8nctl/engine/core"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

// ChangeType classifies what happened to a property between versions.
type ChangeType string

const (
	ChangeAdded           ChangeType = "added"
	ChangeRemoved         ChangeType = "removed"
	ChangeRenamed         ChangeType = "renamed"
	ChangeTypeChanged     ChangeType = "typeChanged"
	ChangeDefaultChanged  ChangeType = "defaultChanged"
	ChangeSemanticChanged ChangeType = "semanticChanged"
)

// Severity grades the impact of a change.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// BreakingChange is one recorded change between two versions of a node type.
type BreakingChange struct {
	NodeType       string       `json:"nodeType"`
	FromVersion    core.Version `json:"-"`
	ToVersion      core.Version `json:"-"`
	PropertyName   string       `json:"propertyName"`
	ChangeType     ChangeType   `json:"changeType"`
	IsBreaking     bool         `json:"isBreaking"`
	Severity       Severity     `json:"severity"`
	AutoMigratable bool         `json:"autoMigratable"`
	MigrationHint  string       `json:"migrationHint,omitempty"`
	// NewName carries the target name for renamed properties.
	NewName string `json:"newName,omitempty"`
	// NewDefault carries the value written for added/defaultChanged
	// properties when the migration is mechanical.
	NewDefault any `json:"newDefault,omitempty"`
}

// Analysis is the result of comparing two versions of a node type.
type Analysis struct {
	NodeType            string           `json:"nodeType"`
	FromVersion         string           `json:"fromVersion"`
	ToVersion           string           `json:"toVersion"`
	HasBreaking         bool             `json:"hasBreakingChanges"`
	OverallSeverity     Severity         `json:"overallSeverity,omitempty"`
	Changes             []BreakingChange `json:"changes"`
	AutoMigratableCount int              `json:"autoMigratableCount"`
	ManualRequiredCount int              `json:"manualRequiredCount"`
	Recommendations     []string         `json:"recommendations"`
}

// LatestVersion returns the highest version the registry tracks for the node
// type, or zero when untracked.
func LatestVersion(nodeType string) core.Version {
	var latest core.Version
	for _, ch := range registryFor(nodeType) {
		if ch.ToVersion.GreaterThan(latest) {
			latest = ch.ToVersion
		}
	}
	return latest
}

// TrackedVersions returns the distinct versions the registry knows for the
// node type, ascending.
func TrackedVersions(nodeType string) []core.Version {
	seen := make(map[string]core.Version)
	for _, ch := range registryFor(nodeType) {
		seen[ch.FromVersion.String()] = ch.FromVersion
		seen[ch.ToVersion.String()] = ch.ToVersion
	}
	out := make([]core.Version, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}

// ChangesInRange collects registry entries whose target version lies in the
// half-open interval (from, to], in registry order.
func ChangesInRange(nodeType string, from, to core.Version) []BreakingChange {
	var out []BreakingChange
	for _, ch := range registryFor(nodeType) {
		if ch.ToVersion.GreaterThan(from) && !ch.ToVersion.GreaterThan(to) {
			out = append(out, ch)
		}
	}
	return out
}

// AnalyzeUpgrade summarizes every change in (from, to] for the node type.
func AnalyzeUpgrade(nodeType string, from, to core.Version) *Analysis {
	changes := ChangesInRange(nodeType, from, to)
	analysis := &Analysis{
		NodeType:        workflow.NormalizeNodeType(nodeType),
		FromVersion:     from.String(),
		ToVersion:       to.String(),
		Changes:         changes,
		Recommendations: []string{},
	}
	for _, ch := range changes {
		if ch.IsBreaking {
			analysis.HasBreaking = true
		}
		if severityRank(ch.Severity) > severityRank(analysis.OverallSeverity) {
			analysis.OverallSeverity = ch.Severity
		}
		if ch.AutoMigratable {
			analysis.AutoMigratableCount++
		} else {
			analysis.ManualRequiredCount++
		}
	}
	analysis.Recommendations = buildRecommendations(analysis)
	return analysis
}

func buildRecommendations(a *Analysis) []string {
	recs := []string{}
	if len(a.Changes) == 0 {
		recs = append(recs, fmt.Sprintf("No tracked changes between version %s and %s.", a.FromVersion, a.ToVersion))
		return recs
	}
	if a.AutoMigratableCount > 0 {
		recs = append(recs, fmt.Sprintf("%d change(s) can be migrated automatically with autofix --upgrade-versions.", a.AutoMigratableCount))
	}
	if a.ManualRequiredCount > 0 {
		recs = append(recs, fmt.Sprintf("%d change(s) need manual review before upgrading.", a.ManualRequiredCount))
	}
	if a.OverallSeverity == SeverityHigh {
		recs = append(recs, "Test the workflow after upgrading: HIGH severity changes alter behavior.")
	}
	return recs
}

func registryFor(nodeType string) []BreakingChange {
	return registry[workflow.NormalizeNodeType(nodeType)]
}
