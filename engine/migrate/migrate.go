// Package migrate upgrades a node's typeVersion by applying the
// auto-migratable changes recorded in the breaking-change registry.
package migrate

import (
	"github.com/n8nkit/n8nctl/engine/changes"
	"github.com/n8nkit/n8nctl/engine/core"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

// AppliedMigration records one mechanical change made to a node.
type AppliedMigration struct {
	PropertyName string             `json:"propertyName"`
	ChangeType   changes.ChangeType `json:"changeType"`
	Description  string             `json:"description"`
}

// Result summarizes a node migration. RemainingIssues lists the
// non-auto-migratable changes in the upgraded range that need user
// attention.
type Result struct {
	NodeName          string                   `json:"nodeName"`
	FromVersion       string                   `json:"fromVersion"`
	ToVersion         string                   `json:"toVersion"`
	AppliedMigrations []AppliedMigration       `json:"appliedMigrations"`
	RemainingIssues   []changes.BreakingChange `json:"remainingIssues"`
}

// MigrateNode mutates the node in place, applying every auto-migratable
// change in (current, target] in registry order, then advances typeVersion.
func MigrateNode(n *workflow.Node, target core.Version) *Result {
	from := n.Version()
	result := &Result{
		NodeName:          n.Name,
		FromVersion:       from.String(),
		ToVersion:         target.String(),
		AppliedMigrations: []AppliedMigration{},
		RemainingIssues:   []changes.BreakingChange{},
	}
	for _, ch := range changes.ChangesInRange(n.Type, from, target) {
		if !ch.AutoMigratable {
			result.RemainingIssues = append(result.RemainingIssues, ch)
			continue
		}
		if applied, desc := applyChange(n, ch); applied {
			result.AppliedMigrations = append(result.AppliedMigrations, AppliedMigration{
				PropertyName: ch.PropertyName,
				ChangeType:   ch.ChangeType,
				Description:  desc,
			})
		}
	}
	n.TypeVersion = target.Number()
	return result
}

func applyChange(n *workflow.Node, ch changes.BreakingChange) (bool, string) {
	if n.Parameters == nil {
		n.Parameters = make(map[string]any)
	}
	switch ch.ChangeType {
	case changes.ChangeRenamed:
		if value, ok := n.Parameters[ch.PropertyName]; ok && ch.NewName != "" {
			delete(n.Parameters, ch.PropertyName)
			n.Parameters[ch.NewName] = value
			return true, "renamed " + ch.PropertyName + " to " + ch.NewName
		}
		return false, ""
	case changes.ChangeAdded:
		if _, ok := n.Parameters[ch.PropertyName]; !ok && ch.NewDefault != nil {
			n.Parameters[ch.PropertyName] = ch.NewDefault
			return true, "added " + ch.PropertyName + " with its default"
		}
		return false, ""
	case changes.ChangeDefaultChanged:
		if _, ok := n.Parameters[ch.PropertyName]; !ok && ch.NewDefault != nil {
			n.Parameters[ch.PropertyName] = ch.NewDefault
			return true, "pinned " + ch.PropertyName + " to the previous default"
		}
		return false, ""
	case changes.ChangeRemoved:
		if _, ok := n.Parameters[ch.PropertyName]; ok {
			delete(n.Parameters, ch.PropertyName)
			return true, "removed " + ch.PropertyName
		}
		return false, ""
	default:
		// typeChanged / semanticChanged have no mechanical remediation even
		// when flagged migratable; surface via the hint instead.
		return false, ""
	}
}
