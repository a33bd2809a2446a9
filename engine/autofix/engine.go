package autofix

import (
	"context"
	"fmt"

	"github.com/n8nkit/n8nctl/engine/catalog"
	"github.com/n8nkit/n8nctl/engine/core"
	"github.com/n8nkit/n8nctl/engine/migrate"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/logger"
)

// Engine generates and applies fixes, consulting the catalog and the
// breaking-change registry.
type Engine struct {
	catalog *catalog.Catalog
}

// NewEngine builds a fix engine over the catalog.
func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{catalog: cat}
}

// generator produces fixes for one concern against the working copy. When
// applying, each generator's fixes are applied before the next generator
// runs so later generators see the updated document.
type generator struct {
	fixType FixType
	run     func(ctx context.Context, e *Engine, w *workflow.Workflow, issues *validate.Result) ([]FixOperation, error)
}

var generators = []generator{
	{FixExpressionFormat, genExpressionFormat},
	{FixSwitchOptions, genSwitchOptions},
	{FixWebhookMissingPath, genWebhookPath},
	{FixNodeTypeCorrection, genNodeTypeCorrection},
	{FixTypeVersionCorrection, genTypeVersionCorrection},
	{FixErrorOutputConfig, genErrorOutputConfig},
	{FixTypeVersionUpgrade, genTypeVersionUpgrade},
	{FixVersionMigration, genVersionMigration},
}

// Run executes the fix pipeline. The input document is never mutated: all
// work happens on a deep copy, returned only when fixes were applied.
// Preview runs are pure: identical inputs yield identical fixes.
func (e *Engine) Run(ctx context.Context, doc *workflow.Document, issues *validate.Result, opts Options) (*Result, error) {
	if opts.ConfidenceThreshold == "" {
		opts.ConfidenceThreshold = ConfidenceLow
	}
	if opts.MaxFixes <= 0 {
		opts.MaxFixes = 50
	}
	working, err := doc.Workflow.Clone()
	if err != nil {
		return nil, fmt.Errorf("autofix: %w", err)
	}

	result := &Result{
		Fixes: []FixOperation{},
		Stats: Stats{ByConfidence: map[string]int{}, ByType: map[string]int{}},
	}
	requested := fixTypeSet(opts.FixTypes)
	for _, gen := range generators {
		if requested != nil && !requested[gen.fixType] {
			continue
		}
		if gen.fixType == FixTypeVersionUpgrade && !opts.UpgradeVersions && requested == nil {
			continue
		}
		if gen.fixType == FixVersionMigration && !opts.UpgradeVersions && requested == nil {
			continue
		}
		fixes, err := gen.run(ctx, e, working, issues)
		if err != nil {
			return nil, fmt.Errorf("autofix: %s: %w", gen.fixType, err)
		}
		for _, fix := range fixes {
			if len(result.Fixes) >= opts.MaxFixes {
				break
			}
			if confidenceRank(fix.Confidence) < confidenceRank(opts.ConfidenceThreshold) {
				continue
			}
			result.Fixes = append(result.Fixes, fix)
			result.Stats.ByConfidence[string(fix.Confidence)]++
			result.Stats.ByType[string(fix.FixType)]++
			if opts.Apply {
				if e.applyFix(working, fix, result) {
					result.AppliedCount++
				} else {
					result.SkippedCount++
				}
			}
		}
	}
	if opts.Apply {
		result.Workflow = working
	}
	result.Summary = summarize(result, opts.Apply)
	logger.FromContext(ctx).Debug("autofix finished",
		"fixes", len(result.Fixes), "applied", result.AppliedCount, "skipped", result.SkippedCount)
	return result, nil
}

// applyFix mutates the working copy for one fix. version-migration entries
// are guidance only and MUST never be applied: doing so would corrupt the
// node's typeVersion.
func (e *Engine) applyFix(w *workflow.Workflow, fix FixOperation, result *Result) bool {
	if fix.FixType == FixVersionMigration {
		return false
	}
	n, ok := w.GetNode(fix.NodeName)
	if !ok {
		return false
	}
	switch fix.FixType {
	case FixExpressionFormat:
		return setParameterPath(n, fix.Field, fix.After)
	case FixSwitchOptions:
		return setParameterPath(n, fix.Field, fix.After)
	case FixWebhookMissingPath:
		return applyWebhookFix(n, fix)
	case FixNodeTypeCorrection:
		after, ok := fix.After.(string)
		if !ok {
			return false
		}
		n.Type = after
		return true
	case FixTypeVersionCorrection:
		after, ok := toFloat(fix.After)
		if !ok {
			return false
		}
		n.TypeVersion = after
		return true
	case FixErrorOutputConfig:
		after, ok := fix.After.(string)
		if !ok {
			return false
		}
		n.OnError = after
		return true
	case FixTypeVersionUpgrade:
		after, ok := toFloat(fix.After)
		if !ok {
			return false
		}
		migration := migrate.MigrateNode(n, core.VersionFromNumber(after))
		result.Guidance = append(result.Guidance, guidanceFor(n, migration))
		return true
	default:
		return false
	}
}

func guidanceFor(n *workflow.Node, m *migrate.Result) PostUpdateGuidance {
	g := PostUpdateGuidance{
		NodeName:        n.Name,
		MigrationStatus: MigrationComplete,
		Confidence:      ConfidenceHigh,
		RequiredActions: []string{},
		EstimatedTime:   "none",
	}
	if len(m.RemainingIssues) > 0 {
		g.MigrationStatus = MigrationRequiresReview
		g.Confidence = ConfidenceMedium
		g.EstimatedTime = "5-15 minutes"
		for _, ch := range m.RemainingIssues {
			action := ch.MigrationHint
			if action == "" {
				action = fmt.Sprintf("review property %q (%s)", ch.PropertyName, ch.ChangeType)
			}
			g.RequiredActions = append(g.RequiredActions, action)
		}
	}
	return g
}

func summarize(r *Result, applied bool) string {
	if len(r.Fixes) == 0 {
		return "no fixable issues found"
	}
	if applied {
		return fmt.Sprintf("%d fix(es) generated, %d applied, %d skipped",
			len(r.Fixes), r.AppliedCount, r.SkippedCount)
	}
	return fmt.Sprintf("%d fix(es) available; run with --apply to write them", len(r.Fixes))
}

func fixTypeSet(types []FixType) map[FixType]bool {
	if len(types) == 0 {
		return nil
	}
	set := make(map[FixType]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return set
}
