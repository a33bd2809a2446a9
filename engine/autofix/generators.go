package autofix

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/n8nkit/n8nctl/engine/changes"
	"github.com/n8nkit/n8nctl/engine/core"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

// genExpressionFormat proposes the "=" prefix for every expression-format
// issue.
func genExpressionFormat(_ context.Context, _ *Engine, _ *workflow.Workflow, issues *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for _, iss := range issues.Issues {
		if iss.Code != validate.CodeExpressionMissingPrefix {
			continue
		}
		before, _ := iss.Context["value"].(string)
		after, _ := iss.Context["expected"].(string)
		if after == "" {
			after = "=" + before
		}
		fixes = append(fixes, FixOperation{
			NodeName:    iss.Location.NodeName,
			NodeID:      iss.Location.NodeID,
			FixType:     FixExpressionFormat,
			Field:       iss.Location.Path,
			Before:      before,
			After:       after,
			Confidence:  ConfidenceHigh,
			Description: "prefix expression with = so it is evaluated",
		})
	}
	return fixes, nil
}

// switchConditionDefaults are the option keys modern If/Switch rule
// conditions require.
var switchConditionDefaults = map[string]any{
	"caseSensitive":  true,
	"leftValue":      "",
	"typeValidation": "strict",
}

// genSwitchOptions repairs If/Switch v3+ rule plumbing: empty options maps,
// missing condition defaults, the conditions schema version, and
// fallbackOutput living under rules instead of options.
func genSwitchOptions(_ context.Context, _ *Engine, w *workflow.Workflow, _ *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for i, n := range w.Nodes {
		local := strings.ToLower(workflow.LocalName(n.Type))
		if (local != "switch" && local != "if") || n.Version().Major < 3 {
			continue
		}
		prefix := fmt.Sprintf("nodes[%d].parameters", i)
		if opts, ok := n.Parameters["options"].(map[string]any); ok && len(opts) == 0 {
			fixes = append(fixes, FixOperation{
				NodeName:    n.Name,
				NodeID:      n.ID,
				FixType:     FixSwitchOptions,
				Field:       prefix + ".options",
				Before:      map[string]any{},
				After:       nil,
				Confidence:  ConfidenceHigh,
				Description: "remove empty options object",
			})
		}
		fixes = append(fixes, conditionOptionFixes(n, i, prefix)...)
		fixes = append(fixes, fallbackOutputFixes(n, prefix)...)
	}
	return fixes, nil
}

func conditionOptionFixes(n *workflow.Node, _ int, prefix string) []FixOperation {
	rules, ok := n.Parameters["rules"].(map[string]any)
	if !ok {
		return nil
	}
	values, ok := rules["values"].([]any)
	if !ok {
		return nil
	}
	wantVersion := strings.EqualFold(workflow.LocalName(n.Type), "switch") &&
		!n.Version().LessThan(core.Version{Major: 3, Minor: 2})
	var fixes []FixOperation
	for vi, rv := range values {
		rule, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		conditions, ok := rule["conditions"].(map[string]any)
		if !ok {
			continue
		}
		options, _ := conditions["options"].(map[string]any)
		fixed := make(map[string]any, len(switchConditionDefaults)+1)
		for k, v := range options {
			fixed[k] = v
		}
		changed := false
		for k, v := range switchConditionDefaults {
			if _, ok := fixed[k]; !ok {
				fixed[k] = v
				changed = true
			}
		}
		if wantVersion {
			if _, ok := fixed["version"]; !ok {
				fixed["version"] = float64(2)
				changed = true
			}
		}
		if !changed {
			continue
		}
		fixes = append(fixes, FixOperation{
			NodeName:    n.Name,
			NodeID:      n.ID,
			FixType:     FixSwitchOptions,
			Field:       fmt.Sprintf("%s.rules.values[%d].conditions.options", prefix, vi),
			Before:      options,
			After:       fixed,
			Confidence:  ConfidenceHigh,
			Description: "fill required condition options",
		})
	}
	return fixes
}

func fallbackOutputFixes(n *workflow.Node, prefix string) []FixOperation {
	rules, ok := n.Parameters["rules"].(map[string]any)
	if !ok {
		return nil
	}
	fallback, ok := rules["fallbackOutput"]
	if !ok {
		return nil
	}
	return []FixOperation{
		{
			NodeName:    n.Name,
			NodeID:      n.ID,
			FixType:     FixSwitchOptions,
			Field:       prefix + ".options.fallbackOutput",
			Before:      nil,
			After:       fallback,
			Confidence:  ConfidenceHigh,
			Description: "move fallbackOutput under options",
		},
		{
			NodeName:    n.Name,
			NodeID:      n.ID,
			FixType:     FixSwitchOptions,
			Field:       prefix + ".rules.fallbackOutput",
			Before:      fallback,
			After:       nil,
			Confidence:  ConfidenceHigh,
			Description: "remove fallbackOutput from rules",
		},
	}
}

// webhookNamespace seeds deterministic webhook id regeneration so previews
// stay pure across invocations.
var webhookNamespace = uuid.MustParse("8a6e0804-2bd0-4672-b79d-d97027f9071a")

// genWebhookPath fills a webhook node's missing path from its webhookId and
// regenerates duplicate webhookIds, updating the path to match.
func genWebhookPath(_ context.Context, _ *Engine, w *workflow.Workflow, _ *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	seen := make(map[string]string)
	for _, n := range w.Nodes {
		local := strings.ToLower(workflow.LocalName(n.Type))
		if !strings.Contains(local, "webhook") || strings.Contains(local, "respond") {
			continue
		}
		webhookID := n.WebhookID
		if owner, dup := seen[webhookID]; webhookID != "" && dup {
			regenerated := uuid.NewSHA1(webhookNamespace, []byte(w.ID+"/"+n.Name)).String()
			fixes = append(fixes, FixOperation{
				NodeName:   n.Name,
				NodeID:     n.ID,
				FixType:    FixWebhookMissingPath,
				Field:      "webhookId",
				Before:     webhookID,
				After:      regenerated,
				Confidence: ConfidenceHigh,
				Description: fmt.Sprintf(
					"regenerate webhookId duplicated with node %q and update path", owner),
			})
			continue
		}
		if webhookID != "" {
			seen[webhookID] = n.Name
		}
		path, _ := n.Parameters["path"].(string)
		if path == "" && webhookID != "" {
			fixes = append(fixes, FixOperation{
				NodeName:    n.Name,
				NodeID:      n.ID,
				FixType:     FixWebhookMissingPath,
				Field:       "parameters.path",
				Before:      "",
				After:       webhookID,
				Confidence:  ConfidenceHigh,
				Description: "set missing webhook path from webhookId",
			})
		}
	}
	return fixes, nil
}

func applyWebhookFix(n *workflow.Node, fix FixOperation) bool {
	after, ok := fix.After.(string)
	if !ok {
		return false
	}
	switch fix.Field {
	case "webhookId":
		n.WebhookID = after
		if n.Parameters == nil {
			n.Parameters = make(map[string]any)
		}
		n.Parameters["path"] = after
		return true
	case "parameters.path":
		if n.Parameters == nil {
			n.Parameters = make(map[string]any)
		}
		n.Parameters["path"] = after
		return true
	default:
		return false
	}
}

// genNodeTypeCorrection replaces unknown node types with the top suggestion
// when the similarity engine grades it auto-fixable.
func genNodeTypeCorrection(_ context.Context, _ *Engine, _ *workflow.Workflow, issues *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for _, iss := range issues.Issues {
		if iss.Code != validate.CodeUnknownNodeType || len(iss.Suggestions) == 0 {
			continue
		}
		top := iss.Suggestions[0]
		if !top.AutoFixable {
			continue
		}
		fixes = append(fixes, FixOperation{
			NodeName:    iss.Location.NodeName,
			NodeID:      iss.Location.NodeID,
			FixType:     FixNodeTypeCorrection,
			Field:       "type",
			Before:      iss.Location.NodeType,
			After:       top.NodeType,
			Confidence:  ConfidenceHigh,
			Description: fmt.Sprintf("correct unknown node type to %s (%s)", top.NodeType, top.Reason),
		})
	}
	return fixes, nil
}

// genTypeVersionCorrection clamps typeVersions above the catalog maximum.
func genTypeVersionCorrection(ctx context.Context, e *Engine, w *workflow.Workflow, _ *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for _, n := range w.Nodes {
		def, err := e.catalog.Get(ctx, n.Type)
		if err != nil {
			return nil, err
		}
		if def == nil || n.TypeVersion == 0 {
			continue
		}
		latest, err := def.LatestVersion()
		if err != nil {
			continue
		}
		if n.Version().GreaterThan(latest) {
			fixes = append(fixes, FixOperation{
				NodeName:    n.Name,
				NodeID:      n.ID,
				FixType:     FixTypeVersionCorrection,
				Field:       "typeVersion",
				Before:      n.TypeVersion,
				After:       latest.Number(),
				Confidence:  ConfidenceMedium,
				Description: fmt.Sprintf("clamp typeVersion to catalog maximum %s", latest),
			})
		}
	}
	return fixes, nil
}

// onErrorLiterals are the accepted values plus normalizable aliases.
var onErrorLiterals = map[string]string{
	"stopworkflow":          "stopWorkflow",
	"stop":                  "stopWorkflow",
	"continueregularoutput": "continueRegularOutput",
	"continue":              "continueRegularOutput",
	"continueoutput":        "continueRegularOutput",
	"continueerroroutput":   "continueErrorOutput",
	"continueerror":         "continueErrorOutput",
}

// genErrorOutputConfig normalizes onError to one of the accepted literals.
func genErrorOutputConfig(_ context.Context, _ *Engine, w *workflow.Workflow, _ *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for _, n := range w.Nodes {
		if n.OnError == "" {
			continue
		}
		canonical, ok := onErrorLiterals[strings.ToLower(strings.TrimSpace(n.OnError))]
		if !ok || canonical == n.OnError {
			continue
		}
		fixes = append(fixes, FixOperation{
			NodeName:    n.Name,
			NodeID:      n.ID,
			FixType:     FixErrorOutputConfig,
			Field:       "onError",
			Before:      n.OnError,
			After:       canonical,
			Confidence:  ConfidenceMedium,
			Description: fmt.Sprintf("normalize onError to %s", canonical),
		})
	}
	return fixes, nil
}

// genTypeVersionUpgrade raises outdated typeVersions to the catalog current.
// The actual parameter migration is delegated to the migration engine at
// apply time.
func genTypeVersionUpgrade(ctx context.Context, e *Engine, w *workflow.Workflow, _ *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for _, n := range w.Nodes {
		def, err := e.catalog.Get(ctx, n.Type)
		if err != nil {
			return nil, err
		}
		if def == nil || n.TypeVersion == 0 {
			continue
		}
		latest, err := def.LatestVersion()
		if err != nil {
			continue
		}
		if n.Version().LessThan(latest) {
			fixes = append(fixes, FixOperation{
				NodeName:    n.Name,
				NodeID:      n.ID,
				FixType:     FixTypeVersionUpgrade,
				Field:       "typeVersion",
				Before:      n.TypeVersion,
				After:       latest.Number(),
				Confidence:  ConfidenceHigh,
				Description: fmt.Sprintf("upgrade typeVersion from %s to %s", n.Version(), latest),
			})
		}
	}
	return fixes, nil
}

// genVersionMigration emits guidance entries for each breaking change in the
// upgraded range. These are informational only and are never applied.
func genVersionMigration(ctx context.Context, e *Engine, w *workflow.Workflow, _ *validate.Result) ([]FixOperation, error) {
	var fixes []FixOperation
	for _, n := range w.Nodes {
		def, err := e.catalog.Get(ctx, n.Type)
		if err != nil {
			return nil, err
		}
		if def == nil || n.TypeVersion == 0 {
			continue
		}
		latest, err := def.LatestVersion()
		if err != nil || !n.Version().LessThan(latest) {
			continue
		}
		for _, ch := range changes.ChangesInRange(n.Type, n.Version(), latest) {
			desc := ch.MigrationHint
			if desc == "" {
				desc = fmt.Sprintf("property %q: %s", ch.PropertyName, ch.ChangeType)
			}
			fixes = append(fixes, FixOperation{
				NodeName:    n.Name,
				NodeID:      n.ID,
				FixType:     FixVersionMigration,
				Field:       "parameters." + ch.PropertyName,
				Before:      n.Version().String(),
				After:       latest.String(),
				Confidence:  ConfidenceLow,
				Description: desc,
			})
		}
	}
	return fixes, nil
}

// setParameterPath writes a value at a node-relative or absolute issue path.
// A nil value deletes the key. Writes create missing intermediate maps so a
// move fix can land before its paired delete; deletes never create anything.
func setParameterPath(n *workflow.Node, field string, value any) bool {
	segs := paramSegments(field)
	if len(segs) == 0 {
		return false
	}
	if n.Parameters == nil {
		n.Parameters = make(map[string]any)
	}
	var current any = n.Parameters
	for _, seg := range segs[:len(segs)-1] {
		next, ok := stepInto(current, seg)
		if !ok {
			if value == nil {
				return false
			}
			next, ok = createStep(current, seg)
			if !ok {
				return false
			}
		}
		current = next
	}
	last := segs[len(segs)-1]
	m, ok := current.(map[string]any)
	if !ok {
		return false
	}
	if value == nil {
		delete(m, last)
	} else {
		m[last] = value
	}
	return true
}

func stepInto(current any, seg string) (any, bool) {
	if idx, err := strconv.Atoi(seg); err == nil {
		list, ok := current.([]any)
		if !ok || idx < 0 || idx >= len(list) {
			return nil, false
		}
		return list[idx], true
	}
	m, ok := current.(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := m[seg]
	if !ok {
		return nil, false
	}
	return child, true
}

// createStep inserts an empty map for an absent key segment. Index segments
// and occupied keys are never created over.
func createStep(current any, seg string) (any, bool) {
	if _, err := strconv.Atoi(seg); err == nil {
		return nil, false
	}
	m, ok := current.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, present := m[seg]; present {
		return nil, false
	}
	child := make(map[string]any)
	m[seg] = child
	return child, true
}

// paramSegments strips any nodes[i].parameters prefix and splits the rest
// into path segments, turning [i] indexes into their own segments.
func paramSegments(field string) []string {
	normalized := strings.ReplaceAll(field, "[", ".")
	normalized = strings.ReplaceAll(normalized, "]", "")
	segs := strings.Split(normalized, ".")
	for i, seg := range segs {
		if seg == "parameters" {
			return segs[i+1:]
		}
	}
	return segs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
