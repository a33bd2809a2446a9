package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/n8nkit/n8nctl/engine/catalog"
	"github.com/n8nkit/n8nctl/engine/similarity"
	"github.com/n8nkit/n8nctl/engine/workflow"
)

const suggestionConfidenceFloor = 0.5

var resourceLocatorModes = map[string]bool{"id": true, "name": true, "url": true}

// checkNodeConfig validates one node against its catalog definition.
func (v *Validator) checkNodeConfig(ctx context.Context, w *workflow.Workflow, n *workflow.Node, index int) ([]Issue, error) {
	if n.Type == "" {
		return nil, nil
	}
	def, err := v.catalog.Get(ctx, n.Type)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return v.unknownNodeType(ctx, n, index)
	}
	var issues []Issue
	issues = append(issues, v.checkTypeVersion(n, def, index)...)
	issues = append(issues, checkProperties(n, def, index)...)
	issues = append(issues, checkSecurity(n, index)...)
	return issues, nil
}

func (v *Validator) unknownNodeType(ctx context.Context, n *workflow.Node, index int) ([]Issue, error) {
	issue := Issue{
		Code:     CodeUnknownNodeType,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("node %q has unknown type %q", n.Name, n.Type),
		Location: Location{
			NodeName:  n.Name,
			NodeID:    n.ID,
			NodeType:  n.Type,
			NodeIndex: intPtr(index),
			Path:      fmt.Sprintf("nodes[%d].type", index),
		},
		Context: map[string]any{"value": n.Type},
	}
	candidates, err := v.catalog.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range similarity.Suggest(n.Type, candidates, 3) {
		if s.Confidence >= suggestionConfidenceFloor {
			issue.Suggestions = append(issue.Suggestions, s)
		}
	}
	return []Issue{issue}, nil
}

func (v *Validator) checkTypeVersion(n *workflow.Node, def *catalog.NodeDefinition, index int) []Issue {
	latest, err := def.LatestVersion()
	if err != nil || n.TypeVersion == 0 {
		return nil
	}
	current := n.Version()
	loc := Location{
		NodeName:  n.Name,
		NodeID:    n.ID,
		NodeType:  n.Type,
		NodeIndex: intPtr(index),
		Path:      fmt.Sprintf("nodes[%d].typeVersion", index),
	}
	if current.GreaterThan(latest) {
		return []Issue{{
			Code:     CodeTypeVersionExceedsMax,
			Severity: SeverityError,
			Message:  fmt.Sprintf("node %q typeVersion %s exceeds the latest known version %s", n.Name, current, latest),
			Location: loc,
			Context:  map[string]any{"value": current.String(), "expected": latest.String()},
		}}
	}
	if current.LessThan(latest) {
		return []Issue{{
			Code:     CodeOutdatedTypeVersion,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("node %q typeVersion %s is behind the latest version %s", n.Name, current, latest),
			Location: loc,
			Context:  map[string]any{"value": current.String(), "expected": latest.String()},
		}}
	}
	return nil
}

// checkProperties computes the active property set from displayOptions and
// validates required presence, primitive types and option membership.
func checkProperties(n *workflow.Node, def *catalog.NodeDefinition, index int) []Issue {
	var issues []Issue
	for i := range def.Properties {
		prop := &def.Properties[i]
		if !propertyActive(prop, n.Parameters, def) {
			continue
		}
		value, present := n.Parameters[prop.Name]
		path := fmt.Sprintf("nodes[%d].parameters.%s", index, prop.Name)
		loc := Location{
			NodeName:  n.Name,
			NodeID:    n.ID,
			NodeType:  n.Type,
			NodeIndex: intPtr(index),
			Path:      path,
		}
		if !present || value == nil || value == "" {
			if prop.Required {
				issues = append(issues, Issue{
					Code:     CodeMissingRequiredProperty,
					Severity: SeverityError,
					Message:  fmt.Sprintf("node %q is missing required property %q", n.Name, prop.Name),
					Location: loc,
					Context:  map[string]any{"expectedSchema": prop.Type, "schemaPath": prop.Name},
				})
			}
			continue
		}
		issues = append(issues, checkPropertyValue(prop, value, loc, n)...)
	}
	return issues
}

// propertyActive applies displayOptions.show/hide against the node's
// parameters. A controlling property that is absent falls back to its
// declared default.
func propertyActive(prop *catalog.PropertySchema, params map[string]any, def *catalog.NodeDefinition) bool {
	if prop.DisplayOptions == nil {
		return true
	}
	for name, allowed := range prop.DisplayOptions.Show {
		if !valueMatches(controllingValue(name, params, def), allowed) {
			return false
		}
	}
	for name, hidden := range prop.DisplayOptions.Hide {
		if valueMatches(controllingValue(name, params, def), hidden) {
			return false
		}
	}
	return true
}

func controllingValue(name string, params map[string]any, def *catalog.NodeDefinition) any {
	if v, ok := params[name]; ok {
		return v
	}
	if p, ok := def.Property(name); ok {
		return p.Default
	}
	return nil
}

func valueMatches(value any, allowed []any) bool {
	for _, a := range allowed {
		if looseEqual(value, a) {
			return true
		}
	}
	return false
}

// looseEqual compares JSON scalars across the int/float divide.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func checkPropertyValue(prop *catalog.PropertySchema, value any, loc Location, n *workflow.Node) []Issue {
	switch prop.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return typeMismatch(prop, value, "string", loc, n)
		}
	case "number":
		if _, ok := toFloat(value); !ok {
			return typeMismatch(prop, value, "number", loc, n)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeMismatch(prop, value, "boolean", loc, n)
		}
	case "options":
		return checkOptionValue(prop, value, loc, n, false)
	case "multiOptions":
		return checkOptionValue(prop, value, loc, n, true)
	case "resourceLocator":
		return checkResourceLocator(prop, value, loc, n)
	}
	return nil
}

func typeMismatch(prop *catalog.PropertySchema, value any, expected string, loc Location, n *workflow.Node) []Issue {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "=") {
		// Expression values resolve at runtime; the static type is unknowable.
		return nil
	}
	return []Issue{{
		Code:     CodeTypeMismatch,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("node %q property %q expects %s, got %T", n.Name, prop.Name, expected, value),
		Location: loc,
		Context:  map[string]any{"value": value, "expected": expected},
	}}
}

func checkOptionValue(prop *catalog.PropertySchema, value any, loc Location, n *workflow.Node, multi bool) []Issue {
	if len(prop.Options) == 0 {
		return nil
	}
	values := []any{value}
	if multi {
		list, ok := value.([]any)
		if !ok {
			return typeMismatch(prop, value, "array", loc, n)
		}
		values = list
	}
	var issues []Issue
	for _, v := range values {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "=") {
			continue
		}
		if !optionAllowed(prop, v) {
			issues = append(issues, Issue{
				Code:     CodeInvalidOption,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q property %q value %v is not an allowed option", n.Name, prop.Name, v),
				Location: loc,
				Context:  map[string]any{"value": v, "expected": optionValues(prop)},
			})
		}
	}
	return issues
}

func optionAllowed(prop *catalog.PropertySchema, value any) bool {
	for _, opt := range prop.Options {
		if looseEqual(opt.Value, value) {
			return true
		}
	}
	return false
}

func optionValues(prop *catalog.PropertySchema) []any {
	out := make([]any, 0, len(prop.Options))
	for _, opt := range prop.Options {
		out = append(out, opt.Value)
	}
	return out
}

func checkResourceLocator(prop *catalog.PropertySchema, value any, loc Location, n *workflow.Node) []Issue {
	m, ok := value.(map[string]any)
	if !ok {
		return typeMismatch(prop, value, "resourceLocator", loc, n)
	}
	mode, _ := m["mode"].(string)
	if !resourceLocatorModes[mode] {
		return []Issue{{
			Code:     CodeInvalidOption,
			Severity: SeverityError,
			Message:  fmt.Sprintf("node %q property %q has invalid resource locator mode %q", n.Name, prop.Name, mode),
			Location: loc,
			Context:  map[string]any{"value": mode, "expected": []any{"id", "name", "url"}},
		}}
	}
	if v, ok := m["value"]; !ok || v == nil || v == "" {
		return []Issue{{
			Code:     CodeMissingRequiredProperty,
			Severity: SeverityError,
			Message:  fmt.Sprintf("node %q property %q resource locator has no value", n.Name, prop.Name),
			Location: loc,
		}}
	}
	return nil
}

// checkSecurity flags raw eval/exec in code nodes.
func checkSecurity(n *workflow.Node, index int) []Issue {
	local := strings.ToLower(workflow.LocalName(n.Type))
	if local != "code" && local != "function" && local != "functionitem" {
		return nil
	}
	var issues []Issue
	for _, param := range []string{"jsCode", "pythonCode", "functionCode"} {
		code, ok := n.Parameters[param].(string)
		if !ok {
			continue
		}
		if strings.Contains(code, "eval(") || strings.Contains(code, "exec(") {
			issues = append(issues, Issue{
				Code:     CodeEnhancedSecurity,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q uses eval/exec in %s; prefer safer constructs", n.Name, param),
				Location: Location{
					NodeName:  n.Name,
					NodeID:    n.ID,
					NodeType:  n.Type,
					NodeIndex: intPtr(index),
					Path:      fmt.Sprintf("nodes[%d].parameters.%s", index, param),
				},
			})
		}
	}
	return issues
}
