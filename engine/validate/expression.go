package validate

import (
	"fmt"
	"strings"

	"github.com/n8nkit/n8nctl/engine/workflow"
)

// maxParameterDepth bounds recursion over parameter trees.
const maxParameterDepth = 200

// checkExpressions walks the node's parameter tree looking for expression
// strings that lack the leading "=" marker.
func checkExpressions(n *workflow.Node, index int) []Issue {
	var issues []Issue
	walkParameters(n.Parameters, fmt.Sprintf("nodes[%d].parameters", index), 0, func(path string, value any) {
		s, ok := value.(string)
		if !ok {
			return
		}
		issue := expressionIssue(n, index, path, s)
		if issue != nil {
			issues = append(issues, *issue)
		}
	})
	return issues
}

func expressionIssue(n *workflow.Node, index int, path, s string) *Issue {
	if strings.HasPrefix(s, "=") || !strings.Contains(s, "{{") {
		return nil
	}
	loc := Location{
		NodeName:  n.Name,
		NodeID:    n.ID,
		NodeType:  n.Type,
		NodeIndex: intPtr(index),
		Path:      path,
	}
	expected := "=" + s
	if strings.HasPrefix(s, "{{") {
		return &Issue{
			Code:     CodeExpressionMissingPrefix,
			Severity: SeverityError,
			Message:  fmt.Sprintf("node %q expression at %s is missing the leading = marker", n.Name, path),
			Location: loc,
			Context:  map[string]any{"value": s, "expected": expected},
		}
	}
	// Literal text mixed with {{ }} still needs the marker for the whole
	// string to be treated as a template.
	return &Issue{
		Code:     CodeExpressionMissingPrefix,
		Severity: SeverityError,
		Message: fmt.Sprintf(
			"node %q value at %s mixes literal text with an expression; prefix the whole value with =", n.Name, path),
		Location: loc,
		Context:  map[string]any{"value": s, "expected": expected, "mixedLiteral": true},
	}
}

// walkParameters visits every leaf of a dynamic parameter tree, building
// dotted/indexed paths. Recursion stops at maxParameterDepth.
func walkParameters(value any, path string, depth int, visit func(path string, value any)) {
	if depth > maxParameterDepth {
		return
	}
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			walkParameters(child, path+"."+key, depth+1, visit)
		}
	case []any:
		for i, child := range v {
			walkParameters(child, fmt.Sprintf("%s[%d]", path, i), depth+1, visit)
		}
	default:
		visit(path, value)
	}
}
