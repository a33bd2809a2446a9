package validate

import (
	"fmt"
	"strings"

	"github.com/n8nkit/n8nctl/engine/workflow"
)

// checkStructure runs the schema, required-field and connection-integrity
// checks.
func checkStructure(doc *workflow.Document) []Issue {
	var issues []Issue
	w := doc.Workflow
	if doc.MissingNodes {
		issues = append(issues, Issue{
			Code:     CodeMissingProperty,
			Severity: SeverityError,
			Message:  "workflow is missing the required nodes array",
			Location: Location{Path: "nodes"},
		})
	}
	if doc.MissingConnections {
		issues = append(issues, Issue{
			Code:     CodeMissingProperty,
			Severity: SeverityError,
			Message:  "workflow is missing the required connections map",
			Location: Location{Path: "connections"},
		})
	}
	issues = append(issues, checkNodeFields(w)...)
	issues = append(issues, checkDuplicateNames(w)...)
	issues = append(issues, checkConnections(w)...)
	issues = append(issues, checkTriggerPresence(w)...)
	return issues
}

func checkNodeFields(w *workflow.Workflow) []Issue {
	var issues []Issue
	for i, n := range w.Nodes {
		loc := func(field string) Location {
			return Location{
				NodeName:  n.Name,
				NodeID:    n.ID,
				NodeType:  n.Type,
				NodeIndex: intPtr(i),
				Path:      fmt.Sprintf("nodes[%d].%s", i, field),
			}
		}
		if n.Name == "" {
			issues = append(issues, Issue{
				Code:     CodeMissingNodeName,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node at index %d has no name; one will be generated on save", i),
				Location: loc("name"),
			})
		}
		if n.Type == "" {
			issues = append(issues, Issue{
				Code:     CodeMissingProperty,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has no type", nodeLabel(n, i)),
				Location: loc("type"),
			})
		} else if !strings.Contains(n.Type, ".") {
			// A type with no package prefix at all cannot be resolved.
			issues = append(issues, Issue{
				Code:     CodeInvalidNodeTypeFormat,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q type %q has no package prefix", nodeLabel(n, i), n.Type),
				Location: loc("type"),
				Context:  map[string]any{"value": n.Type, "expected": "nodes-base." + n.Type},
			})
		}
		if n.TypeVersion == 0 {
			issues = append(issues, Issue{
				Code:     CodeMissingProperty,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has no typeVersion", nodeLabel(n, i)),
				Location: loc("typeVersion"),
			})
		}
		if len(n.Position) < 2 {
			issues = append(issues, Issue{
				Code:     CodeMissingProperty,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node %q has no position", nodeLabel(n, i)),
				Location: loc("position"),
			})
		}
	}
	return issues
}

func checkDuplicateNames(w *workflow.Workflow) []Issue {
	var issues []Issue
	seen := make(map[string]int)
	for i, n := range w.Nodes {
		if n.Name == "" {
			continue
		}
		if first, ok := seen[n.Name]; ok {
			issues = append(issues, Issue{
				Code:     CodeDuplicateNodeName,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node name %q is used by nodes %d and %d", n.Name, first, i),
				Location: Location{
					NodeName:  n.Name,
					NodeIndex: intPtr(i),
					Path:      fmt.Sprintf("nodes[%d].name", i),
				},
			})
			continue
		}
		seen[n.Name] = i
	}
	return issues
}

func checkConnections(w *workflow.Workflow) []Issue {
	var issues []Issue
	for source, group := range w.Connections {
		sourceNode, sourceOK := w.GetNode(source)
		if !sourceOK {
			issues = append(issues, Issue{
				Code:     CodeConnectionDangling,
				Severity: SeverityError,
				Message:  fmt.Sprintf("connections reference unknown source node %q", source),
				Location: Location{NodeName: source, Path: fmt.Sprintf("connections.%s", source)},
			})
		}
		for connType, slots := range group {
			for slotIdx, slot := range slots {
				for targetIdx, target := range slot {
					path := fmt.Sprintf("connections.%s.%s[%d][%d]", source, connType, slotIdx, targetIdx)
					targetNode, targetOK := w.GetNode(target.Node)
					if !targetOK {
						issues = append(issues, Issue{
							Code:     CodeConnectionDangling,
							Severity: SeverityError,
							Message:  fmt.Sprintf("connection from %q targets unknown node %q", source, target.Node),
							Location: Location{NodeName: source, Path: path},
							Context:  map[string]any{"target": target.Node},
						})
						continue
					}
					if (sourceOK && sourceNode.Disabled) || targetNode.Disabled {
						issues = append(issues, Issue{
							Code:     CodeConnectionDangling,
							Severity: SeverityWarning,
							Message:  fmt.Sprintf("connection from %q to %q touches a disabled node", source, target.Node),
							Location: Location{NodeName: source, Path: path},
						})
					}
				}
			}
		}
	}
	return issues
}

func checkTriggerPresence(w *workflow.Workflow) []Issue {
	if !w.IsActive() || w.HasActivatableTrigger() {
		return nil
	}
	return []Issue{{
		Code:     CodeNoTriggerWhenActive,
		Severity: SeverityError,
		Message:  "workflow is active but has no activatable trigger node",
		Location: Location{Path: "active"},
	}}
}

func nodeLabel(n *workflow.Node, index int) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("#%d", index)
}
