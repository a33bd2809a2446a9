package validate

import (
	"fmt"
	"strings"

	"github.com/n8nkit/n8nctl/engine/workflow"
)

// checkAITopology runs the workflow-level AI wiring checks against the
// reverse connection index. It runs once per workflow, not per node.
func checkAITopology(w *workflow.Workflow, reverse workflow.ReverseIndex) []Issue {
	var issues []Issue
	for i, n := range w.Nodes {
		if n.Disabled {
			continue
		}
		switch {
		case isAgentNode(n):
			issues = append(issues, checkAgent(w, reverse, n, i)...)
		case isChatTrigger(n):
			issues = append(issues, checkChatTrigger(w, n, i)...)
		}
		issues = append(issues, checkMemoryFanIn(reverse, n, i)...)
		issues = append(issues, checkToolDescription(w, n, i)...)
	}
	return issues
}

func isAgentNode(n *workflow.Node) bool {
	t := workflow.NormalizeNodeType(n.Type)
	return strings.HasPrefix(t, "nodes-langchain.") && strings.Contains(strings.ToLower(t), "agent")
}

func isChatTrigger(n *workflow.Node) bool {
	return workflow.NormalizeNodeType(n.Type) == "nodes-langchain.chatTrigger"
}

func checkAgent(w *workflow.Workflow, reverse workflow.ReverseIndex, n *workflow.Node, index int) []Issue {
	var issues []Issue
	loc := nodeLocation(n, index)
	models := reverse.IncomingOfType(n.Name, workflow.ConnectionAILanguageModel)
	switch {
	case len(models) == 0:
		issues = append(issues, Issue{
			Code:     CodeMissingLanguageModel,
			Severity: SeverityError,
			Message:  fmt.Sprintf("AI agent %q has no language model connected", n.Name),
			Location: loc,
		})
	case len(models) > 2:
		issues = append(issues, Issue{
			Code:     CodeTooManyLanguageModels,
			Severity: SeverityError,
			Message:  fmt.Sprintf("AI agent %q has %d language models connected; at most 2 are supported", n.Name, len(models)),
			Location: loc,
			Context:  map[string]any{"value": len(models), "expected": 2},
		})
	}
	if paramBool(n.Parameters, "needsFallback") && len(models) == 1 {
		issues = append(issues, Issue{
			Code:     CodeFallbackMissingSecondModel,
			Severity: SeverityError,
			Message:  fmt.Sprintf("AI agent %q requests a fallback model but only one model is connected", n.Name),
			Location: loc,
		})
	}
	if paramString(n.Parameters, "promptType") == "define" && strings.TrimSpace(paramString(n.Parameters, "text")) == "" {
		issues = append(issues, Issue{
			Code:     CodeMissingPromptText,
			Severity: SeverityError,
			Message:  fmt.Sprintf("AI agent %q defines its prompt but the text is empty", n.Name),
			Location: Location{
				NodeName:  n.Name,
				NodeID:    n.ID,
				NodeType:  n.Type,
				NodeIndex: intPtr(index),
				Path:      fmt.Sprintf("nodes[%d].parameters.text", index),
			},
		})
	}
	if paramBool(n.Parameters, "hasOutputParser") {
		parsers := reverse.IncomingOfType(n.Name, workflow.ConnectionAIOutputParser)
		if len(parsers) == 0 {
			issues = append(issues, Issue{
				Code:     CodeMissingOutputParser,
				Severity: SeverityError,
				Message:  fmt.Sprintf("AI agent %q expects an output parser but none is connected", n.Name),
				Location: loc,
			})
		}
	}
	issues = append(issues, agentHints(w, reverse, n, index)...)
	return issues
}

// agentHints are best-practice advisories, info severity.
func agentHints(_ *workflow.Workflow, reverse workflow.ReverseIndex, n *workflow.Node, index int) []Issue {
	var issues []Issue
	loc := nodeLocation(n, index)
	if strings.TrimSpace(paramString(n.Parameters, "options.systemMessage")) == "" {
		issues = append(issues, Issue{
			Code:     CodeMissingPromptText,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("AI agent %q has no system message; consider setting one", n.Name),
			Location: loc,
			Context:  map[string]any{"hint": "systemMessage"},
		})
	}
	if len(reverse.IncomingOfType(n.Name, workflow.ConnectionAITool)) == 0 {
		issues = append(issues, Issue{
			Code:     CodeMissingToolDescription,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("AI agent %q has no tools connected", n.Name),
			Location: loc,
			Context:  map[string]any{"hint": "tools"},
		})
	}
	return issues
}

// checkChatTrigger verifies a streaming chat trigger terminates at an AI
// agent over its main output.
func checkChatTrigger(w *workflow.Workflow, n *workflow.Node, index int) []Issue {
	if paramString(n.Parameters, "options.responseMode") != "streaming" {
		return nil
	}
	group, ok := w.Connections[n.Name]
	if !ok {
		return nil
	}
	var issues []Issue
	loc := nodeLocation(n, index)
	for _, slot := range group[workflow.ConnectionMain] {
		for _, target := range slot {
			targetNode, found := w.GetNode(target.Node)
			if !found {
				continue
			}
			if !isAgentNode(targetNode) {
				issues = append(issues, Issue{
					Code:     CodeStreamingWrongTarget,
					Severity: SeverityError,
					Message: fmt.Sprintf(
						"chat trigger %q streams but its main output targets %q, which is not an AI agent",
						n.Name, target.Node),
					Location: loc,
					Context:  map[string]any{"target": target.Node},
				})
			} else if hasMainOutput(w, targetNode.Name) {
				issues = append(issues, Issue{
					Code:     CodeStreamingWithMainOutput,
					Severity: SeverityError,
					Message: fmt.Sprintf(
						"AI agent %q streams its response and must not have a main output connection", target.Node),
					Location: loc,
					Context:  map[string]any{"target": target.Node},
				})
			}
		}
	}
	return issues
}

func hasMainOutput(w *workflow.Workflow, name string) bool {
	group, ok := w.Connections[name]
	if !ok {
		return false
	}
	for _, slot := range group[workflow.ConnectionMain] {
		if len(slot) > 0 {
			return true
		}
	}
	return false
}

func checkMemoryFanIn(reverse workflow.ReverseIndex, n *workflow.Node, index int) []Issue {
	memories := reverse.IncomingOfType(n.Name, workflow.ConnectionAIMemory)
	if len(memories) <= 1 {
		return nil
	}
	return []Issue{{
		Code:     CodeMultipleMemoryConnections,
		Severity: SeverityError,
		Message:  fmt.Sprintf("node %q has %d memory connections; only one is supported", n.Name, len(memories)),
		Location: nodeLocation(n, index),
		Context:  map[string]any{"value": len(memories), "expected": 1},
	}}
}

// checkToolDescription warns when a node wired as an AI tool carries no
// description for the model.
func checkToolDescription(w *workflow.Workflow, n *workflow.Node, index int) []Issue {
	if !feedsToolPort(w, n.Name) {
		return nil
	}
	if strings.TrimSpace(paramString(n.Parameters, "toolDescription")) != "" {
		return nil
	}
	if paramString(n.Parameters, "descriptionType") == "auto" {
		return nil
	}
	return []Issue{{
		Code:     CodeMissingToolDescription,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("AI tool %q has no toolDescription; the model cannot decide when to call it", n.Name),
		Location: nodeLocation(n, index),
	}}
}

func feedsToolPort(w *workflow.Workflow, name string) bool {
	group, ok := w.Connections[name]
	if !ok {
		return false
	}
	for _, slot := range group[workflow.ConnectionAITool] {
		if len(slot) > 0 {
			return true
		}
	}
	return false
}

func nodeLocation(n *workflow.Node, index int) Location {
	return Location{
		NodeName:  n.Name,
		NodeID:    n.ID,
		NodeType:  n.Type,
		NodeIndex: intPtr(index),
		Path:      fmt.Sprintf("nodes[%d]", index),
	}
}

// paramString resolves a dotted path over the parameter tree to a string.
func paramString(params map[string]any, path string) string {
	v := paramValue(params, path)
	s, _ := v.(string)
	return s
}

func paramBool(params map[string]any, path string) bool {
	v := paramValue(params, path)
	b, _ := v.(bool)
	return b
}

func paramValue(params map[string]any, path string) any {
	var current any = params
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[seg]
	}
	return current
}
