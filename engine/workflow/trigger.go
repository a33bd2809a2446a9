package workflow

import "strings"

// Named trigger types without "trigger" or "webhook" in their type name.
var bareTriggerNames = map[string]bool{
	"start":         true,
	"manualTrigger": true,
	"formTrigger":   true,
}

// IsTriggerType reports whether the node type initiates workflow runs.
func IsTriggerType(nodeType string) bool {
	local := LocalName(nodeType)
	lower := strings.ToLower(local)
	if strings.Contains(lower, "trigger") {
		return true
	}
	if strings.Contains(lower, "webhook") && !strings.Contains(lower, "respond") {
		return true
	}
	return bareTriggerNames[local]
}

// IsActivatableTriggerType reports whether the trigger can cause the control
// plane to activate a workflow. Sub-workflow triggers cannot.
func IsActivatableTriggerType(nodeType string) bool {
	if !IsTriggerType(nodeType) {
		return false
	}
	return !strings.Contains(strings.ToLower(nodeType), "executeworkflow")
}

// HasActivatableTrigger reports whether any enabled node can activate the
// workflow.
func (w *Workflow) HasActivatableTrigger() bool {
	for _, n := range w.Nodes {
		if n.Disabled {
			continue
		}
		if IsActivatableTriggerType(n.Type) {
			return true
		}
	}
	return false
}

// TriggerNodes returns the enabled trigger nodes.
func (w *Workflow) TriggerNodes() []*Node {
	var out []*Node
	for _, n := range w.Nodes {
		if !n.Disabled && IsTriggerType(n.Type) {
			out = append(out, n)
		}
	}
	return out
}
