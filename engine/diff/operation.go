// Package diff applies ordered, typed patch operations to a workflow with
// validate-only, atomic, and continue-on-error execution modes.
package diff

import (
	"encoding/json"
	"fmt"

	"github.com/n8nkit/n8nctl/engine/workflow"
)

// OperationType is the closed set of patch operation tags.
type OperationType string

const (
	OpAddNode               OperationType = "addNode"
	OpRemoveNode            OperationType = "removeNode"
	OpUpdateNode            OperationType = "updateNode"
	OpMoveNode              OperationType = "moveNode"
	OpEnableNode            OperationType = "enableNode"
	OpDisableNode           OperationType = "disableNode"
	OpAddConnection         OperationType = "addConnection"
	OpRemoveConnection      OperationType = "removeConnection"
	OpRewireConnection      OperationType = "rewireConnection"
	OpCleanStaleConnections OperationType = "cleanStaleConnections"
	OpReplaceConnections    OperationType = "replaceConnections"
	OpUpdateSettings        OperationType = "updateSettings"
	OpUpdateName            OperationType = "updateName"
	OpAddTag                OperationType = "addTag"
	OpRemoveTag             OperationType = "removeTag"
	OpActivateWorkflow      OperationType = "activateWorkflow"
	OpDeactivateWorkflow    OperationType = "deactivateWorkflow"
)

// Operation is one tagged patch step. Only the fields relevant to its type
// are read; the rest stay zero.
type Operation struct {
	Type OperationType `json:"type"`

	// Node operations.
	Node       *workflow.Node `json:"node,omitempty"`
	NodeName   string         `json:"nodeName,omitempty"`
	NodeID     string         `json:"nodeId,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Position   []float64      `json:"position,omitempty"`
	Overwrite  bool           `json:"overwrite,omitempty"`

	// Connection operations.
	Source      string                   `json:"source,omitempty"`
	SourceType  workflow.ConnectionType  `json:"sourceType,omitempty"`
	SourceIndex int                      `json:"sourceIndex,omitempty"`
	Target      string                   `json:"target,omitempty"`
	TargetIndex int                      `json:"targetIndex,omitempty"`
	NewTarget   string                   `json:"newTarget,omitempty"`
	Connections workflow.ConnectionGroup `json:"connections,omitempty"`

	// Workflow-level operations.
	Settings map[string]any `json:"settings,omitempty"`
	Name     string         `json:"name,omitempty"`
	Tag      string         `json:"tag,omitempty"`
}

var knownOperations = map[OperationType]bool{
	OpAddNode:               true,
	OpRemoveNode:            true,
	OpUpdateNode:            true,
	OpMoveNode:              true,
	OpEnableNode:            true,
	OpDisableNode:           true,
	OpAddConnection:         true,
	OpRemoveConnection:      true,
	OpRewireConnection:      true,
	OpCleanStaleConnections: true,
	OpReplaceConnections:    true,
	OpUpdateSettings:        true,
	OpUpdateName:            true,
	OpAddTag:                true,
	OpRemoveTag:             true,
	OpActivateWorkflow:      true,
	OpDeactivateWorkflow:    true,
}

// Request is one patch batch against a workflow.
type Request struct {
	WorkflowID      string      `json:"workflowId"`
	Operations      []Operation `json:"operations"`
	ValidateOnly    bool        `json:"validateOnly,omitempty"`
	ContinueOnError bool        `json:"continueOnError,omitempty"`
	SkipValidation  bool        `json:"skipValidation,omitempty"`
}

// OperationFailure reports one failed operation by its position in the batch.
type OperationFailure struct {
	Index   int    `json:"index"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OperationCheck is the per-op outcome of a validate-only run.
type OperationCheck struct {
	Index int    `json:"index"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a patch batch.
type Result struct {
	Success           bool               `json:"success"`
	OperationsApplied int                `json:"operationsApplied"`
	Failed            []OperationFailure `json:"operationsFailed,omitempty"`
	Checks            []OperationCheck   `json:"checks,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	Workflow          *workflow.Workflow `json:"workflow,omitempty"`
	// Pending activation flags for the caller to honor after the update
	// lands on the control plane.
	ShouldActivate   bool `json:"shouldActivate,omitempty"`
	ShouldDeactivate bool `json:"shouldDeactivate,omitempty"`
}

// ParseOperations decodes the wire format: either {"operations": [...]} or a
// bare array. Unknown tags are rejected up front so a batch never starts with
// an operation it cannot finish.
func ParseOperations(data []byte) ([]Operation, error) {
	var wrapper struct {
		Operations []Operation `json:"operations"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Operations == nil {
		var bare []Operation
		if bareErr := json.Unmarshal(data, &bare); bareErr != nil {
			return nil, fmt.Errorf("diff: parse operations: %w", firstErr(err, bareErr))
		}
		wrapper.Operations = bare
	}
	for i, op := range wrapper.Operations {
		if !knownOperations[op.Type] {
			return nil, &Error{
				Code:    CodeInvalidOperationType,
				Message: fmt.Sprintf("operation %d has unknown type %q", i, op.Type),
			}
		}
	}
	return wrapper.Operations, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
