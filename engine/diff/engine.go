package diff

import (
	"context"
	"fmt"

	"dario.cat/mergo"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/logger"
)

// Error codes for failed operations.
const (
	CodeInvalidOperationType    = "INVALID_OPERATION_TYPE"
	CodeTargetNodeMissing       = "TARGET_NODE_MISSING"
	CodeNameCollision           = "NAME_COLLISION"
	CodeConnectionTargetMissing = "CONNECTION_TARGET_MISSING"
	CodeInvalidOperation        = "INVALID_OPERATION"
)

// Error is a coded operation failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func opError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// applier mutates the workflow for one operation type. Activation flags are
// recorded on the result instead of mutating the document.
type applier func(w *workflow.Workflow, op Operation, result *Result) error

var appliers = map[OperationType]applier{
	OpAddNode:               applyAddNode,
	OpRemoveNode:            applyRemoveNode,
	OpUpdateNode:            applyUpdateNode,
	OpMoveNode:              applyMoveNode,
	OpEnableNode:            applyEnableNode,
	OpDisableNode:           applyDisableNode,
	OpAddConnection:         applyAddConnection,
	OpRemoveConnection:      applyRemoveConnection,
	OpRewireConnection:      applyRewireConnection,
	OpCleanStaleConnections: applyCleanStale,
	OpReplaceConnections:    applyReplaceConnections,
	OpUpdateSettings:        applyUpdateSettings,
	OpUpdateName:            applyUpdateName,
	OpAddTag:                applyAddTag,
	OpRemoveTag:             applyRemoveTag,
	OpActivateWorkflow:      applyActivate,
	OpDeactivateWorkflow:    applyDeactivate,
}

// Engine applies patch batches. The validator re-checks the patched document
// at the runtime profile after a successful batch.
type Engine struct {
	validator *validate.Validator
}

// NewEngine builds a diff engine. The validator may be nil to skip
// post-apply validation entirely.
func NewEngine(v *validate.Validator) *Engine {
	return &Engine{validator: v}
}

// Apply executes the batch against a working copy of the workflow. The input
// document is never mutated: the patched copy is returned on the result.
//
// Default mode is atomic: the first failure aborts the batch and the result
// carries the original workflow unchanged. With ContinueOnError the engine
// keeps going and reports every failure. With ValidateOnly nothing persists;
// the result carries per-operation checks only.
func (e *Engine) Apply(ctx context.Context, w *workflow.Workflow, req Request) (*Result, error) {
	working, err := w.Clone()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	result := &Result{}

	if req.ValidateOnly {
		for i, op := range req.Operations {
			check := OperationCheck{Index: i, Valid: true}
			if err := e.applyOne(working, op, result); err != nil {
				check.Valid = false
				check.Error = err.Error()
			}
			result.Checks = append(result.Checks, check)
		}
		result.Success = true
		for _, c := range result.Checks {
			if !c.Valid {
				result.Success = false
				break
			}
		}
		return result, nil
	}

	for i, op := range req.Operations {
		if err := e.applyOne(working, op, result); err != nil {
			failure := failureFrom(i, err)
			result.Failed = append(result.Failed, failure)
			if !req.ContinueOnError {
				result.Success = false
				result.OperationsApplied = 0
				result.Workflow = w
				result.ShouldActivate = false
				result.ShouldDeactivate = false
				logger.FromContext(ctx).Debug("diff batch aborted",
					"workflow_id", req.WorkflowID, "failed_op", i, "code", failure.Code)
				return result, nil
			}
			continue
		}
		result.OperationsApplied++
	}

	result.Success = len(result.Failed) == 0
	result.Workflow = working

	if e.validator != nil && !req.SkipValidation {
		doc := &workflow.Document{Workflow: working}
		validation, err := e.validator.Validate(ctx, doc, validate.Options{Profile: validate.ProfileRuntime})
		if err != nil {
			return nil, fmt.Errorf("diff: post-apply validation: %w", err)
		}
		for _, iss := range validation.Errors() {
			result.Warnings = append(result.Warnings, iss.Code+": "+iss.Message)
		}
	}
	return result, nil
}

func (e *Engine) applyOne(w *workflow.Workflow, op Operation, result *Result) error {
	apply, ok := appliers[op.Type]
	if !ok {
		return opError(CodeInvalidOperationType, "unknown operation type %q", op.Type)
	}
	return apply(w, op, result)
}

func failureFrom(index int, err error) OperationFailure {
	if coded, ok := err.(*Error); ok {
		return OperationFailure{Index: index, Code: coded.Code, Message: coded.Message}
	}
	return OperationFailure{Index: index, Code: CodeInvalidOperation, Message: err.Error()}
}

func applyAddNode(w *workflow.Workflow, op Operation, _ *Result) error {
	if op.Node == nil || op.Node.Name == "" {
		return opError(CodeInvalidOperation, "addNode requires a node with a name")
	}
	if existing, ok := w.GetNode(op.Node.Name); ok {
		if !op.Overwrite {
			return opError(CodeNameCollision, "node %q already exists", op.Node.Name)
		}
		*existing = *op.Node
		return nil
	}
	w.AddNode(op.Node)
	return nil
}

func applyRemoveNode(w *workflow.Workflow, op Operation, _ *Result) error {
	n, err := resolveNode(w, op)
	if err != nil {
		return err
	}
	w.RemoveNode(n.Name)
	return nil
}

func applyUpdateNode(w *workflow.Workflow, op Operation, _ *Result) error {
	n, err := resolveNode(w, op)
	if err != nil {
		return err
	}
	if op.Parameters != nil {
		if n.Parameters == nil {
			n.Parameters = make(map[string]any)
		}
		if err := mergo.Merge(&n.Parameters, op.Parameters, mergo.WithOverride); err != nil {
			return opError(CodeInvalidOperation, "merge parameters for %q: %v", n.Name, err)
		}
	}
	if op.Node != nil {
		if op.Node.Type != "" {
			n.Type = op.Node.Type
		}
		if op.Node.TypeVersion != 0 {
			n.TypeVersion = op.Node.TypeVersion
		}
		if op.Node.OnError != "" {
			n.OnError = op.Node.OnError
		}
		if op.Node.Notes != "" {
			n.Notes = op.Node.Notes
		}
	}
	return nil
}

func applyMoveNode(w *workflow.Workflow, op Operation, _ *Result) error {
	n, err := resolveNode(w, op)
	if err != nil {
		return err
	}
	if len(op.Position) != 2 {
		return opError(CodeInvalidOperation, "moveNode requires a [x, y] position")
	}
	n.Position = op.Position
	return nil
}

func applyEnableNode(w *workflow.Workflow, op Operation, _ *Result) error {
	n, err := resolveNode(w, op)
	if err != nil {
		return err
	}
	n.Disabled = false
	return nil
}

func applyDisableNode(w *workflow.Workflow, op Operation, _ *Result) error {
	n, err := resolveNode(w, op)
	if err != nil {
		return err
	}
	n.Disabled = true
	return nil
}

func applyAddConnection(w *workflow.Workflow, op Operation, _ *Result) error {
	if err := checkEndpoints(w, op.Source, op.Target); err != nil {
		return err
	}
	connType := op.SourceType
	if connType == "" {
		connType = workflow.ConnectionMain
	}
	if w.Connections == nil {
		w.Connections = make(map[string]workflow.ConnectionGroup)
	}
	group := w.Connections[op.Source]
	if group == nil {
		group = make(workflow.ConnectionGroup)
	}
	slots := group[connType]
	for len(slots) <= op.SourceIndex {
		slots = append(slots, []workflow.ConnectionTarget{})
	}
	slots[op.SourceIndex] = append(slots[op.SourceIndex], workflow.ConnectionTarget{
		Node:  op.Target,
		Type:  connType,
		Index: op.TargetIndex,
	})
	group[connType] = slots
	w.Connections[op.Source] = group
	return nil
}

func applyRemoveConnection(w *workflow.Workflow, op Operation, _ *Result) error {
	group, ok := w.Connections[op.Source]
	if !ok {
		return opError(CodeConnectionTargetMissing, "node %q has no outgoing connections", op.Source)
	}
	connType := op.SourceType
	if connType == "" {
		connType = workflow.ConnectionMain
	}
	slots := group[connType]
	if op.SourceIndex >= len(slots) {
		return opError(CodeConnectionTargetMissing,
			"node %q has no %s output slot %d", op.Source, connType, op.SourceIndex)
	}
	slot := slots[op.SourceIndex]
	kept := slot[:0]
	removed := false
	for _, t := range slot {
		if t.Node == op.Target && t.Index == op.TargetIndex {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return opError(CodeConnectionTargetMissing,
			"no connection from %q to %q at index %d", op.Source, op.Target, op.TargetIndex)
	}
	slots[op.SourceIndex] = kept
	group[connType] = slots
	return nil
}

// applyRewireConnection is remove+add to a new target. Both endpoints of the
// new edge are checked before the old one is removed so a failure can never
// drop the existing connection.
func applyRewireConnection(w *workflow.Workflow, op Operation, result *Result) error {
	if op.NewTarget == "" {
		return opError(CodeInvalidOperation, "rewireConnection requires newTarget")
	}
	if err := checkEndpoints(w, op.Source, op.NewTarget); err != nil {
		return err
	}
	if err := applyRemoveConnection(w, op, result); err != nil {
		return err
	}
	rewired := op
	rewired.Target = op.NewTarget
	return applyAddConnection(w, rewired, result)
}

func applyCleanStale(w *workflow.Workflow, _ Operation, result *Result) error {
	removed := 0
	for source, group := range w.Connections {
		srcNode, srcExists := w.GetNode(source)
		if !srcExists || srcNode.Disabled {
			removed += countTargets(group)
			delete(w.Connections, source)
			continue
		}
		for connType, slots := range group {
			for i, slot := range slots {
				kept := slot[:0]
				for _, t := range slot {
					target, ok := w.GetNode(t.Node)
					if !ok || target.Disabled {
						removed++
						continue
					}
					kept = append(kept, t)
				}
				slots[i] = kept
			}
			group[connType] = slots
		}
	}
	if removed > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("removed %d stale connection(s)", removed))
	}
	return nil
}

func countTargets(group workflow.ConnectionGroup) int {
	total := 0
	for _, slots := range group {
		for _, slot := range slots {
			total += len(slot)
		}
	}
	return total
}

func applyReplaceConnections(w *workflow.Workflow, op Operation, _ *Result) error {
	if _, ok := w.GetNode(op.Source); !ok {
		return opError(CodeTargetNodeMissing, "node %q does not exist", op.Source)
	}
	for _, slots := range op.Connections {
		for _, slot := range slots {
			for _, t := range slot {
				if _, ok := w.GetNode(t.Node); !ok {
					return opError(CodeConnectionTargetMissing,
						"connection target node %q does not exist", t.Node)
				}
			}
		}
	}
	if w.Connections == nil {
		w.Connections = make(map[string]workflow.ConnectionGroup)
	}
	if len(op.Connections) == 0 {
		delete(w.Connections, op.Source)
		return nil
	}
	w.Connections[op.Source] = op.Connections
	return nil
}

func applyUpdateSettings(w *workflow.Workflow, op Operation, _ *Result) error {
	if w.Settings == nil {
		w.Settings = make(map[string]any)
	}
	if err := mergo.Merge(&w.Settings, op.Settings, mergo.WithOverride); err != nil {
		return opError(CodeInvalidOperation, "merge settings: %v", err)
	}
	return nil
}

func applyUpdateName(w *workflow.Workflow, op Operation, _ *Result) error {
	if op.Name == "" {
		return opError(CodeInvalidOperation, "updateName requires a name")
	}
	w.Name = op.Name
	return nil
}

func applyAddTag(w *workflow.Workflow, op Operation, _ *Result) error {
	if op.Tag == "" {
		return opError(CodeInvalidOperation, "addTag requires a tag")
	}
	for _, t := range w.Tags {
		if t == op.Tag {
			return nil
		}
	}
	w.Tags = append(w.Tags, op.Tag)
	return nil
}

func applyRemoveTag(w *workflow.Workflow, op Operation, _ *Result) error {
	for i, t := range w.Tags {
		if t == op.Tag {
			w.Tags = append(w.Tags[:i], w.Tags[i+1:]...)
			return nil
		}
	}
	return nil
}

func applyActivate(w *workflow.Workflow, _ Operation, result *Result) error {
	if !w.HasActivatableTrigger() {
		return opError(CodeInvalidOperation, "workflow has no activatable trigger node")
	}
	result.ShouldActivate = true
	result.ShouldDeactivate = false
	return nil
}

func applyDeactivate(_ *workflow.Workflow, _ Operation, result *Result) error {
	result.ShouldDeactivate = true
	result.ShouldActivate = false
	return nil
}

func resolveNode(w *workflow.Workflow, op Operation) (*workflow.Node, error) {
	if op.NodeName != "" {
		if n, ok := w.GetNode(op.NodeName); ok {
			return n, nil
		}
	}
	if op.NodeID != "" {
		if n, ok := w.GetNodeByID(op.NodeID); ok {
			return n, nil
		}
	}
	label := op.NodeName
	if label == "" {
		label = op.NodeID
	}
	return nil, opError(CodeTargetNodeMissing, "node %q does not exist", label)
}

func checkEndpoints(w *workflow.Workflow, source, target string) error {
	if _, ok := w.GetNode(source); !ok {
		return opError(CodeConnectionTargetMissing, "source node %q does not exist", source)
	}
	if _, ok := w.GetNode(target); !ok {
		return opError(CodeConnectionTargetMissing, "target node %q does not exist", target)
	}
	return nil
}
