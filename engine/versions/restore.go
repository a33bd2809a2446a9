package versions

import (
	"context"
	"fmt"

	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/logger"
)

// WorkflowService is the slice of the control plane the restore protocol
// needs.
type WorkflowService interface {
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	UpdateWorkflow(ctx context.Context, id string, w *workflow.Workflow) (*workflow.Workflow, error)
}

// RestoreOptions tunes a restore.
type RestoreOptions struct {
	// VersionNumber selects the target; zero means the latest stored version.
	VersionNumber int
	// SkipValidation pushes the snapshot without the runtime-profile check.
	SkipValidation bool
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	WorkflowID       string             `json:"workflowId"`
	RestoredVersion  int                `json:"restoredVersion"`
	PreRestoreBackup *Record            `json:"preRestoreBackup"`
	Workflow         *workflow.Workflow `json:"workflow"`
}

// Restore rolls a workflow back to a stored version.
//
// Protocol: fetch the current remote state, back it up first, validate the
// target snapshot, then push it. If anything fails after the backup was
// written, the backup stays in the store as the recovery point.
func (s *Store) Restore(ctx context.Context, svc WorkflowService, validator *validate.Validator, workflowID string, opts RestoreOptions) (*RestoreResult, error) {
	log := logger.FromContext(ctx)
	target, err := s.GetByNumber(ctx, workflowID, opts.VersionNumber)
	if err != nil {
		return nil, err
	}

	current, err := svc.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("versions: restore: fetch current workflow: %w", err)
	}
	backup, err := s.CreateBackup(ctx, workflowID, current, TriggerManual,
		WithMetadata(map[string]any{
			"note":            "pre-rollback",
			"restoreTarget":   target.VersionNumber,
			"restoreTargetId": target.ID,
		}))
	if err != nil {
		return nil, fmt.Errorf("versions: restore: pre-restore backup: %w", err)
	}
	log.Debug("pre-restore backup created",
		"workflow_id", workflowID, "backup_version", backup.VersionNumber, "target_version", target.VersionNumber)

	if validator != nil && !opts.SkipValidation {
		doc := &workflow.Document{Workflow: target.Snapshot}
		result, err := validator.Validate(ctx, doc, validate.Options{Profile: validate.ProfileRuntime})
		if err != nil {
			return nil, fmt.Errorf("versions: restore: validate snapshot (backup %s is the recovery point): %w",
				backup.ID, err)
		}
		if !result.Valid {
			return nil, fmt.Errorf(
				"versions: restore: target version %d fails runtime validation with %d error(s); backup %s is the recovery point",
				target.VersionNumber, len(result.Errors()), backup.ID)
		}
	}

	updated, err := svc.UpdateWorkflow(ctx, workflowID, target.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("versions: restore: push snapshot (backup %s is the recovery point): %w",
			backup.ID, err)
	}
	return &RestoreResult{
		WorkflowID:       workflowID,
		RestoredVersion:  target.VersionNumber,
		PreRestoreBackup: backup,
		Workflow:         updated,
	}, nil
}
