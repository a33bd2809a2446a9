package cli

import (
	"fmt"
	"os"

	"github.com/n8nkit/n8nctl/engine/diff"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/versions"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/spf13/cobra"
)

// DiffCmd applies a patch document to a remote workflow.
func DiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <workflow-id> <operations-file>",
		Short: "Apply typed patch operations to a workflow on the control plane",
		Args:  cobra.ExactArgs(2),
		RunE:  runDiff,
	}
	cmd.Flags().Bool("validate-only", false, "check the operations without applying them")
	cmd.Flags().Bool("continue-on-error", false, "keep applying after a failed operation")
	cmd.Flags().Bool("skip-validation", false, "skip post-apply workflow validation")
	cmd.Flags().Bool("no-backup", false, "skip the pre-write version backup")
	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	workflowID, opsPath := args[0], args[1]

	raw, err := os.ReadFile(opsPath)
	if err != nil {
		if os.IsNotExist(err) {
			renderError(cmd, "MISSING_INPUT", err, "check the operations file path")
			return exitWith(lifecycle.ExitNoInput, nil)
		}
		return err
	}
	operations, err := diff.ParseOperations(raw)
	if err != nil {
		renderError(cmd, diff.CodeInvalidOperationType, err, "see the operation reference for valid types")
		return exitWith(lifecycle.ExitData, nil)
	}

	client, err := current.ControlPlane(ctx)
	if err != nil {
		return err
	}
	w, err := client.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}

	var validator *validate.Validator
	if cat, catErr := current.Catalog(cmd); catErr == nil {
		validator = validate.New(cat)
	}
	skipValidation, _ := cmd.Flags().GetBool("skip-validation")
	validateOnly, _ := cmd.Flags().GetBool("validate-only")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")

	engine := diff.NewEngine(validator)
	result, err := engine.Apply(ctx, w, diff.Request{
		WorkflowID:      workflowID,
		Operations:      operations,
		ValidateOnly:    validateOnly,
		ContinueOnError: continueOnError,
		SkipValidation:  skipValidation,
	})
	if err != nil {
		return err
	}

	if validateOnly {
		return renderDiffResult(cmd, workflowID, result, false, false)
	}
	if !result.Success && !continueOnError {
		if err := renderDiffResult(cmd, workflowID, result, false, false); err != nil {
			return err
		}
		return exitWith(lifecycle.ExitData, nil)
	}
	if len(result.Warnings) > 0 && !skipValidation {
		// Post-apply validation errors block submission.
		if err := renderDiffResult(cmd, workflowID, result, false, false); err != nil {
			return err
		}
		return exitWith(lifecycle.ExitData, nil)
	}

	if noBackup, _ := cmd.Flags().GetBool("no-backup"); !noBackup {
		current.backupBeforeWrite(ctx, workflowID, w, versions.TriggerPartialUpdate)
	}
	updated, err := client.UpdateWorkflow(ctx, workflowID, result.Workflow)
	if err != nil {
		return err
	}
	result.Workflow = updated

	activated, deactivated := false, false
	if result.ShouldActivate {
		if err := client.Activate(ctx, workflowID); err != nil {
			return err
		}
		activated = true
	}
	if result.ShouldDeactivate {
		if err := client.Deactivate(ctx, workflowID); err != nil {
			return err
		}
		deactivated = true
	}
	return renderDiffResult(cmd, workflowID, result, activated, deactivated)
}

func renderDiffResult(cmd *cobra.Command, workflowID string, result *diff.Result, activated, deactivated bool) error {
	if jsonMode(cmd) {
		data := map[string]any{
			"workflowId":        workflowID,
			"operationsApplied": result.OperationsApplied,
			"operationsFailed":  result.Failed,
			"workflow":          result.Workflow,
		}
		if len(result.Checks) > 0 {
			data["checks"] = result.Checks
		}
		if len(result.Warnings) > 0 {
			data["warnings"] = result.Warnings
		}
		if activated {
			data["activated"] = true
		}
		if deactivated {
			data["deactivated"] = true
		}
		return printJSON(map[string]any{"success": result.Success, "data": data})
	}
	out := cmd.OutOrStdout()
	if result.Success {
		fmt.Fprintf(out, "applied %d operation(s) to %s\n", result.OperationsApplied, workflowID)
	} else {
		fmt.Fprintf(out, "diff failed: %d operation(s) applied\n", result.OperationsApplied)
	}
	for _, f := range result.Failed {
		fmt.Fprintf(out, "  op %d failed [%s]: %s\n", f.Index, f.Code, f.Message)
	}
	for _, c := range result.Checks {
		status := "ok"
		if !c.Valid {
			status = "invalid: " + c.Error
		}
		fmt.Fprintf(out, "  op %d: %s\n", c.Index, status)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warning)
	}
	if activated {
		fmt.Fprintln(out, "workflow activated")
	}
	if deactivated {
		fmt.Fprintln(out, "workflow deactivated")
	}
	return nil
}
