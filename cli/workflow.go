package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/n8nkit/n8nctl/engine/controlplane"
	"github.com/n8nkit/n8nctl/engine/versions"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// WorkflowCmd groups the control-plane workflow commands.
func WorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows on the control plane",
	}
	cmd.AddCommand(
		workflowListCmd(),
		workflowGetCmd(),
		workflowCreateCmd(),
		workflowUpdateCmd(),
		workflowDeleteCmd(),
		workflowActivateCmd(),
		workflowDeactivateCmd(),
		workflowExecutionsCmd(),
	)
	return cmd
}

func workflowListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := current.ControlPlane(cmd.Context())
			if err != nil {
				return err
			}
			opts := controlplane.ListOptions{}
			if cmd.Flags().Changed("active") {
				active, _ := cmd.Flags().GetBool("active")
				opts.Active = &active
			}
			opts.Tag, _ = cmd.Flags().GetString("tag")
			opts.Limit, _ = cmd.Flags().GetInt("limit")
			summaries, err := client.ListWorkflows(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"workflows": summaries})
			}
			out := cmd.OutOrStdout()
			for _, s := range summaries {
				state := " "
				if s.Active {
					state = "*"
				}
				fmt.Fprintf(out, "%s %-24s %s\n", state, s.ID, s.Name)
			}
			return nil
		},
	}
	cmd.Flags().Bool("active", false, "filter by active state")
	cmd.Flags().String("tag", "", "filter by tag")
	cmd.Flags().Int("limit", 0, "maximum workflows to list")
	return cmd
}

func workflowGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <workflow-id>",
		Short: "Fetch a workflow and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := current.ControlPlane(cmd.Context())
			if err != nil {
				return err
			}
			w, err := client.GetWorkflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output, _ := cmd.Flags().GetString("output"); output != "" {
				if err := writeWorkflowFile(output, w); err != nil {
					return err
				}
				if !jsonMode(cmd) {
					fmt.Fprintf(cmd.OutOrStdout(), "written to %s\n", output)
					return nil
				}
			}
			return printJSON(w)
		},
	}
	cmd.Flags().String("output", "", "write the workflow to this file")
	return cmd
}

func workflowCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Create a workflow from a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDocument(cmd, args[0])
			if err != nil {
				return err
			}
			client, err := current.ControlPlane(cmd.Context())
			if err != nil {
				return err
			}
			created, err := client.CreateWorkflow(cmd.Context(), doc.Workflow)
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"success": true, "workflow": created})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created workflow %s (%s)\n", created.ID, created.Name)
			return nil
		},
	}
	addParseFlags(cmd.Flags())
	return cmd
}

func workflowUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <workflow-id> <file>",
		Short: "Replace a workflow with a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := loadDocument(cmd, args[1])
			if err != nil {
				return err
			}
			client, err := current.ControlPlane(ctx)
			if err != nil {
				return err
			}
			if noBackup, _ := cmd.Flags().GetBool("no-backup"); !noBackup {
				if existing, err := client.GetWorkflow(ctx, args[0]); err == nil {
					current.backupBeforeWrite(ctx, args[0], existing, versions.TriggerFullUpdate)
				}
			}
			updated, err := client.UpdateWorkflow(ctx, args[0], doc.Workflow)
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"success": true, "workflow": updated})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated workflow %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("no-backup", false, "skip the pre-write version backup")
	addParseFlags(cmd.Flags())
	return cmd
}

func workflowDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [workflow-id]",
		Short: "Delete workflows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, args, "delete", func(ctx context.Context, client *controlplane.Client, id string) error {
				return client.DeleteWorkflow(ctx, id)
			})
		},
	}
	cmd.Flags().StringSlice("ids", nil, "operate on several workflow ids")
	return cmd
}

func workflowActivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate [workflow-id]",
		Short: "Activate workflows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, args, "activate", func(ctx context.Context, client *controlplane.Client, id string) error {
				return client.Activate(ctx, id)
			})
		},
	}
	cmd.Flags().StringSlice("ids", nil, "operate on several workflow ids")
	return cmd
}

func workflowDeactivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deactivate [workflow-id]",
		Short: "Deactivate workflows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, args, "deactivate", func(ctx context.Context, client *controlplane.Client, id string) error {
				return client.Deactivate(ctx, id)
			})
		},
	}
	cmd.Flags().StringSlice("ids", nil, "operate on several workflow ids")
	return cmd
}

func workflowExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions <workflow-id>",
		Short: "List recent executions of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := current.ControlPlane(cmd.Context())
			if err != nil {
				return err
			}
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			executions, err := client.GetExecutions(cmd.Context(), args[0], controlplane.ExecutionOptions{
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"workflowId": args[0], "executions": executions})
			}
			out := cmd.OutOrStdout()
			for _, e := range executions {
				fmt.Fprintf(out, "%-24s %-10s %s\n", e.ID, e.Status, e.StartedAt)
			}
			if len(executions) == 0 {
				fmt.Fprintln(out, "no executions")
			}
			return nil
		},
	}
	cmd.Flags().String("status", "", "filter by status (success, error, waiting)")
	cmd.Flags().Int("limit", 20, "maximum executions to list")
	return cmd
}

// bulkOutcome is one workflow's result in a fan-out run.
type bulkOutcome struct {
	WorkflowID string `json:"workflowId"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// runBulk executes an action for one id or a --ids set. Fan-out is capped;
// each workflow's mutation runs serially within its goroutine.
func runBulk(cmd *cobra.Command, args []string, action string, fn func(context.Context, *controlplane.Client, string) error) error {
	ctx := cmd.Context()
	ids, _ := cmd.Flags().GetStringSlice("ids")
	if len(args) == 1 {
		ids = append(ids, args[0])
	}
	if len(ids) == 0 {
		return exitWith(lifecycle.ExitUsage, fmt.Errorf("%s needs a workflow id or --ids", action))
	}
	client, err := current.ControlPlane(ctx)
	if err != nil {
		return err
	}

	outcomes := make([]bulkOutcome, len(ids))
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(current.cfg.Runtime.BulkLimit)
	for i, id := range ids {
		group.Go(func() error {
			err := fn(groupCtx, client, id)
			mu.Lock()
			defer mu.Unlock()
			outcomes[i] = bulkOutcome{WorkflowID: id, Success: err == nil}
			if err != nil {
				outcomes[i].Error = err.Error()
			}
			// Failures are reported per workflow, not propagated, so one
			// bad id does not cancel the rest.
			return nil
		})
	}
	_ = group.Wait()

	failed := 0
	for _, outcome := range outcomes {
		if !outcome.Success {
			failed++
		}
	}
	if jsonMode(cmd) {
		if err := printJSON(map[string]any{
			"success": failed == 0,
			"action":  action,
			"results": outcomes,
		}); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, outcome := range outcomes {
			if outcome.Success {
				fmt.Fprintf(out, "%s %s: ok\n", action, outcome.WorkflowID)
			} else {
				fmt.Fprintf(out, "%s %s: %s\n", action, outcome.WorkflowID, outcome.Error)
			}
		}
	}
	if failed > 0 {
		return exitWith(lifecycle.ExitProtocol, nil)
	}
	return nil
}
