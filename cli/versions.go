package cli

import (
	"errors"
	"fmt"

	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/versions"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/spf13/cobra"
)

// VersionsCmd groups the local version-history commands.
func VersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and manage the local workflow version history",
	}
	cmd.AddCommand(
		versionsListCmd(),
		versionsShowCmd(),
		versionsCompareCmd(),
		versionsPruneCmd(),
		versionsDeleteCmd(),
		versionsStatsCmd(),
		versionsRestoreCmd(),
	)
	return cmd
}

func openVersionStore(cmd *cobra.Command) (*versions.Store, error) {
	store, err := current.VersionStore(cmd.Context())
	if err != nil {
		renderError(cmd, "STORE_ERROR", err, "check --store-dir and directory permissions")
		return nil, exitWith(lifecycle.ExitConfig, nil)
	}
	return store, nil
}

func versionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <workflow-id>",
		Short: "List stored versions of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			records, err := store.ListVersions(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"workflowId": args[0], "versions": withoutSnapshots(records)})
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				fmt.Fprintf(out, "v%-4d %-14s %s  %s  %s\n",
					rec.VersionNumber, rec.Trigger, rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.ID, rec.WorkflowName)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "no stored versions")
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum versions to list (0 for all)")
	return cmd
}

// withoutSnapshots strips the heavy snapshot payloads for listings.
func withoutSnapshots(records []*versions.Record) []*versions.Record {
	out := make([]*versions.Record, 0, len(records))
	for _, rec := range records {
		clone := *rec
		clone.Snapshot = nil
		out = append(out, &clone)
	}
	return out
}

func versionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <version-id>",
		Short: "Show one stored version including its snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, versions.ErrVersionNotFound) {
					renderError(cmd, "VERSION_NOT_FOUND", err, "list versions with: n8nctl versions list <workflow-id>")
					return exitWith(lifecycle.ExitData, nil)
				}
				return err
			}
			if jsonMode(cmd) {
				return printJSON(rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version %d of %s (%s)\n", rec.VersionNumber, rec.WorkflowID, rec.WorkflowName)
			fmt.Fprintf(out, "  id:      %s\n", rec.ID)
			fmt.Fprintf(out, "  trigger: %s\n", rec.Trigger)
			fmt.Fprintf(out, "  created: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "  nodes:   %d\n", len(rec.Snapshot.Nodes))
			return nil
		},
	}
}

func versionsCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <version-id-1> <version-id-2>",
		Short: "Diff two stored versions of the same workflow",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			cmp, err := store.Compare(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(cmp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "v%d -> v%d\n", cmp.FromVersion, cmp.ToVersion)
			for _, n := range cmp.AddedNodes {
				fmt.Fprintf(out, "  + %s\n", n)
			}
			for _, n := range cmp.RemovedNodes {
				fmt.Fprintf(out, "  - %s\n", n)
			}
			for _, n := range cmp.ModifiedNodes {
				fmt.Fprintf(out, "  ~ %s\n", n)
			}
			fmt.Fprintf(out, "  %d connection change(s), %d setting change(s)\n",
				cmp.ConnectionChanges, len(cmp.SettingChanges))
			return nil
		},
	}
}

func versionsPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune <workflow-id>",
		Short: "Delete all but the newest versions of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			keep, _ := cmd.Flags().GetInt("keep")
			removed, err := store.Prune(cmd.Context(), args[0], keep)
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"workflowId": args[0], "removed": removed, "kept": keep})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d version(s), keeping the newest %d\n", removed, keep)
			return nil
		},
	}
	cmd.Flags().Int("keep", 10, "number of versions to keep")
	return cmd
}

func versionsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <version-id>",
		Short: "Delete one stored version, or a workflow's whole history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			if all, _ := cmd.Flags().GetBool("all"); all {
				removed, err := store.DeleteAllVersions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonMode(cmd) {
					return printJSON(map[string]any{"workflowId": args[0], "removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d version(s) of %s\n", removed, args[0])
				return nil
			}
			if err := store.DeleteVersion(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, versions.ErrVersionNotFound) {
					renderError(cmd, "VERSION_NOT_FOUND", err, "list versions with: n8nctl versions list <workflow-id>")
					return exitWith(lifecycle.ExitData, nil)
				}
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted version %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "treat the argument as a workflow id and delete its whole history")
	return cmd
}

func versionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the version store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d version(s), %d byte(s) total\n", stats.TotalVersions, stats.TotalSize)
			for _, ws := range stats.PerWorkflow {
				fmt.Fprintf(out, "  %-30s %4d version(s) %10d byte(s)\n", ws.WorkflowID, ws.Versions, ws.Size)
			}
			return nil
		},
	}
}

func versionsRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <workflow-id>",
		Short: "Roll a workflow back to a stored version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openVersionStore(cmd)
			if err != nil {
				return err
			}
			client, err := current.ControlPlane(ctx)
			if err != nil {
				return err
			}
			var validator *validate.Validator
			skipValidation, _ := cmd.Flags().GetBool("skip-validation")
			if !skipValidation {
				cat, catErr := current.Catalog(cmd)
				if catErr != nil {
					renderError(cmd, "CATALOG_ERROR", catErr,
						"restore validation needs the catalog; pass --skip-validation to bypass")
					return exitWith(lifecycle.ExitConfig, nil)
				}
				validator = validate.New(cat)
			}
			versionNumber, _ := cmd.Flags().GetInt("version")
			result, err := store.Restore(ctx, client, validator, args[0], versions.RestoreOptions{
				VersionNumber:  versionNumber,
				SkipValidation: skipValidation,
			})
			if err != nil {
				if errors.Is(err, versions.ErrVersionNotFound) {
					renderError(cmd, "VERSION_NOT_FOUND", err, "list versions with: n8nctl versions list "+args[0])
					return exitWith(lifecycle.ExitData, nil)
				}
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{
					"success":          true,
					"workflowId":       result.WorkflowID,
					"restoredVersion":  result.RestoredVersion,
					"preRestoreBackup": result.PreRestoreBackup.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to version %d (pre-restore backup: v%d)\n",
				result.WorkflowID, result.RestoredVersion, result.PreRestoreBackup.VersionNumber)
			return nil
		},
	}
	cmd.Flags().Int("version", 0, "version number to restore (default: latest)")
	cmd.Flags().Bool("skip-validation", false, "push the snapshot without validating it")
	return cmd
}
