package cli

import (
	"fmt"

	"github.com/n8nkit/n8nctl/engine/autofix"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/spf13/cobra"
)

// AutofixCmd previews or applies fixes for a workflow file.
func AutofixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autofix <file>",
		Short: "Generate and optionally apply fixes for a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE:  runAutofix,
	}
	cmd.Flags().Bool("apply", false, "write fixes to the file (default is preview)")
	cmd.Flags().StringSlice("fix-types", nil, "restrict to the listed fix types")
	cmd.Flags().String("confidence", "", "minimum confidence (high, medium, low)")
	cmd.Flags().Int("max-fixes", 0, "cap the number of fixes (default 50)")
	cmd.Flags().Bool("upgrade-versions", false, "include typeVersion upgrades and migration guidance")
	cmd.Flags().String("output", "", "write the fixed workflow to this path instead of in place")
	addParseFlags(cmd.Flags())
	return cmd
}

func runAutofix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	doc, err := loadDocument(cmd, args[0])
	if err != nil {
		return err
	}
	cat, err := current.Catalog(cmd)
	if err != nil {
		renderError(cmd, "CATALOG_ERROR", err, "run with --catalog pointing at a nodes.db snapshot")
		return exitWith(lifecycle.ExitConfig, nil)
	}

	validator := validate.New(cat)
	validation, err := validator.Validate(ctx, doc, validate.Options{Profile: validate.ProfileAIFriendly})
	if err != nil {
		return err
	}

	apply, _ := cmd.Flags().GetBool("apply")
	fixTypeFlags, _ := cmd.Flags().GetStringSlice("fix-types")
	confidence, _ := cmd.Flags().GetString("confidence")
	maxFixes, _ := cmd.Flags().GetInt("max-fixes")
	upgrade, _ := cmd.Flags().GetBool("upgrade-versions")

	var fixTypes []autofix.FixType
	for _, t := range fixTypeFlags {
		fixTypes = append(fixTypes, autofix.FixType(t))
	}
	engine := autofix.NewEngine(cat)
	result, err := engine.Run(ctx, doc, validation, autofix.Options{
		FixTypes:            fixTypes,
		ConfidenceThreshold: autofix.Confidence(confidence),
		MaxFixes:            maxFixes,
		Apply:               apply,
		UpgradeVersions:     upgrade,
	})
	if err != nil {
		return err
	}

	savedTo := ""
	if apply && result.AppliedCount > 0 {
		target, _ := cmd.Flags().GetString("output")
		if target == "" {
			target = args[0]
		}
		if err := writeWorkflowFile(target, result.Workflow); err != nil {
			return err
		}
		savedTo = target
	}

	if jsonMode(cmd) {
		payload := map[string]any{
			"success": true,
			"fixes": map[string]any{
				"total":        len(result.Fixes),
				"applied":      result.AppliedCount,
				"skipped":      result.SkippedCount,
				"byConfidence": result.Stats.ByConfidence,
				"byType":       result.Stats.ByType,
			},
			"operations": result.Fixes,
		}
		if len(result.Guidance) > 0 {
			payload["postUpdateGuidance"] = result.Guidance
		}
		if savedTo != "" {
			payload["savedTo"] = savedTo
		}
		return printJSON(payload)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Summary)
	for _, fix := range result.Fixes {
		fmt.Fprintf(out, "  [%s/%s] %s: %s\n", fix.FixType, fix.Confidence, fix.NodeName, fix.Description)
	}
	for _, g := range result.Guidance {
		fmt.Fprintf(out, "  after update, %s: %s (%s)\n", g.NodeName, g.MigrationStatus, g.EstimatedTime)
		for _, action := range g.RequiredActions {
			fmt.Fprintf(out, "    - %s\n", action)
		}
	}
	if savedTo != "" {
		fmt.Fprintf(out, "written to %s\n", savedTo)
	}
	return nil
}
