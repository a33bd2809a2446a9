package cli

import (
	"fmt"
	"os"

	"github.com/n8nkit/n8nctl/engine/autofix"
	"github.com/n8nkit/n8nctl/engine/validate"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/spf13/cobra"
)

const maxHumanIssues = 10

// ValidateCmd checks a local workflow file.
func ValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow file against the node catalog",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().String("profile", "", "validation profile (minimal, runtime, ai-friendly, strict)")
	cmd.Flags().String("mode", "full", "validation mode (full, operation, minimal)")
	cmd.Flags().Bool("fix", false, "apply high-confidence fixes and write the file back")
	addParseFlags(cmd.Flags())
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	profileFlag, _ := cmd.Flags().GetString("profile")
	if profileFlag == "" {
		profileFlag = current.cfg.Validation.Profile
	}
	modeFlag, _ := cmd.Flags().GetString("mode")

	validator := validate.New(cat)
	result, err := validator.Validate(ctx, doc, validate.Options{
		Profile: validate.ParseProfile(profileFlag),
		Mode:    validate.Mode(modeFlag),
	})
	if err != nil {
		return err
	}

	fixed := false
	if apply, _ := cmd.Flags().GetBool("fix"); apply && len(result.Issues) > 0 {
		engine := autofix.NewEngine(cat)
		fixResult, err := engine.Run(ctx, doc, result, autofix.Options{
			ConfidenceThreshold: autofix.ConfidenceHigh,
			Apply:               true,
		})
		if err != nil {
			return err
		}
		if fixResult.AppliedCount > 0 {
			if err := writeWorkflowFile(args[0], fixResult.Workflow); err != nil {
				return err
			}
			fixed = true
			// Re-validate the written document.
			doc.Workflow = fixResult.Workflow
			result, err = validator.Validate(ctx, doc, validate.Options{
				Profile: validate.ParseProfile(profileFlag),
				Mode:    validate.Mode(modeFlag),
			})
			if err != nil {
				return err
			}
		}
	}

	if jsonMode(cmd) {
		if err := printJSON(map[string]any{
			"valid":    result.Valid,
			"source":   args[0],
			"errors":   len(result.Errors()),
			"warnings": len(result.Warnings()),
			"issues":   result.Issues,
			"fixed":    fixed,
		}); err != nil {
			return err
		}
	} else {
		printValidationHuman(cmd, args[0], result, fixed)
	}
	if !result.Valid {
		return exitWith(lifecycle.ExitData, nil)
	}
	return nil
}

func printValidationHuman(cmd *cobra.Command, source string, result *validate.Result, fixed bool) {
	out := cmd.OutOrStdout()
	if result.Valid {
		fmt.Fprintf(out, "%s is valid (%d warning(s))\n", source, len(result.Warnings()))
	} else {
		fmt.Fprintf(out, "%s failed validation: %d error(s), %d warning(s)\n",
			source, len(result.Errors()), len(result.Warnings()))
	}
	if fixed {
		fmt.Fprintln(out, "high-confidence fixes were applied and written back")
	}
	printIssueGroup(cmd, "error", result.Errors())
	printIssueGroup(cmd, "warning", result.Warnings())
}

func printIssueGroup(cmd *cobra.Command, label string, issues []validate.Issue) {
	out := cmd.OutOrStdout()
	shown := issues
	if len(shown) > maxHumanIssues {
		shown = shown[:maxHumanIssues]
	}
	for _, iss := range shown {
		where := iss.Location.Path
		if where == "" {
			where = iss.Location.NodeName
		}
		if iss.SourceLocation != nil {
			fmt.Fprintf(out, "  %s [%s] %s (%s, line %d)\n",
				label, iss.Code, iss.Message, where, iss.SourceLocation.Line)
		} else {
			fmt.Fprintf(out, "  %s [%s] %s (%s)\n", label, iss.Code, iss.Message, where)
		}
		for _, s := range iss.Suggestions {
			fmt.Fprintf(out, "        did you mean %q? (%.2f)\n", s.NodeType, s.Confidence)
		}
	}
	if len(issues) > maxHumanIssues {
		fmt.Fprintf(out, "  … and %d more %s(s); run with --json for the full set\n",
			len(issues)-maxHumanIssues, label)
	}
}

// loadDocument reads and parses a workflow file, mapping failures onto the
// CLI exit codes.
func loadDocument(cmd *cobra.Command, path string) (*workflow.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			renderError(cmd, "MISSING_INPUT", err, "check the file path")
			return nil, exitWith(lifecycle.ExitNoInput, nil)
		}
		return nil, err
	}
	repair, _ := cmd.Flags().GetBool("repair")
	js, _ := cmd.Flags().GetBool("js")
	doc, err := workflow.Parse(raw, workflow.ParseOptions{Repair: repair, AcceptJSObject: js})
	if err != nil {
		renderError(cmd, "PARSE_ERROR", err, "try --repair, or --js for object-literal input")
		return nil, exitWith(lifecycle.ExitData, nil)
	}
	return doc, nil
}

func writeWorkflowFile(path string, w *workflow.Workflow) error {
	out, err := workflow.Serialize(w)
	if err != nil {
		return err
	}
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("cli: write %s: %w", path, err)
	}
	return nil
}
