package cli

import (
	"fmt"
	"strings"

	"github.com/n8nkit/n8nctl/engine/catalog"
	"github.com/n8nkit/n8nctl/engine/changes"
	"github.com/n8nkit/n8nctl/engine/core"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/spf13/cobra"
)

// NodesCmd groups the catalog query commands.
func NodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Query the embedded node catalog",
	}
	cmd.AddCommand(nodesInfoCmd(), nodesSearchCmd(), nodesCategoriesCmd(), nodesBreakingChangesCmd())
	return cmd
}

func nodesInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <node-type>",
		Short: "Show a node definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := current.Catalog(cmd)
			if err != nil {
				renderError(cmd, "CATALOG_ERROR", err, "run with --catalog pointing at a nodes.db snapshot")
				return exitWith(lifecycle.ExitConfig, nil)
			}
			def, err := cat.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if def == nil {
				renderError(cmd, "UNKNOWN_NODE_TYPE",
					fmt.Errorf("node type %q is not in the catalog", args[0]),
					"try: n8nctl nodes search "+args[0])
				return exitWith(lifecycle.ExitData, nil)
			}
			if jsonMode(cmd) {
				return printJSON(def)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", def.DisplayName, def.NodeType)
			fmt.Fprintf(out, "  package:  %s\n", def.Package)
			fmt.Fprintf(out, "  category: %s\n", def.Category)
			fmt.Fprintf(out, "  version:  %s\n", def.Version)
			if def.Description != "" {
				fmt.Fprintf(out, "  %s\n", def.Description)
			}
			var flags []string
			if def.IsTrigger {
				flags = append(flags, "trigger")
			}
			if def.IsWebhook {
				flags = append(flags, "webhook")
			}
			if def.IsAITool {
				flags = append(flags, "ai-tool")
			}
			if len(flags) > 0 {
				fmt.Fprintf(out, "  flags:    %s\n", strings.Join(flags, ", "))
			}
			fmt.Fprintf(out, "  %d propert(ies), %d operation(s), %d credential(s)\n",
				len(def.Properties), len(def.Operations), len(def.Credentials))
			return nil
		},
	}
}

func nodesSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the node catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := current.Catalog(cmd)
			if err != nil {
				renderError(cmd, "CATALOG_ERROR", err, "run with --catalog pointing at a nodes.db snapshot")
				return exitWith(lifecycle.ExitConfig, nil)
			}
			modeFlag, _ := cmd.Flags().GetString("mode")
			limit, _ := cmd.Flags().GetInt("limit")
			mode := catalog.SearchOR
			switch strings.ToUpper(modeFlag) {
			case "AND":
				mode = catalog.SearchAND
			case "FUZZY":
				mode = catalog.SearchFuzzy
			}
			results, err := cat.Search(cmd.Context(), strings.Join(args, " "), mode, limit)
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"query": strings.Join(args, " "), "results": results})
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%-45s %s\n", r.NodeType, r.DisplayName)
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "no matches; try --mode FUZZY")
			}
			return nil
		},
	}
	cmd.Flags().String("mode", "OR", "search mode (OR, AND, FUZZY)")
	cmd.Flags().Int("limit", 20, "maximum results")
	return cmd
}

func nodesCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List node categories with counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := current.Catalog(cmd)
			if err != nil {
				renderError(cmd, "CATALOG_ERROR", err, "run with --catalog pointing at a nodes.db snapshot")
				return exitWith(lifecycle.ExitConfig, nil)
			}
			stats, err := cat.GetCategoryStats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode(cmd) {
				return printJSON(map[string]any{"categories": stats})
			}
			out := cmd.OutOrStdout()
			for _, s := range stats {
				fmt.Fprintf(out, "%-30s %d\n", s.Category, s.Count)
			}
			return nil
		},
	}
}

func nodesBreakingChangesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaking-changes <node-type>",
		Short: "Analyze breaking changes between two typeVersions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeType := workflow.NormalizeNodeType(args[0])
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			from, err := core.ParseVersion(fromFlag)
			if err != nil {
				return exitWith(lifecycle.ExitUsage, fmt.Errorf("invalid --from version %q: %w", fromFlag, err))
			}
			to := changes.LatestVersion(nodeType)
			if toFlag != "" {
				if to, err = core.ParseVersion(toFlag); err != nil {
					return exitWith(lifecycle.ExitUsage, fmt.Errorf("invalid --to version %q: %w", toFlag, err))
				}
			}
			if to.IsZero() {
				renderError(cmd, "BREAKING_CHANGE",
					fmt.Errorf("no tracked versions for node type %q", nodeType),
					"only catalog-tracked node types carry change records")
				return exitWith(lifecycle.ExitData, nil)
			}
			analysis := changes.AnalyzeUpgrade(nodeType, from, to)
			if jsonMode(cmd) {
				return printJSON(analysis)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s -> %s: %d change(s), breaking=%v, severity=%s\n",
				nodeType, from, to, len(analysis.Changes), analysis.HasBreaking, analysis.OverallSeverity)
			for _, ch := range analysis.Changes {
				auto := "manual"
				if ch.AutoMigratable {
					auto = "auto"
				}
				fmt.Fprintf(out, "  [%s/%s] %s %s: %s\n", ch.Severity, auto, ch.ChangeType, ch.PropertyName, ch.MigrationHint)
			}
			for _, rec := range analysis.Recommendations {
				fmt.Fprintf(out, "  -> %s\n", rec)
			}
			return nil
		},
	}
	cmd.Flags().String("from", "1", "current typeVersion")
	cmd.Flags().String("to", "", "target typeVersion (default: latest tracked)")
	return cmd
}
