// Package cli wires the n8nctl commands: validate, autofix, diff, nodes,
// versions, and workflow, with a shared --json output contract and stable
// exit codes.
package cli

import (
	"fmt"

	"github.com/n8nkit/n8nctl/pkg/logger"
	"github.com/spf13/cobra"
)

// RootCmd builds the command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "n8nctl",
		Short:         "Validate, fix, and deploy n8n workflows from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logLevel, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
			if err != nil {
				return err
			}
			logger.SetupLogger(logLevel, logJSON, logSource)
			return initApp(cmd)
		},
	}

	root.PersistentFlags().Bool("json", false, "emit machine-readable JSON output")
	root.PersistentFlags().String("config", "", "config file path (default ~/.n8nctl/config.yaml)")
	root.PersistentFlags().String("api-url", "", "control plane base URL")
	root.PersistentFlags().String("api-key", "", "control plane API key")
	root.PersistentFlags().String("store-dir", "", "local state directory (default ~/.n8nctl)")
	root.PersistentFlags().String("catalog", "", "node catalog database path (default <store-dir>/nodes.db)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "log in JSON format")
	root.PersistentFlags().Bool("log-source", false, "include source positions in logs")

	root.AddCommand(
		ValidateCmd(),
		AutofixCmd(),
		DiffCmd(),
		NodesCmd(),
		VersionsCmd(),
		WorkflowCmd(),
	)
	return root
}

// renderError prints an error the way the output contract wants it: a JSON
// envelope in --json mode, a single short line otherwise. Stack traces never
// reach the user.
func renderError(cmd *cobra.Command, code string, err error, hint string) {
	if jsonMode(cmd) {
		_ = printJSONError(code, err.Error(), nil)
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "error [%s]: %v\n", code, err)
	if hint != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "hint: %s\n", hint)
	}
}
