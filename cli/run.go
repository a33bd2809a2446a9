package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/n8nkit/n8nctl/pkg/logger"
	"github.com/spf13/cobra"
)

// Run executes the CLI and returns the process exit code. Signals cancel
// the command context; cleanup runs before the code is returned either way.
func Run() int {
	root := RootCmd()
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return exitWith(lifecycle.ExitUsage, err)
	})

	life := lifecycle.New(0)
	ctx, cancel := life.Context(context.Background())
	defer cancel()
	ctx = logger.ContextWithLogger(ctx, logger.FromContext(nil))

	err := root.ExecuteContext(ctx)

	if current != nil {
		// The app's manager carries the configured budget and the
		// registered cleanups.
		current.life.Shutdown()
	}
	life.Shutdown()

	if sigCode := life.SignalExitCode(); sigCode != 0 {
		return sigCode
	}
	if err == nil {
		return lifecycle.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		// The command already rendered its error.
		return exitErr.Code
	}
	root.PrintErrln("error:", err)
	if strings.HasPrefix(err.Error(), "unknown command") ||
		strings.HasPrefix(err.Error(), "accepts ") ||
		strings.HasPrefix(err.Error(), "requires ") {
		return lifecycle.ExitUsage
	}
	return ExitCodeFor(err)
}
