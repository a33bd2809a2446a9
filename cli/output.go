package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
)

// jsonMode reports whether the command should emit machine-readable JSON.
func jsonMode(cmd *cobra.Command) bool {
	if flag, err := cmd.Flags().GetBool("json"); err == nil && flag {
		return true
	}
	return false
}

// printJSON renders v to stdout. On a TTY the document is pretty-printed
// and colorized; piped output stays compact for machine consumers.
func printJSON(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cli: encode output: %w", err)
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		encoded = pretty.Color(pretty.Pretty(encoded), nil)
	} else {
		encoded = append(encoded, '\n')
	}
	_, err = os.Stdout.Write(encoded)
	return err
}

// jsonError is the --json failure envelope.
type jsonError struct {
	Success bool          `json:"success"`
	Error   jsonErrorBody `json:"error"`
}

type jsonErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func printJSONError(code, message string, details any) error {
	return printJSON(jsonError{
		Success: false,
		Error:   jsonErrorBody{Code: code, Message: message, Details: details},
	})
}
