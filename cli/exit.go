package cli

import (
	"errors"
	"io/fs"

	"github.com/n8nkit/n8nctl/cli/helpers"
	"github.com/n8nkit/n8nctl/engine/controlplane"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
)

// ExitError carries an explicit process exit code alongside the cause.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "exit"
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitWith(code int, err error) error {
	return &ExitError{Code: code, Err: err}
}

// ExitCodeFor maps an error to its process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return lifecycle.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var parseErr *workflow.ParseError
	if errors.As(err, &parseErr) {
		return lifecycle.ExitData
	}
	if errors.Is(err, fs.ErrNotExist) {
		return lifecycle.ExitNoInput
	}
	var cpErr *controlplane.Error
	if errors.As(err, &cpErr) {
		switch cpErr.Code {
		case controlplane.CodeAuthError:
			return lifecycle.ExitAuth
		case controlplane.CodeRateLimitError:
			return lifecycle.ExitTransient
		case controlplane.CodeConnectionError, controlplane.CodeNoResponse:
			return lifecycle.ExitIO
		case controlplane.CodeValidationRejected, controlplane.CodeAPIError:
			return lifecycle.ExitProtocol
		}
	}
	switch {
	case errors.Is(err, helpers.ErrAuth):
		return lifecycle.ExitAuth
	case errors.Is(err, helpers.ErrRateLimit):
		return lifecycle.ExitTransient
	case errors.Is(err, helpers.ErrNetwork), errors.Is(err, helpers.ErrTimeout):
		return lifecycle.ExitIO
	case errors.Is(err, helpers.ErrProtocol):
		return lifecycle.ExitProtocol
	}
	return lifecycle.ExitFatal
}
