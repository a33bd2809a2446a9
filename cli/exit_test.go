package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n8nkit/n8nctl/cli/helpers"
	"github.com/n8nkit/n8nctl/engine/controlplane"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
)

func TestExitCodeFor(t *testing.T) {
	t.Run("Should map nil to success", func(t *testing.T) {
		assert.Equal(t, lifecycle.ExitOK, ExitCodeFor(nil))
	})
	t.Run("Should honor an explicit exit code even when wrapped", func(t *testing.T) {
		err := exitWith(lifecycle.ExitUsage, errors.New("unknown flag"))
		assert.Equal(t, lifecycle.ExitUsage, ExitCodeFor(err))
		assert.Equal(t, lifecycle.ExitConfig, ExitCodeFor(
			fmt.Errorf("startup: %w", exitWith(lifecycle.ExitConfig, errors.New("bad config")))))
	})
	t.Run("Should map parse failures to the data code", func(t *testing.T) {
		err := &workflow.ParseError{Code: "SYNTAX_ERROR", Message: "unexpected token", Line: 3}
		assert.Equal(t, lifecycle.ExitData, ExitCodeFor(fmt.Errorf("load: %w", err)))
	})
	t.Run("Should map missing input files", func(t *testing.T) {
		assert.Equal(t, lifecycle.ExitNoInput, ExitCodeFor(fmt.Errorf("open: %w", fs.ErrNotExist)))
	})
	t.Run("Should map control plane error classes", func(t *testing.T) {
		cases := []struct {
			code string
			want int
		}{
			{controlplane.CodeAuthError, lifecycle.ExitAuth},
			{controlplane.CodeRateLimitError, lifecycle.ExitTransient},
			{controlplane.CodeConnectionError, lifecycle.ExitIO},
			{controlplane.CodeNoResponse, lifecycle.ExitIO},
			{controlplane.CodeValidationRejected, lifecycle.ExitProtocol},
			{controlplane.CodeAPIError, lifecycle.ExitProtocol},
		}
		for _, tc := range cases {
			err := fmt.Errorf("call: %w", &controlplane.Error{Code: tc.code, Message: "x"})
			assert.Equal(t, tc.want, ExitCodeFor(err), tc.code)
		}
	})
	t.Run("Should map helper sentinel errors", func(t *testing.T) {
		assert.Equal(t, lifecycle.ExitAuth, ExitCodeFor(helpers.NewAuthError("bad key")))
		assert.Equal(t, lifecycle.ExitTransient, ExitCodeFor(&helpers.RateLimitError{Operation: "push"}))
		assert.Equal(t, lifecycle.ExitIO, ExitCodeFor(helpers.NewNetworkError("pull", errors.New("refused"))))
		assert.Equal(t, lifecycle.ExitIO, ExitCodeFor(helpers.NewTimeoutError("pull", "30s")))
		assert.Equal(t, lifecycle.ExitProtocol, ExitCodeFor(&helpers.ProtocolError{Operation: "list", Status: 500}))
	})
	t.Run("Should fall back to the fatal code", func(t *testing.T) {
		assert.Equal(t, lifecycle.ExitFatal, ExitCodeFor(errors.New("something else")))
	})
}
