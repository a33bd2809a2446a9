// Package lifecycle owns process shutdown: signal handling, ordered cleanup
// under a time budget, and exit codes.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/n8nkit/n8nctl/pkg/logger"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFatal       = 1
	ExitUsage       = 64
	ExitData        = 65
	ExitNoInput     = 66
	ExitIO          = 70
	ExitTransient   = 71
	ExitProtocol    = 72
	ExitAuth        = 73
	ExitConfig      = 78
	ExitInterrupted = 130
	ExitTerminated  = 143
)

// DefaultCleanupBudget bounds how long cleanup may run after a signal.
const DefaultCleanupBudget = 5 * time.Second

type cleanup struct {
	name string
	fn   func(context.Context) error
}

// Manager tracks cleanup functions and the signal that ended the process.
// Cleanups run in registration order: version-store flush registers before
// catalog close, which registers before anything holding file handles.
type Manager struct {
	mu       sync.Mutex
	cleanups []cleanup
	budget   time.Duration
	received os.Signal
}

// New builds a manager. A non-positive budget uses the default.
func New(budget time.Duration) *Manager {
	if budget <= 0 {
		budget = DefaultCleanupBudget
	}
	return &Manager{budget: budget}
}

// Context returns a context canceled on SIGINT, SIGTERM, or SIGHUP. SIGPIPE
// is ignored so piped output closing early does not kill the process.
func (m *Manager) Context(parent context.Context) (context.Context, context.CancelFunc) {
	signal.Ignore(syscall.SIGPIPE)
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		select {
		case sig := <-ch:
			m.mu.Lock()
			m.received = sig
			m.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

// OnCleanup registers a named cleanup step.
func (m *Manager) OnCleanup(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, cleanup{name: name, fn: fn})
}

// Shutdown runs every cleanup in registration order under the budget. When
// the budget is exceeded the process force-exits with code 1.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	steps := make([]cleanup, len(m.cleanups))
	copy(steps, m.cleanups)
	m.cleanups = nil
	budget := m.budget
	m.mu.Unlock()
	if len(steps) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		log := logger.FromContext(ctx)
		for _, step := range steps {
			if err := step.fn(ctx); err != nil {
				log.Warn("cleanup step failed", "step", step.name, "error", err)
			}
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.NewLogger(nil).Error("cleanup budget exceeded, forcing exit", "budget", budget)
		os.Exit(ExitFatal)
	}
}

// SignalExitCode returns the exit code for a received signal, or zero when
// the process was not signaled.
func (m *Manager) SignalExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.received {
	case syscall.SIGINT:
		return ExitInterrupted
	case syscall.SIGTERM, syscall.SIGHUP:
		return ExitTerminated
	default:
		return 0
	}
}
