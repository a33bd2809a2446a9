package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/n8nkit/n8nctl/engine/catalog"
	"github.com/n8nkit/n8nctl/engine/controlplane"
	"github.com/n8nkit/n8nctl/engine/versions"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/config"
	"github.com/n8nkit/n8nctl/pkg/lifecycle"
	"github.com/n8nkit/n8nctl/pkg/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// app holds lazily-opened shared services. Teardown order is fixed: the
// version store flushes before the catalog closes.
type app struct {
	cfg       *config.Config
	life      *lifecycle.Manager
	mu        sync.Mutex
	catalog   *catalog.Catalog
	store     *versions.Store
	storeErr  error
	backup    *versions.FileBackup
	client    *controlplane.Client
	clientErr error
}

var current *app

func initApp(cmd *cobra.Command) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(config.LoadOptions{File: configFile})
	if err != nil {
		return exitWith(lifecycle.ExitConfig, err)
	}
	if url, _ := cmd.Flags().GetString("api-url"); url != "" {
		cfg.API.BaseURL = url
	}
	if key, _ := cmd.Flags().GetString("api-key"); key != "" {
		cfg.API.APIKey = key
	}
	if dir, _ := cmd.Flags().GetString("store-dir"); dir != "" {
		cfg.Storage.Dir = dir
	}
	current = &app{cfg: cfg, life: lifecycle.New(cfg.Runtime.CleanupBudget)}
	return nil
}

// Catalog opens the node database on first use. The path defaults to
// nodes.db in the storage directory.
func (a *app) Catalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.catalog != nil {
		return a.catalog, nil
	}
	path, _ := cmd.Flags().GetString("catalog")
	if path == "" {
		path = os.Getenv("N8NCTL_CATALOG")
	}
	if path == "" {
		path = filepath.Join(a.cfg.Storage.Dir, "nodes.db")
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	a.catalog = cat
	a.life.OnCleanup("close catalog", func(context.Context) error {
		return cat.Close()
	})
	return cat, nil
}

// VersionStore opens the durable history on first use. When the store cannot
// be opened the caller may fall back to FileBackup.
func (a *app) VersionStore(ctx context.Context) (*versions.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil || a.storeErr != nil {
		return a.store, a.storeErr
	}
	store, err := versions.Open(ctx, filepath.Join(a.cfg.Storage.Dir, "versions"))
	if err != nil {
		a.storeErr = err
		return nil, err
	}
	a.store = store
	a.life.OnCleanup("flush version store", func(context.Context) error {
		return store.Close()
	})
	return store, nil
}

// FileBackup is the fallback snapshot store for when the version database is
// unavailable.
func (a *app) FileBackup() *versions.FileBackup {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backup == nil {
		a.backup = versions.NewFileBackup(afero.NewOsFs(), filepath.Join(a.cfg.Storage.Dir, "backups"))
	}
	return a.backup
}

// ControlPlane builds the API client on first use.
func (a *app) ControlPlane(ctx context.Context) (*controlplane.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil || a.clientErr != nil {
		return a.client, a.clientErr
	}
	if a.cfg.API.APIKey == "" {
		a.clientErr = exitWith(lifecycle.ExitConfig,
			fmt.Errorf("API key is required (set api.api_key in config, N8NCTL_API__API_KEY, or --api-key)"))
		return nil, a.clientErr
	}
	retry := retryPolicy(a.cfg)
	client, err := controlplane.NewClient(controlplane.Config{
		BaseURL: a.cfg.API.BaseURL,
		APIKey:  a.cfg.API.APIKey,
		Timeout: a.cfg.API.Timeout,
		Retry:   &retry,
	})
	if err != nil {
		a.clientErr = exitWith(lifecycle.ExitConfig, err)
		return nil, a.clientErr
	}
	a.client = client
	return client, nil
}

// retryPolicy maps the configured retry tuning onto the client's backoff.
func retryPolicy(cfg *config.Config) controlplane.Policy {
	return controlplane.Policy{
		Base:          cfg.Retry.BaseDelay,
		Cap:           cfg.Retry.MaxDelay,
		MaxRetries:    cfg.Retry.MaxRetries,
		JitterPercent: cfg.Retry.JitterPercent,
	}
}

// backupBeforeWrite stores a snapshot ahead of any control-plane write,
// falling back to a file backup when the version store is unavailable.
func (a *app) backupBeforeWrite(ctx context.Context, workflowID string, snapshot *workflow.Workflow, trigger versions.Trigger, opts ...versions.BackupOption) {
	log := logger.FromContext(ctx)
	store, err := a.VersionStore(ctx)
	if err == nil {
		_, backupErr := store.CreateBackup(ctx, workflowID, snapshot, trigger, opts...)
		if backupErr == nil {
			return
		}
		log.Warn("version store backup failed, falling back to file backup", "error", backupErr)
	} else {
		log.Warn("version store unavailable, falling back to file backup", "error", err)
	}
	if path, err := a.FileBackup().Save(workflowID, snapshot); err != nil {
		log.Warn("file backup failed", "error", err)
	} else {
		log.Debug("file backup written", "path", path)
	}
}
