package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestDefault(t *testing.T) {
	t.Run("Should carry the built-in defaults", func(t *testing.T) {
		cfg := Default()
		assert.Equal(t, "http://localhost:5678/api/v1", cfg.API.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.Equal(t, "runtime", cfg.Validation.Profile)
		assert.Equal(t, uint64(3), cfg.Retry.MaxRetries)
		assert.Equal(t, 1*time.Second, cfg.Retry.BaseDelay)
		assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
		assert.Equal(t, uint64(25), cfg.Retry.JitterPercent)
		assert.Equal(t, 5*time.Second, cfg.Runtime.CleanupBudget)
		assert.Equal(t, 8, cfg.Runtime.BulkLimit)
	})
}

func TestLoad(t *testing.T) {
	t.Run("Should fall back to defaults without any sources", func(t *testing.T) {
		home := isolateHome(t)
		cfg, err := Load(LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:5678/api/v1", cfg.API.BaseURL)
		assert.Equal(t, "runtime", cfg.Validation.Profile)
		assert.Equal(t, filepath.Join(home, ".n8nctl"), cfg.Storage.Dir)
	})
	t.Run("Should merge file values over defaults", func(t *testing.T) {
		isolateHome(t)
		path := writeConfig(t, `
api:
  base_url: https://n8n.internal/api/v1
  timeout: 90s
validation:
  profile: strict
retry:
  max_retries: 5
runtime:
  bulk_limit: 16
`, 0o600)
		cfg, err := Load(LoadOptions{File: path})
		require.NoError(t, err)
		assert.Equal(t, "https://n8n.internal/api/v1", cfg.API.BaseURL)
		assert.Equal(t, 90*time.Second, cfg.API.Timeout)
		assert.Equal(t, "strict", cfg.Validation.Profile)
		assert.Equal(t, uint64(5), cfg.Retry.MaxRetries)
		assert.Equal(t, 16, cfg.Runtime.BulkLimit)
		assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	})
	t.Run("Should parse extended duration forms", func(t *testing.T) {
		isolateHome(t)
		path := writeConfig(t, "api:\n  timeout: 1d\n", 0o600)
		cfg, err := Load(LoadOptions{File: path})
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, cfg.API.Timeout)
	})
	t.Run("Should reject a config file readable by others", func(t *testing.T) {
		isolateHome(t)
		path := writeConfig(t, "validation:\n  profile: strict\n", 0o644)
		_, err := Load(LoadOptions{File: path})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chmod 600")
	})
	t.Run("Should let environment variables override the file", func(t *testing.T) {
		isolateHome(t)
		path := writeConfig(t, "validation:\n  profile: strict\n", 0o600)
		t.Setenv("N8NCTL_VALIDATION__PROFILE", "minimal")
		t.Setenv("N8NCTL_API__BASE_URL", "https://override.example/api/v1")
		t.Setenv("N8NCTL_API__TIMEOUT", "45s")
		cfg, err := Load(LoadOptions{File: path})
		require.NoError(t, err)
		assert.Equal(t, "minimal", cfg.Validation.Profile)
		assert.Equal(t, "https://override.example/api/v1", cfg.API.BaseURL)
		assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	})
	t.Run("Should resolve the file from N8NCTL_CONFIG", func(t *testing.T) {
		isolateHome(t)
		path := writeConfig(t, "validation:\n  profile: ai-friendly\n", 0o600)
		t.Setenv("N8NCTL_CONFIG", path)
		cfg, err := Load(LoadOptions{})
		require.NoError(t, err)
		assert.Equal(t, "ai-friendly", cfg.Validation.Profile)
	})
	t.Run("Should load a .env file without clobbering existing variables", func(t *testing.T) {
		isolateHome(t)
		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile,
			[]byte("N8NCTL_VALIDATION__PROFILE=ai-friendly\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("N8NCTL_VALIDATION__PROFILE") })
		cfg, err := Load(LoadOptions{EnvFile: envFile})
		require.NoError(t, err)
		assert.Equal(t, "ai-friendly", cfg.Validation.Profile)
	})
	t.Run("Should reject an unknown validation profile", func(t *testing.T) {
		isolateHome(t)
		t.Setenv("N8NCTL_VALIDATION__PROFILE", "bogus")
		_, err := Load(LoadOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation.profile")
	})
	t.Run("Should reject an out-of-range bulk limit", func(t *testing.T) {
		isolateHome(t)
		t.Setenv("N8NCTL_RUNTIME__BULK_LIMIT", "128")
		_, err := Load(LoadOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bulk_limit")
	})
	t.Run("Should reject a malformed base URL", func(t *testing.T) {
		isolateHome(t)
		t.Setenv("N8NCTL_API__BASE_URL", "not a url")
		_, err := Load(LoadOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
	})
}
