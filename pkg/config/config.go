// Package config loads the CLI configuration from defaults, an optional
// YAML file, a .env file, and environment variables, in that precedence
// order.
package config

import "time"

// Config is the fully resolved CLI configuration.
type Config struct {
	API        APIConfig        `koanf:"api"`
	Validation ValidationConfig `koanf:"validation"`
	Storage    StorageConfig    `koanf:"storage"`
	Retry      RetryConfig      `koanf:"retry"`
	Runtime    RuntimeConfig    `koanf:"runtime"`
}

// APIConfig points at the control plane.
type APIConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"  validate:"min=0"`
}

// ValidationConfig sets validation defaults.
type ValidationConfig struct {
	Profile string `koanf:"profile" validate:"oneof=minimal runtime ai-friendly strict"`
}

// StorageConfig locates local durable state.
type StorageConfig struct {
	// Dir is the user-local state directory holding the version store and
	// file backups. Empty means ~/.n8nctl.
	Dir string `koanf:"dir"`
}

// RetryConfig tunes the collaborator retry policy.
type RetryConfig struct {
	MaxRetries    uint64        `koanf:"max_retries"    validate:"max=10"`
	BaseDelay     time.Duration `koanf:"base_delay"     validate:"min=0"`
	MaxDelay      time.Duration `koanf:"max_delay"      validate:"min=0"`
	JitterPercent uint64        `koanf:"jitter_percent" validate:"max=100"`
}

// RuntimeConfig tunes process behavior.
type RuntimeConfig struct {
	CleanupBudget time.Duration `koanf:"cleanup_budget" validate:"min=0"`
	BulkLimit     int           `koanf:"bulk_limit"     validate:"min=1,max=64"`
	// StrictPermissions rejects config files readable by group or others.
	StrictPermissions bool `koanf:"strict_permissions"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:5678/api/v1",
			Timeout: 30 * time.Second,
		},
		Validation: ValidationConfig{
			Profile: "runtime",
		},
		Retry: RetryConfig{
			MaxRetries:    3,
			BaseDelay:     1 * time.Second,
			MaxDelay:      10 * time.Second,
			JitterPercent: 25,
		},
		Runtime: RuntimeConfig{
			CleanupBudget: 5 * time.Second,
			BulkLimit:     8,
		},
	}
}
