package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	str2duration "github.com/xhit/go-str2duration/v2"
)

const envPrefix = "N8NCTL_"

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// File is an explicit config file path; empty falls back to
	// $N8NCTL_CONFIG or <storage dir>/config.yaml when present.
	File string
	// EnvFile is a .env path loaded into the process environment first.
	// Empty loads ./.env when present.
	EnvFile string
}

// Load resolves the configuration: defaults, then the YAML file, then
// environment variables.
func Load(opts LoadOptions) (*Config, error) {
	loadDotEnv(opts.EnvFile)

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	path := resolveFile(opts.File)
	if path != "" {
		fileMap, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawMap(fileMap), nil); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	// Double underscores nest: N8NCTL_API__BASE_URL -> api.base_url. Single
	// underscores stay literal so keys like base_url survive.
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return strings.ReplaceAll(key, "__", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	cfg, err := unmarshal(k)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home dir: %w", err)
		}
		cfg.Storage.Dir = filepath.Join(home, ".n8nctl")
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	// Existing process variables win over .env entries.
	_ = godotenv.Load(path)
}

func resolveFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if fromEnv := os.Getenv("N8NCTL_CONFIG"); fromEnv != "" {
		return fromEnv
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".n8nctl", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// readFile parses the YAML config file after checking its permissions. A
// file readable by group or others is rejected outright: it may hold the
// API key.
func readFile(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf(
			"config: %s has permissions %04o, want 0600 or stricter (run: chmod 600 %s)",
			path, info.Mode().Perm(), path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return out, nil
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				durationDecodeHook,
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// durationDecodeHook parses human duration strings ("90s", "1h30m", "2d")
// into time.Duration.
func durationDecodeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	return str2duration.ParseDuration(data.(string))
}

func validate(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := strings.Split(fld.Tag.Get("koanf"), ",")[0]; name != "" {
			return name
		}
		return fld.Name
	})
	if err := v.Struct(cfg); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			field := invalid[0]
			return fmt.Errorf("config: invalid value for %s (%s=%v)",
				strings.ToLower(field.Namespace()), field.Tag(), field.Value())
		}
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}

// rawMap adapts an already-parsed map to a koanf provider.
type rawMapProvider struct {
	data map[string]any
}

func rawMap(data map[string]any) koanf.Provider {
	return &rawMapProvider{data: data}
}

func (p *rawMapProvider) Read() (map[string]any, error) {
	return p.data, nil
}

func (p *rawMapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("config: raw map provider does not support ReadBytes")
}
