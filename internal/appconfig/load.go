package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses
// DefaultConfigPath. A missing file yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("catalog.driver", cfg.Catalog.Driver)
	v.SetDefault("catalog.path", cfg.Catalog.Path)
	v.SetDefault("catalog.deep", cfg.Catalog.Deep)
	v.SetDefault("workspace.user", cfg.Workspace.User)
	v.SetDefault("workspace.groups", cfg.Workspace.Groups)
	v.SetDefault("providers.order", cfg.Providers.Order)
	v.SetDefault("fetch.timeout_seconds", cfg.Fetch.TimeoutSeconds)
	v.SetDefault("fetch.root_retries", cfg.Fetch.RootRetries)
	v.SetDefault("fetch.child_retries", cfg.Fetch.ChildRetries)
	v.SetDefault("fetch.backoff_base_ms", cfg.Fetch.BackoffBaseMillis)
	v.SetDefault("fetch.backoff_cap_ms", cfg.Fetch.BackoffCapMillis)
	v.SetDefault("fetch.root_cache_ttl_seconds", cfg.Fetch.RootCacheTTLSeconds)
	v.SetDefault("fetch.child_cache_ttl_seconds", cfg.Fetch.ChildCacheTTLSeconds)
	v.SetDefault("fetch.save_debounce_ms", cfg.Fetch.SaveDebounceMillis)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	switch cfg.Catalog.Driver {
	case "sqlite3":
	default:
		return fmt.Errorf("unsupported catalog.driver %q", cfg.Catalog.Driver)
	}
	if cfg.Catalog.Path == "" {
		return fmt.Errorf("catalog.path must not be empty")
	}
	if len(cfg.Providers.Order) == 0 {
		return fmt.Errorf("providers.order must list at least one provider")
	}
	seen := make(map[string]bool)
	for _, name := range cfg.Providers.Order {
		switch name {
		case ProviderCatalog, ProviderWorkspace:
		default:
			return fmt.Errorf("unknown provider %q in providers.order", name)
		}
		if seen[name] {
			return fmt.Errorf("provider %q listed twice in providers.order", name)
		}
		seen[name] = true
	}
	for key, value := range map[string]int{
		"fetch.timeout_seconds":         cfg.Fetch.TimeoutSeconds,
		"fetch.root_retries":            cfg.Fetch.RootRetries,
		"fetch.child_retries":           cfg.Fetch.ChildRetries,
		"fetch.backoff_base_ms":         cfg.Fetch.BackoffBaseMillis,
		"fetch.backoff_cap_ms":          cfg.Fetch.BackoffCapMillis,
		"fetch.root_cache_ttl_seconds":  cfg.Fetch.RootCacheTTLSeconds,
		"fetch.child_cache_ttl_seconds": cfg.Fetch.ChildCacheTTLSeconds,
		"fetch.save_debounce_ms":        cfg.Fetch.SaveDebounceMillis,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Catalog.Path = expandEnv(cfg.Catalog.Path)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
