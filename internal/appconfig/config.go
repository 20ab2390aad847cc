package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/canopy/internal/catalog"
	"pkt.systems/canopy/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string          `mapstructure:"state_dir" yaml:"state_dir"`
	Catalog       CatalogConfig   `mapstructure:"catalog" yaml:"catalog"`
	Workspace     WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	Providers     ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Fetch         FetchConfig     `mapstructure:"fetch" yaml:"fetch"`
	Logging       LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Names accepted in providers.order.
const (
	ProviderCatalog   = "catalog"
	ProviderWorkspace = "workspace"
)

// CatalogConfig configures the catalog backend.
type CatalogConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
	Deep   bool   `mapstructure:"deep" yaml:"deep"`
}

// WorkspaceConfig is the account the workspace provider browses for.
type WorkspaceConfig struct {
	User   string   `mapstructure:"user" yaml:"user"`
	Groups []string `mapstructure:"groups" yaml:"groups"`
}

// ProvidersConfig selects and orders the registered providers. Order
// determines root display order.
type ProvidersConfig struct {
	Order []string `mapstructure:"order" yaml:"order"`
}

// FetchConfig controls fetch scheduling: attempt timeout, retry budgets,
// backoff and result TTLs.
type FetchConfig struct {
	TimeoutSeconds       int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RootRetries          int `mapstructure:"root_retries" yaml:"root_retries"`
	ChildRetries         int `mapstructure:"child_retries" yaml:"child_retries"`
	BackoffBaseMillis    int `mapstructure:"backoff_base_ms" yaml:"backoff_base_ms"`
	BackoffCapMillis     int `mapstructure:"backoff_cap_ms" yaml:"backoff_cap_ms"`
	RootCacheTTLSeconds  int `mapstructure:"root_cache_ttl_seconds" yaml:"root_cache_ttl_seconds"`
	ChildCacheTTLSeconds int `mapstructure:"child_cache_ttl_seconds" yaml:"child_cache_ttl_seconds"`
	SaveDebounceMillis   int `mapstructure:"save_debounce_ms" yaml:"save_debounce_ms"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".canopy", "state"),
		Catalog: CatalogConfig{
			Driver: "sqlite3",
			Path:   filepath.Join(home, ".canopy", "catalog.db"),
			Deep:   false,
		},
		Workspace: WorkspaceConfig{
			User:   catalog.DemoUser,
			Groups: catalog.DemoGroups(),
		},
		Providers: ProvidersConfig{
			Order: []string{ProviderCatalog, ProviderWorkspace},
		},
		Fetch: FetchConfig{
			TimeoutSeconds:       int(schema.DefaultFetchTimeout / time.Second),
			RootRetries:          schema.DefaultRootRetries,
			ChildRetries:         schema.DefaultChildRetries,
			BackoffBaseMillis:    int(schema.DefaultBackoffBase / time.Millisecond),
			BackoffCapMillis:     int(schema.DefaultBackoffCap / time.Millisecond),
			RootCacheTTLSeconds:  int(schema.DefaultRootCacheTTL / time.Second),
			ChildCacheTTLSeconds: int(schema.DefaultChildCacheTTL / time.Second),
			SaveDebounceMillis:   int(schema.DefaultSaveDebounce / time.Millisecond),
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// ServiceConfig maps the fetch policy onto the core service configuration.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:            c.StateDir,
		FetchTimeout:        time.Duration(c.Fetch.TimeoutSeconds) * time.Second,
		RootRetries:         c.Fetch.RootRetries,
		ChildRetries:        c.Fetch.ChildRetries,
		BackoffBase:         time.Duration(c.Fetch.BackoffBaseMillis) * time.Millisecond,
		BackoffCap:          time.Duration(c.Fetch.BackoffCapMillis) * time.Millisecond,
		RootCacheTTL:        time.Duration(c.Fetch.RootCacheTTLSeconds) * time.Second,
		ChildCacheTTL:       time.Duration(c.Fetch.ChildCacheTTLSeconds) * time.Second,
		SaveDebounce:        time.Duration(c.Fetch.SaveDebounceMillis) * time.Millisecond,
		DisableAuditLogging: c.Logging.DisableAuditTrails,
	}
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".canopy", "config.yaml"), nil
}
