package schema

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig defines fetch policy and persistence defaults for the core
// service.
type ServiceConfig struct {
	StateDir string
	// FetchTimeout bounds a single provider fetch attempt.
	FetchTimeout time.Duration
	// RootRetries and ChildRetries are retry budgets beyond the first
	// attempt for retryable failures.
	RootRetries  int
	ChildRetries int
	// BackoffBase doubles per retry up to BackoffCap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// RootCacheTTL and ChildCacheTTL bound how long a resolved fetch slot
	// retains its result.
	RootCacheTTL  time.Duration
	ChildCacheTTL time.Duration
	// SaveDebounce delays open-state writes so rapid expand/collapse runs
	// coalesce into one write.
	SaveDebounce time.Duration
	// DisableAuditLogging disables audit trail debug logs for fetches.
	DisableAuditLogging bool
}

// Fetch policy defaults.
const (
	DefaultFetchTimeout  = 30 * time.Second
	DefaultRootRetries   = 3
	DefaultChildRetries  = 2
	DefaultBackoffBase   = time.Second
	DefaultBackoffCap    = 30 * time.Second
	DefaultRootCacheTTL  = 10 * time.Minute
	DefaultChildCacheTTL = 5 * time.Minute
	DefaultSaveDebounce  = 500 * time.Millisecond
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".canopy", "state")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.RootRetries <= 0 {
		cfg.RootRetries = DefaultRootRetries
	}
	if cfg.ChildRetries <= 0 {
		cfg.ChildRetries = DefaultChildRetries
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	if cfg.RootCacheTTL <= 0 {
		cfg.RootCacheTTL = DefaultRootCacheTTL
	}
	if cfg.ChildCacheTTL <= 0 {
		cfg.ChildCacheTTL = DefaultChildCacheTTL
	}
	if cfg.SaveDebounce <= 0 {
		cfg.SaveDebounce = DefaultSaveDebounce
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		return ServiceConfig{}, errors.New("backoff cap must not be below backoff base")
	}
	return cfg, nil
}
