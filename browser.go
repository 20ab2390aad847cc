// Package canopy composes the tree browsing service with its catalog
// backend. It opens the catalog store, wires the execution channel and the
// configured providers, fans service events out to the caller's sink and a
// per-session event bus, and exposes the browsing operations behind one
// facade.
package canopy

import (
	"context"
	"errors"
	"fmt"

	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/catalog"
	"pkt.systems/canopy/internal/catalogchan"
	"pkt.systems/canopy/internal/catalogprov"
	"pkt.systems/canopy/internal/eventbus"
	"pkt.systems/canopy/internal/tenantprov"
	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

// Provider names accepted in BrowserConfig.Providers.
const (
	ProviderCatalog   = "catalog"
	ProviderWorkspace = "workspace"
)

// CatalogConfig locates the catalog backend.
type CatalogConfig struct {
	// Driver names the database driver. Empty means sqlite3.
	Driver string
	// Path is the catalog database file.
	Path string
	// Deep inlines each database's tables in the root listing.
	Deep bool
}

// WorkspaceConfig is the account the workspace provider resolves
// namespaces for.
type WorkspaceConfig struct {
	User   string
	Groups []string
}

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	Service   schema.ServiceConfig
	Catalog   CatalogConfig
	Workspace WorkspaceConfig
	// Providers orders the registered providers by name. Empty means
	// catalog then workspace.
	Providers []string
}

// BrowserDeps carries dependency overrides. Zero-value fields are built
// from the config: a nil ChannelProvider opens the catalog store at
// Catalog.Path, empty Providers are constructed from the configured order,
// and a non-nil EventSink is fanned out alongside the event bus.
type BrowserDeps struct {
	ServiceDeps core.ServiceDeps
}

type browserOptions struct {
	autoSeed bool
}

// BrowserOption toggles optional Browser behavior.
type BrowserOption func(*browserOptions)

// WithAutoSeed loads the demo catalog into the store when it is empty.
func WithAutoSeed() BrowserOption {
	return func(o *browserOptions) {
		o.autoSeed = true
	}
}

// Browser is the composed browsing facade. It owns the catalog store it
// opened and the event bus subscriptions hang off of.
type Browser struct {
	service core.Service
	store   *catalog.Store
	bus     *eventbus.Bus
	logger  pslog.Logger
}

// New builds a Browser from config and optional dependency overrides.
func New(cfg BrowserConfig, deps BrowserDeps, opts ...BrowserOption) (*Browser, error) {
	var options browserOptions
	for _, opt := range opts {
		opt(&options)
	}

	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	serviceDeps := deps.ServiceDeps
	logger := serviceDeps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	var store *catalog.Store
	if serviceDeps.ChannelProvider == nil {
		if cfg.Catalog.Path == "" {
			return nil, errors.New("catalog path is required")
		}
		store, err = catalog.Open(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		if options.autoSeed {
			if err := seedIfEmpty(store); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("seed catalog: %w", err)
			}
		}
		backend := cfg.Catalog.Driver
		if backend == "" {
			backend = "sqlite3"
		}
		serviceDeps.ChannelProvider = core.StaticChannelProvider{
			Channel: catalogchan.New(store),
			Backend: backend,
		}
	}

	if len(serviceDeps.Providers) == 0 {
		providers, err := buildProviders(cfg)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, err
		}
		serviceDeps.Providers = providers
	}

	bus := eventbus.New(logger)
	sinks := make([]core.EventSink, 0, 2)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	sinks = append(sinks, bus)
	if len(sinks) == 1 {
		serviceDeps.EventSink = sinks[0]
	} else {
		serviceDeps.EventSink = eventFanout{sinks: sinks}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	logger.Debug("browser ready",
		"providers", len(serviceDeps.Providers),
		"deep", cfg.Catalog.Deep,
		"stateDir", cfg.Service.StateDir)

	return &Browser{
		service: service,
		store:   store,
		bus:     bus,
		logger:  logger,
	}, nil
}

func seedIfEmpty(store *catalog.Store) error {
	names, err := store.ListDatabases(context.Background())
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return nil
	}
	return store.Seed(context.Background(), catalog.DemoSeed())
}

func buildProviders(cfg BrowserConfig) ([]core.Provider, error) {
	order := cfg.Providers
	if len(order) == 0 {
		order = []string{ProviderCatalog, ProviderWorkspace}
	}
	providers := make([]core.Provider, 0, len(order))
	for _, name := range order {
		switch name {
		case ProviderCatalog:
			providers = append(providers, catalogprov.New(catalogprov.Options{
				Deep: cfg.Catalog.Deep,
			}))
		case ProviderWorkspace:
			providers = append(providers, tenantprov.New(tenantprov.Options{
				User:   cfg.Workspace.User,
				Groups: cfg.Workspace.Groups,
			}))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return providers, nil
}

// OpenSession opens or resumes a browsing session.
func (b *Browser) OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error) {
	return b.service.OpenSession(ctx, req)
}

// CloseSession closes a session and flushes its persisted state.
func (b *Browser) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	return b.service.CloseSession(ctx, req)
}

// Forest returns the session's current decorated forest snapshot.
func (b *Browser) Forest(ctx context.Context, req schema.ForestRequest) (schema.ForestResponse, error) {
	return b.service.Forest(ctx, req)
}

// ExpandNode marks a node open and schedules its child fetch as needed.
func (b *Browser) ExpandNode(ctx context.Context, req schema.ExpandNodeRequest) (schema.ExpandNodeResponse, error) {
	return b.service.ExpandNode(ctx, req)
}

// CollapseNode marks a node closed.
func (b *Browser) CollapseNode(ctx context.Context, req schema.CollapseNodeRequest) (schema.CollapseNodeResponse, error) {
	return b.service.CollapseNode(ctx, req)
}

// RetryNode clears a failure and schedules a fresh fetch.
func (b *Browser) RetryNode(ctx context.Context, req schema.RetryNodeRequest) (schema.RetryNodeResponse, error) {
	return b.service.RetryNode(ctx, req)
}

// NodeInfo resolves one node along with its ancestry and provider metadata.
func (b *Browser) NodeInfo(ctx context.Context, req schema.NodeInfoRequest) (schema.NodeInfoResponse, error) {
	return b.service.NodeInfo(ctx, req)
}

// OpenNodes reports the session's open-state bookkeeping.
func (b *Browser) OpenNodes(ctx context.Context, req schema.OpenNodesRequest) (schema.OpenNodesResponse, error) {
	return b.service.OpenNodes(ctx, req)
}

// Subscribe returns a buffered stream of the session's events. The cancel
// function releases the subscription.
func (b *Browser) Subscribe(session schema.SessionID) (<-chan schema.Event, func()) {
	return b.bus.Subscribe(session)
}

// Close shuts the service down, then closes the catalog store if the
// Browser opened it.
func (b *Browser) Close(ctx context.Context) error {
	err := b.service.Close(ctx)
	if b.store != nil {
		if cerr := b.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	b.logger.Debug("browser closed")
	return err
}
