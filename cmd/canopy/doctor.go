package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/canopy"
	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/appconfig"
	"pkt.systems/canopy/internal/catalog"
	"pkt.systems/canopy/internal/catalogchan"
	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

func newDoctorCmd() *cobra.Command {
	var cfgPath string
	var probeTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run canopy diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())

			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			configPath := cfgPath
			if strings.TrimSpace(configPath) == "" {
				path, err := appconfig.DefaultConfigPath()
				if err != nil {
					return err
				}
				configPath = path
			}
			logger.Info("doctor start", "config", configPath)

			serviceCfg, err := schema.NormalizeServiceConfig(cfg.ServiceConfig())
			if err != nil {
				return err
			}
			if err := verifyStateDir(serviceCfg.StateDir); err != nil {
				return err
			}
			logger.Info("doctor state dir ok", "dir", serviceCfg.StateDir)

			store, err := catalog.Open(cfg.Catalog.Path)
			if err != nil {
				return fmt.Errorf("doctor catalog open: %w", err)
			}
			defer func() { _ = store.Close() }()
			databases, err := store.ListDatabases(cmd.Context())
			if err != nil {
				return fmt.Errorf("doctor catalog list: %w", err)
			}
			if len(databases) == 0 {
				logger.Warn("doctor catalog empty; seed it with: canopy catalog init", "path", store.Path())
			} else {
				logger.Info("doctor catalog ok", "path", store.Path(), "databases", len(databases))
			}

			if _, err := catalogchan.New(store).Execute(cmd.Context(), core.ExecuteRequest{Op: catalogchan.OpListDatabases}); err != nil {
				return fmt.Errorf("doctor channel: %w", err)
			}
			logger.Info("doctor channel ok", "op", catalogchan.OpListDatabases)

			if err := probeBrowse(cmd.Context(), logger, cfg, probeTimeout); err != nil {
				return err
			}
			logger.Info("doctor complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().DurationVar(&probeTimeout, "probe-timeout", 10*time.Second, "timeout for the browse probe")
	return cmd
}

func verifyStateDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("doctor state dir: %w", err)
	}
	probe := filepath.Join(dir, fmt.Sprintf(".doctor-%d", time.Now().UnixNano()))
	if err := os.WriteFile(probe, []byte("ok\n"), 0o600); err != nil {
		return fmt.Errorf("doctor state dir write: %w", err)
	}
	return os.Remove(probe)
}

// probeBrowse opens a throwaway session, expands the first provider root and
// waits until it loads.
func probeBrowse(ctx context.Context, logger pslog.Logger, cfg appconfig.Config, timeout time.Duration) error {
	browser, err := canopy.New(toBrowserConfig(cfg), canopy.BrowserDeps{
		ServiceDeps: core.ServiceDeps{Logger: logger},
	})
	if err != nil {
		return fmt.Errorf("doctor browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = browser.Close(closeCtx)
	}()

	session := schema.SessionID(fmt.Sprintf("doctor-%d", time.Now().UnixNano()))
	opened, err := browser.OpenSession(ctx, schema.OpenSessionRequest{Session: session})
	if err != nil {
		return fmt.Errorf("doctor session: %w", err)
	}
	defer func() {
		_, _ = browser.CloseSession(context.Background(), schema.CloseSessionRequest{Session: session})
	}()
	if len(opened.Forest.Roots) == 0 {
		return errors.New("doctor browse: no provider roots")
	}
	rootID := opened.Forest.Roots[0].ID
	if _, err := browser.ExpandNode(ctx, schema.ExpandNodeRequest{Session: session, NodeID: rootID}); err != nil {
		return fmt.Errorf("doctor expand: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		resp, err := browser.Forest(ctx, schema.ForestRequest{Session: session})
		if err != nil {
			return fmt.Errorf("doctor forest: %w", err)
		}
		if node, _, ok := core.Locate(resp.Forest.Roots, rootID); ok && node.Loaded() {
			logger.Info("doctor browse ok", "root", rootID, "children", len(node.Children))
			return nil
		}
		for _, status := range resp.Fetches {
			if status.NodeID == rootID && status.State == schema.FetchFailed {
				return fmt.Errorf("doctor browse fetch failed: %s", status.Error)
			}
		}
		if time.Now().After(deadline) {
			return errors.New("doctor browse probe timed out")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
