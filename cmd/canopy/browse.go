package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/canopy"
	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/appconfig"
	"pkt.systems/canopy/internal/sessionview"
	"pkt.systems/canopy/internal/treeprint"
	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

func newBrowseCmd() *cobra.Command {
	var cfgPath string
	var session string
	var openIDs []string
	var deep bool
	var noIcons bool
	var focus string
	var settleTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Open a session and print the decorated forest",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("deep") {
				cfg.Catalog.Deep = deep
			}

			browser, err := canopy.New(toBrowserConfig(cfg), canopy.BrowserDeps{
				ServiceDeps: core.ServiceDeps{Logger: logger},
			}, canopy.WithAutoSeed())
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := browser.Close(closeCtx); err != nil {
					logger.Warn("browser close failed", "err", err)
				}
			}()

			sessionID := schema.SessionID(session)
			opened, err := browser.OpenSession(cmd.Context(), schema.OpenSessionRequest{Session: sessionID})
			if err != nil {
				return err
			}
			logger.Info("browse session opened",
				"session", sessionID,
				"roots", len(opened.Forest.Roots),
				"restored", len(opened.Restored))

			expand := toNodeIDs(openIDs)
			if len(expand) == 0 && len(opened.Restored) == 0 {
				for _, root := range opened.Forest.Roots {
					expand = append(expand, root.ID)
				}
			}
			deadline := time.Now().Add(settleTimeout)
			for _, id := range expand {
				if err := expandNodeAndWait(cmd.Context(), browser, sessionID, id, deadline); err != nil {
					logger.Warn("browse expand failed", "node", id, "err", err)
				}
			}

			if err := waitForSettle(cmd.Context(), browser, sessionID, settleTimeout); err != nil {
				return err
			}

			view := sessionview.New()
			view.ShowIcons = !noIcons
			view.FocusNode = schema.NodeID(strings.TrimSpace(focus))
			return printForest(sessionview.WithContext(cmd.Context(), view), cmd, browser, sessionID)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&session, "session", "main", "session id")
	cmd.Flags().StringSliceVar(&openIDs, "open", nil, "node ids to expand")
	cmd.Flags().BoolVar(&deep, "deep", false, "inline table children in root responses")
	cmd.Flags().BoolVar(&noIcons, "no-icons", false, "omit icon names from output")
	cmd.Flags().StringVar(&focus, "focus", "", "print only the subtree under this node id")
	cmd.Flags().DurationVar(&settleTimeout, "settle-timeout", 10*time.Second, "how long to wait for pending fetches")
	return cmd
}

func toBrowserConfig(cfg appconfig.Config) canopy.BrowserConfig {
	return canopy.BrowserConfig{
		Service: cfg.ServiceConfig(),
		Catalog: canopy.CatalogConfig{
			Driver: cfg.Catalog.Driver,
			Path:   cfg.Catalog.Path,
			Deep:   cfg.Catalog.Deep,
		},
		Workspace: canopy.WorkspaceConfig{
			User:   cfg.Workspace.User,
			Groups: cfg.Workspace.Groups,
		},
		Providers: cfg.Providers.Order,
	}
}

func toNodeIDs(values []string) []schema.NodeID {
	out := make([]schema.NodeID, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, schema.NodeID(value))
	}
	return out
}

// expandNodeAndWait expands one node and waits for its children to commit.
// Because an id from --open can name a node below a root that is still
// loading, a not-found error is retried until the deadline. Ancestors must
// be listed before descendants.
func expandNodeAndWait(ctx context.Context, browser *canopy.Browser, session schema.SessionID, id schema.NodeID, deadline time.Time) error {
	for {
		_, err := browser.ExpandNode(ctx, schema.ExpandNodeRequest{Session: session, NodeID: id})
		if err == nil {
			break
		}
		if !errors.Is(err, schema.ErrNodeNotFound) || time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
	for {
		resp, err := browser.Forest(ctx, schema.ForestRequest{Session: session})
		if err != nil {
			return err
		}
		if node, _, ok := core.Locate(resp.Forest.Roots, id); ok && node.Loaded() {
			return nil
		}
		for _, status := range resp.Fetches {
			if status.NodeID == id && status.State == schema.FetchFailed {
				return fmt.Errorf("fetch failed after %d attempts: %s", status.Attempts, status.Error)
			}
		}
		if time.Now().After(deadline) {
			return errors.New("expand timed out")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// waitForSettle polls the forest until no fetch is pending. A timeout is not
// an error: the forest is printed as far as it got.
func waitForSettle(ctx context.Context, browser *canopy.Browser, session schema.SessionID, timeout time.Duration) error {
	logger := pslog.Ctx(ctx)
	deadline := time.Now().Add(timeout)
	for {
		resp, err := browser.Forest(ctx, schema.ForestRequest{Session: session})
		if err != nil {
			return err
		}
		pending := 0
		for _, status := range resp.Fetches {
			if status.State == schema.FetchPending {
				pending++
			}
		}
		if pending == 0 {
			for _, status := range resp.Fetches {
				if status.State == schema.FetchFailed {
					logger.Warn("browse fetch failed",
						"node", status.NodeID,
						"attempts", status.Attempts,
						"retryable", status.Retryable,
						"err", status.Error)
				}
			}
			return nil
		}
		if time.Now().After(deadline) {
			logger.Warn("browse settle timed out", "pending", pending)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func printForest(ctx context.Context, cmd *cobra.Command, browser *canopy.Browser, session schema.SessionID) error {
	forest, err := browser.Forest(ctx, schema.ForestRequest{Session: session})
	if err != nil {
		return err
	}
	openResp, err := browser.OpenNodes(ctx, schema.OpenNodesRequest{Session: session})
	if err != nil {
		return err
	}

	renderer := treeprint.NewRenderer()
	snapshot := forest.Forest
	if view := sessionview.FromContext(ctx); view != nil {
		renderer.ShowIcons = view.ShowIcons
		if view.FocusNode != "" {
			info, err := browser.NodeInfo(ctx, schema.NodeInfoRequest{Session: session, NodeID: view.FocusNode})
			if err != nil {
				return err
			}
			snapshot = schema.ForestSnapshot{
				Roots:    []*schema.TreeNode{info.Node},
				Revision: forest.Forest.Revision,
			}
		}
	}
	for _, line := range renderer.FormatForest(snapshot, openResp.Open, forest.Fetches) {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
			return err
		}
	}
	return nil
}
