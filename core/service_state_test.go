package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pkt.systems/canopy/internal/persist"
	"pkt.systems/canopy/schema"
)

func TestOpenStatePersistsAfterDebounce(t *testing.T) {
	stateDir := t.TempDir()
	sink := newRecordingSink()
	provider := dataProvider()
	svc, err := NewService(schema.ServiceConfig{StateDir: stateDir, SaveDebounce: 5 * time.Millisecond}, ServiceDeps{
		Providers:       []Provider{provider},
		ChannelProvider: StaticChannelProvider{Channel: stubChannel{}},
		EventSink:       sink,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	session := schema.SessionID("sess")
	if _, err := svc.OpenSession(context.Background(), schema.OpenSessionRequest{Session: session}); err != nil {
		t.Fatalf("open session: %v", err)
	}
	rootID := schema.RootID("data")
	if _, err := svc.ExpandNode(context.Background(), schema.ExpandNodeRequest{Session: session, NodeID: rootID}); err != nil {
		t.Fatalf("expand node: %v", err)
	}
	nodes, err := svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: session})
	if err != nil {
		t.Fatalf("open nodes: %v", err)
	}
	if !nodes.Interacted {
		t.Fatalf("expected expand to latch interaction")
	}

	store, err := persist.NewStore(filepath.Join(stateDir, "opensets"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	waitFor(t, func() bool {
		set, found, err := store.Load(session)
		return err == nil && found && containsNode(set.Open, rootID)
	}, "persisted open set")
	waitFor(t, func() bool { return len(sink.SessionEvents(schema.SessionStateSaved)) >= 1 }, "state-saved event")
	saved := sink.SessionEvents(schema.SessionStateSaved)[0]
	if !containsNode(saved.Open, rootID) {
		t.Fatalf("expected state-saved event to carry open set, got %v", saved.Open)
	}
}

func TestOpenStateWritesCoalesce(t *testing.T) {
	stateDir := t.TempDir()
	sink := newRecordingSink()
	provider := dataProvider()
	svc, err := NewService(schema.ServiceConfig{StateDir: stateDir, SaveDebounce: 60 * time.Millisecond}, ServiceDeps{
		Providers:       []Provider{provider},
		ChannelProvider: StaticChannelProvider{Channel: stubChannel{}},
		EventSink:       sink,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	session := schema.SessionID("sess")
	if _, err := svc.OpenSession(context.Background(), schema.OpenSessionRequest{Session: session}); err != nil {
		t.Fatalf("open session: %v", err)
	}
	rootID := schema.RootID("data")
	if _, err := svc.ExpandNode(context.Background(), schema.ExpandNodeRequest{Session: session, NodeID: rootID}); err != nil {
		t.Fatalf("expand node: %v", err)
	}
	if _, err := svc.CollapseNode(context.Background(), schema.CollapseNodeRequest{Session: session, NodeID: rootID}); err != nil {
		t.Fatalf("collapse node: %v", err)
	}
	if _, err := svc.ExpandNode(context.Background(), schema.ExpandNodeRequest{Session: session, NodeID: rootID}); err != nil {
		t.Fatalf("expand node again: %v", err)
	}

	waitFor(t, func() bool { return len(sink.SessionEvents(schema.SessionStateSaved)) == 1 }, "coalesced save")
	time.Sleep(180 * time.Millisecond)
	saves := sink.SessionEvents(schema.SessionStateSaved)
	if len(saves) != 1 {
		t.Fatalf("expected changes inside one window to coalesce, got %d saves", len(saves))
	}
	if !containsNode(saves[0].Open, rootID) {
		t.Fatalf("expected final state in the write, got %v", saves[0].Open)
	}
}

func TestRestoreReplayOpensPersistedNodes(t *testing.T) {
	stateDir := t.TempDir()
	store, err := persist.NewStore(filepath.Join(stateDir, "opensets"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	session := schema.SessionID("sess")
	rootID := schema.RootID("data")
	grp := schema.ChildID(rootID, "grp")
	if err := store.Save(session, persist.OpenSet{Open: []schema.NodeID{rootID, grp}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	sink := newRecordingSink()
	provider := dataProvider()
	svc, err := NewService(schema.ServiceConfig{StateDir: stateDir}, ServiceDeps{
		Providers:       []Provider{provider},
		ChannelProvider: StaticChannelProvider{Channel: stubChannel{}},
		EventSink:       sink,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	resp, err := svc.OpenSession(context.Background(), schema.OpenSessionRequest{Session: session})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if len(resp.Restored) != 2 {
		t.Fatalf("expected 2 restored ids, got %v", resp.Restored)
	}

	waitFor(t, func() bool {
		nodes, err := svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: session})
		if err != nil {
			t.Fatalf("open nodes: %v", err)
		}
		return nodes.Restore == schema.RestoreIdle && containsNode(nodes.Open, grp)
	}, "restore replay to finish")

	nodes, err := svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: session})
	if err != nil {
		t.Fatalf("open nodes: %v", err)
	}
	if nodes.Interacted {
		t.Fatalf("expected replay to leave the interaction latch untouched")
	}
	if !containsNode(nodes.Open, rootID) || !containsNode(nodes.Open, grp) {
		t.Fatalf("expected both persisted ids opened, got %v", nodes.Open)
	}
	waitForLoaded(t, svc, session, grp)
	if provider.RootCalls() != 1 || provider.ChildCalls() != 1 {
		t.Fatalf("expected one fetch per level, got roots=%d children=%d", provider.RootCalls(), provider.ChildCalls())
	}
	if got := sink.SessionEvents(schema.SessionStateSaved); len(got) != 0 {
		t.Fatalf("expected replay not to persist, got %d saves", len(got))
	}
}

func TestInteractionCancelsRestoreReplay(t *testing.T) {
	stateDir := t.TempDir()
	store, err := persist.NewStore(filepath.Join(stateDir, "opensets"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	session := schema.SessionID("sess")
	rootID := schema.RootID("slow")
	grp := schema.ChildID(rootID, "grp")
	if err := store.Save(session, persist.OpenSet{Open: []schema.NodeID{rootID, grp}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	provider := newBlockingProvider("slow")
	svc, err := NewService(schema.ServiceConfig{StateDir: stateDir}, ServiceDeps{
		Providers:       []Provider{provider},
		ChannelProvider: StaticChannelProvider{Channel: stubChannel{}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.OpenSession(context.Background(), schema.OpenSessionRequest{Session: session}); err != nil {
		t.Fatalf("open session: %v", err)
	}
	nodes, err := svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: session})
	if err != nil {
		t.Fatalf("open nodes: %v", err)
	}
	if nodes.Restore != schema.RestoreRestoring {
		t.Fatalf("expected replay in progress, got %s", nodes.Restore)
	}

	if _, err := svc.CollapseNode(context.Background(), schema.CollapseNodeRequest{Session: session, NodeID: rootID}); err != nil {
		t.Fatalf("collapse node: %v", err)
	}
	nodes, err = svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: session})
	if err != nil {
		t.Fatalf("open nodes: %v", err)
	}
	if !nodes.Interacted || nodes.Restore != schema.RestoreIdle {
		t.Fatalf("expected interaction to cancel replay, got %+v", nodes)
	}

	close(provider.release)
	waitForLoaded(t, svc, session, rootID)
	nodes, err = svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: session})
	if err != nil {
		t.Fatalf("open nodes: %v", err)
	}
	if containsNode(nodes.Open, grp) {
		t.Fatalf("expected cancelled replay to leave %s closed", grp)
	}
}

func TestMalformedStateFileIgnored(t *testing.T) {
	stateDir := t.TempDir()
	dir := filepath.Join(stateDir, "opensets")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sess.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	svc, err := NewService(schema.ServiceConfig{StateDir: stateDir}, ServiceDeps{
		Providers:       []Provider{dataProvider()},
		ChannelProvider: StaticChannelProvider{Channel: stubChannel{}},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	resp, err := svc.OpenSession(context.Background(), schema.OpenSessionRequest{Session: "sess"})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if len(resp.Restored) != 0 {
		t.Fatalf("expected corrupt state to restore nothing, got %v", resp.Restored)
	}
	nodes, err := svc.OpenNodes(context.Background(), schema.OpenNodesRequest{Session: "sess"})
	if err != nil {
		t.Fatalf("open nodes: %v", err)
	}
	if nodes.Restore != schema.RestoreIdle {
		t.Fatalf("expected idle restore state, got %s", nodes.Restore)
	}
}

func containsNode(ids []schema.NodeID, id schema.NodeID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
