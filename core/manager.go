package core

import (
	"context"
	"fmt"

	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

// Manager owns the read path of the forest: it builds the initial synthetic
// roots and runs provider fetches, decorating everything that comes back.
type Manager struct {
	registry *Registry
	log      pslog.Logger
}

// NewManager builds a manager over a registry.
func NewManager(registry *Registry, logger pslog.Logger) *Manager {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Manager{registry: registry, log: logger}
}

// InitialForest returns one unloaded synthetic root per provider in
// registration order. Children are nil: nothing is fetched until a root is
// expanded.
func (m *Manager) InitialForest() []*schema.TreeNode {
	providers := m.registry.Ordered()
	roots := make([]*schema.TreeNode, 0, len(providers))
	for _, p := range providers {
		info := p.Describe()
		icon := info.Icon
		if icon == "" {
			icon = schema.IconDefault
		}
		roots = append(roots, &schema.TreeNode{
			ID:       schema.RootID(info.Name),
			Name:     string(info.Name),
			Type:     schema.NodeTypeRoot,
			Icon:     icon,
			IsParent: true,
		})
	}
	return roots
}

// FetchRootsFor runs one provider's top-level fetch and returns decorated
// nodes. A nil result from the provider is normalized to an empty slice so a
// successful commit always marks the root loaded.
func (m *Manager) FetchRootsFor(ctx context.Context, name schema.ProviderName, ch Channel) ([]*schema.TreeNode, error) {
	p, err := m.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	nodes, err := p.FetchRoots(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("provider %s roots: %w", name, err)
	}
	if nodes == nil {
		nodes = []*schema.TreeNode{}
	}
	return decorateNodes(p.Describe(), nodes), nil
}

// FetchChildrenOf resolves the owner of a node in the given snapshot and
// runs its child fetch.
func (m *Manager) FetchChildrenOf(ctx context.Context, roots []*schema.TreeNode, id schema.NodeID, ch Channel) ([]*schema.TreeNode, error) {
	node, ancestors, ok := Locate(roots, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrNodeNotFound, id)
	}
	name, err := OwnerOf(node, ancestors)
	if err != nil {
		return nil, err
	}
	p, err := m.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	nodes, err := p.FetchChildren(ctx, node, ch)
	if err != nil {
		return nil, fmt.Errorf("provider %s children of %s: %w", name, id, err)
	}
	if nodes == nil {
		nodes = []*schema.TreeNode{}
	}
	return decorateNodes(p.Describe(), nodes), nil
}

// OwnerOf returns the provider that owns a located node. Ownership is
// positional: a node belongs to the provider whose synthetic root heads its
// ancestor chain, and a root node owns itself.
func OwnerOf(node *schema.TreeNode, ancestors []*schema.TreeNode) (schema.ProviderName, error) {
	head := node
	if len(ancestors) > 0 {
		head = ancestors[0]
	}
	if head == nil || head.Type != schema.NodeTypeRoot {
		return "", fmt.Errorf("%w: node %s has no root ancestor", schema.ErrProviderNotFound, node.ID)
	}
	return schema.ProviderName(head.Name), nil
}
