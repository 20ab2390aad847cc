package core

import (
	"context"

	"pkt.systems/canopy/schema"
)

// Provider contributes one subtree to the forest: a top-level listing plus a
// child fetch dispatched on node type.
//
// Fetches must be idempotent and side-effect free; the scheduler may invoke
// them again after failures. Returned node ids must be unique across the
// whole forest, which deriving ids with schema.ChildID guarantees as long as
// sibling names are unique. A nil error with a nil slice counts as an empty
// result.
type Provider interface {
	Describe() ProviderInfo
	FetchRoots(ctx context.Context, ch Channel) ([]*schema.TreeNode, error)
	FetchChildren(ctx context.Context, node *schema.TreeNode, ch Channel) ([]*schema.TreeNode, error)
}

// ProviderInfo is the static description a provider registers: identity plus
// the per-type decoration tables. Types absent from ParentTypes are leaves.
type ProviderInfo struct {
	Name        schema.ProviderName
	Icon        schema.Icon
	ParentTypes []schema.NodeType
	TypeIcons   map[schema.NodeType]schema.Icon
	TypeInfo    map[schema.NodeType]schema.InfoRenderer
	TypeMenus   map[schema.NodeType][]schema.MenuItem
}

// IsParentType reports whether nodes of the given type can be expanded.
func (info ProviderInfo) IsParentType(t schema.NodeType) bool {
	for _, parent := range info.ParentTypes {
		if parent == t {
			return true
		}
	}
	return false
}
