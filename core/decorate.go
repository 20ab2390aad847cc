package core

import "pkt.systems/canopy/schema"

// decorateNodes returns decorated copies of the given nodes: each node's
// icon, parent flag, detail renderer and context menu resolved from the
// provider's tables. Inlined children are decorated recursively and the
// nil-versus-empty children distinction is preserved. Inputs are never
// modified.
//
// Decoration is a pure function of the provider tables and the node type, so
// decorating an already decorated node yields the same result.
func decorateNodes(info ProviderInfo, nodes []*schema.TreeNode) []*schema.TreeNode {
	if nodes == nil {
		return nil
	}
	out := make([]*schema.TreeNode, len(nodes))
	for i, node := range nodes {
		out[i] = decorateNode(info, node)
	}
	return out
}

func decorateNode(info ProviderInfo, node *schema.TreeNode) *schema.TreeNode {
	if node == nil {
		return nil
	}
	dup := node.Clone()
	dup.Icon = iconFor(info, node.Type)
	dup.IsParent = node.Type == schema.NodeTypeRoot || info.IsParentType(node.Type)
	dup.Info = info.TypeInfo[node.Type]
	dup.Menu = info.TypeMenus[node.Type]
	dup.Children = decorateNodes(info, node.Children)
	return dup
}

// iconFor consults, in order: the per-type icon table, the provider default,
// the global fallback.
func iconFor(info ProviderInfo, t schema.NodeType) schema.Icon {
	if icon, ok := info.TypeIcons[t]; ok && icon != "" {
		return icon
	}
	if info.Icon != "" {
		return info.Icon
	}
	return schema.IconDefault
}
