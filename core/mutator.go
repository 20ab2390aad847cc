package core

import "pkt.systems/canopy/schema"

// ReplaceNode returns a new forest in which the node with the given id is
// swapped for repl. Only nodes on the path from the root to the target are
// copied; every untouched subtree is shared with the input forest. The input
// is never modified, so callers holding the old snapshot keep a consistent
// view.
//
// The second return reports whether the id was found; when it is false the
// input forest is returned unchanged.
func ReplaceNode(roots []*schema.TreeNode, id schema.NodeID, repl *schema.TreeNode) ([]*schema.TreeNode, bool) {
	var replace func(node *schema.TreeNode) (*schema.TreeNode, bool)
	replace = func(node *schema.TreeNode) (*schema.TreeNode, bool) {
		if node == nil {
			return nil, false
		}
		if node.ID == id {
			return repl, true
		}
		for i, child := range node.Children {
			swapped, ok := replace(child)
			if !ok {
				continue
			}
			dup := node.Clone()
			children := make([]*schema.TreeNode, len(node.Children))
			copy(children, node.Children)
			children[i] = swapped
			dup.Children = children
			return dup, true
		}
		return nil, false
	}
	for i, root := range roots {
		swapped, ok := replace(root)
		if !ok {
			continue
		}
		out := make([]*schema.TreeNode, len(roots))
		copy(out, roots)
		out[i] = swapped
		return out, true
	}
	return roots, false
}
