package core

import "pkt.systems/canopy/schema"

// Locate finds a node by id with a pre-order walk across the forest and
// returns it together with its ancestor chain ordered root first. The first
// match wins; duplicate ids are a provider bug that schema.ValidateForest
// surfaces in tests.
func Locate(roots []*schema.TreeNode, id schema.NodeID) (*schema.TreeNode, []*schema.TreeNode, bool) {
	var trail []*schema.TreeNode
	var found *schema.TreeNode
	var ancestors []*schema.TreeNode
	var walk func(node *schema.TreeNode) bool
	walk = func(node *schema.TreeNode) bool {
		if node == nil {
			return false
		}
		if node.ID == id {
			found = node
			ancestors = append([]*schema.TreeNode(nil), trail...)
			return true
		}
		trail = append(trail, node)
		for _, child := range node.Children {
			if walk(child) {
				return true
			}
		}
		trail = trail[:len(trail)-1]
		return false
	}
	for _, root := range roots {
		if walk(root) {
			return found, ancestors, true
		}
	}
	return nil, nil, false
}
