package schema

import "fmt"

// TreeNode is one node in a session's forest. Published nodes are immutable:
// mutation happens by building a replacement node and swapping it into a new
// snapshot, never by editing a published node in place.
//
// Children encodes load state. A nil slice means the node's children have not
// been fetched; an empty non-nil slice means a fetch completed and found none.
type TreeNode struct {
	ID       NodeID
	Name     string
	Type     NodeType
	Icon     Icon
	IsParent bool
	Info     InfoRenderer
	Menu     []MenuItem
	Data     any
	Children []*TreeNode
}

// Loaded reports whether the node's children have been fetched. An empty
// non-nil Children slice counts as loaded.
func (n *TreeNode) Loaded() bool {
	return n != nil && n.Children != nil
}

// Clone returns a shallow copy of the node. Children and Menu share the
// original backing arrays; callers replacing either assign fresh slices.
func (n *TreeNode) Clone() *TreeNode {
	if n == nil {
		return nil
	}
	dup := *n
	return &dup
}

// ForestSnapshot is an immutable view of a session's forest. Revision
// increases by one for every committed mutation.
type ForestSnapshot struct {
	Roots    []*TreeNode
	Revision uint64
}

const rootIDPrefix = "tree-root-"

// RootID returns the id of the synthetic root node for a provider.
func RootID(provider ProviderName) NodeID {
	return NodeID(rootIDPrefix + string(provider))
}

// ChildID derives a child node id from the parent id and the child's name.
// Providers that follow this scheme get forest-wide uniqueness as long as
// sibling names are unique.
func ChildID(parent NodeID, name string) NodeID {
	return NodeID(string(parent) + "/" + name)
}

// ValidateForest walks the forest and reports the first empty or duplicated
// node id. Decoration and structural replacement both assume unique ids.
func ValidateForest(roots []*TreeNode) error {
	seen := make(map[NodeID]struct{})
	var walk func(node *TreeNode) error
	walk = func(node *TreeNode) error {
		if node == nil {
			return nil
		}
		if node.ID == "" {
			return fmt.Errorf("node %q has an empty id", node.Name)
		}
		if _, ok := seen[node.ID]; ok {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}
		seen[node.ID] = struct{}{}
		for _, child := range node.Children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root); err != nil {
			return err
		}
	}
	return nil
}
