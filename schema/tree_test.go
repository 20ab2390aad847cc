package schema

import (
	"strings"
	"testing"
)

func TestRootAndChildIDs(t *testing.T) {
	root := RootID("catalog")
	if root != "tree-root-catalog" {
		t.Fatalf("RootID = %q, want tree-root-catalog", root)
	}
	child := ChildID(root, "CDM_Database")
	if child != "tree-root-catalog/CDM_Database" {
		t.Fatalf("ChildID = %q", child)
	}
	grand := ChildID(child, "person")
	if grand != "tree-root-catalog/CDM_Database/person" {
		t.Fatalf("ChildID nested = %q", grand)
	}
}

func TestLoadedDistinguishesNilFromEmpty(t *testing.T) {
	unloaded := &TreeNode{ID: "a"}
	if unloaded.Loaded() {
		t.Fatalf("nil children should not count as loaded")
	}
	empty := &TreeNode{ID: "b", Children: []*TreeNode{}}
	if !empty.Loaded() {
		t.Fatalf("empty non-nil children should count as loaded")
	}
}

func TestCloneIsShallow(t *testing.T) {
	child := &TreeNode{ID: "c"}
	node := &TreeNode{ID: "p", Name: "parent", Children: []*TreeNode{child}}
	dup := node.Clone()
	if dup == node {
		t.Fatalf("Clone returned the same pointer")
	}
	if dup.ID != node.ID || dup.Name != node.Name {
		t.Fatalf("Clone dropped fields: %+v", dup)
	}
	if len(dup.Children) != 1 || dup.Children[0] != child {
		t.Fatalf("Clone should share the children backing array")
	}
	dup.Name = "renamed"
	if node.Name != "parent" {
		t.Fatalf("Clone mutation leaked into the original")
	}
}

func TestValidateForest(t *testing.T) {
	ok := []*TreeNode{
		{ID: "r1", Children: []*TreeNode{
			{ID: "r1/a"},
			{ID: "r1/b", Children: []*TreeNode{{ID: "r1/b/c"}}},
		}},
		{ID: "r2"},
	}
	if err := ValidateForest(ok); err != nil {
		t.Fatalf("valid forest rejected: %v", err)
	}

	dup := []*TreeNode{
		{ID: "r1", Children: []*TreeNode{{ID: "x"}}},
		{ID: "r2", Children: []*TreeNode{{ID: "x"}}},
	}
	err := ValidateForest(dup)
	if err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if !strings.Contains(err.Error(), `"x"`) {
		t.Fatalf("error should name the duplicate id, got %v", err)
	}

	blank := []*TreeNode{{ID: "r1", Children: []*TreeNode{{Name: "anon"}}}}
	if err := ValidateForest(blank); err == nil {
		t.Fatalf("expected empty id error")
	}
}
