package treeprint

import (
	"fmt"
	"strings"

	"pkt.systems/canopy/schema"
)

// Renderer formats forest snapshots as indented plain-text lines.
type Renderer struct {
	// ShowIcons appends each node's icon after its name.
	ShowIcons bool
	// Indent is the per-level indentation. Empty means two spaces.
	Indent string
}

// NewRenderer returns a default plain-text renderer.
func NewRenderer() *Renderer {
	return &Renderer{ShowIcons: true}
}

// FormatForest converts a snapshot into user-facing lines. Children are
// rendered only under nodes in the open set; fetch annotations come from
// the scheduler statuses.
func (r *Renderer) FormatForest(forest schema.ForestSnapshot, open []schema.NodeID, fetches []schema.FetchStatus) []string {
	openSet := make(map[schema.NodeID]struct{}, len(open))
	for _, id := range open {
		openSet[id] = struct{}{}
	}
	states := make(map[schema.NodeID]schema.FetchStatus, len(fetches))
	for _, status := range fetches {
		states[status.NodeID] = status
	}
	var lines []string
	for _, root := range forest.Roots {
		lines = r.appendNode(lines, root, 0, openSet, states)
	}
	return lines
}

func (r *Renderer) appendNode(lines []string, node *schema.TreeNode, depth int, open map[schema.NodeID]struct{}, states map[schema.NodeID]schema.FetchStatus) []string {
	if node == nil {
		return lines
	}
	_, expanded := open[node.ID]
	lines = append(lines, r.formatNode(node, depth, expanded, states[node.ID]))
	if !expanded {
		return lines
	}
	for _, child := range node.Children {
		lines = r.appendNode(lines, child, depth+1, open, states)
	}
	return lines
}

func (r *Renderer) formatNode(node *schema.TreeNode, depth int, expanded bool, status schema.FetchStatus) string {
	indent := r.Indent
	if indent == "" {
		indent = "  "
	}
	var b strings.Builder
	b.WriteString(strings.Repeat(indent, depth))
	b.WriteString(marker(node, expanded))
	b.WriteString(" ")
	b.WriteString(node.Name)
	if r.ShowIcons && node.Icon != "" {
		fmt.Fprintf(&b, " [%s]", node.Icon)
	}
	if note := annotate(node, expanded, status); note != "" {
		b.WriteString(" ")
		b.WriteString(note)
	}
	return b.String()
}

func marker(node *schema.TreeNode, expanded bool) string {
	if !node.IsParent {
		return " "
	}
	if expanded {
		return "-"
	}
	return "+"
}

func annotate(node *schema.TreeNode, expanded bool, status schema.FetchStatus) string {
	switch status.State {
	case schema.FetchPending:
		return "(loading)"
	case schema.FetchFailed:
		if status.Error != "" {
			return fmt.Sprintf("(failed: %s)", status.Error)
		}
		return "(failed)"
	}
	if expanded && node.Loaded() && len(node.Children) == 0 {
		return "(empty)"
	}
	return ""
}
