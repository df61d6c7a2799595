package layout

import (
	"sort"

	"github.com/petal-labs/shelfwright/core"
)

// Sort orders node's children in two passes. First every child whose
// SortOrder is unset (zero, or negative) is assigned the next value of a
// counter starting at 0, in insertion order. Then the children are stably
// reordered by SortOrder ascending. With recursive set, each child's own
// children are sorted afterwards, depth-first.
func Sort(node *core.Node, recursive bool) {
	if node == nil {
		return
	}

	next := 0
	for _, child := range node.Children {
		if child.SortOrder <= 0 {
			child.SortOrder = next
			next++
		}
	}

	sort.SliceStable(node.Children, func(i, j int) bool {
		return node.Children[i].SortOrder < node.Children[j].SortOrder
	})

	if !recursive {
		return
	}
	for _, child := range node.Children {
		Sort(child, true)
	}
}

// SortTree sorts the whole tree from its synthetic root.
func SortTree(tree *Tree) {
	if tree == nil {
		return
	}
	Sort(tree.Root, true)
}
