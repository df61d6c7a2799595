package layout

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/petal-labs/shelfwright/core"
)

// Tree is the canonical, mutable node forest for one family.
// Root is a synthetic group node with an empty id whose children are the
// family's top-level menus or shelves.
type Tree struct {
	Family core.Family
	Root   *core.Node
	// Diagnostics accumulates problems found while merging.
	Diagnostics []Diagnostic

	logger *slog.Logger
}

// NewTree creates an empty canonical tree for the family.
func NewTree(family core.Family, logger *slog.Logger) *Tree {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tree{
		Family: family,
		Root:   core.NewNode("", core.NodeKindGroup),
		logger: logger,
	}
}

// Top returns the top-level node with the given id.
func (t *Tree) Top(id string) (*core.Node, bool) {
	return t.Root.Child(id)
}

// Merge upserts every record of doc into the tree by id and returns the
// tree for chaining. Matching nodes have the display fields the record
// specifies updated and their children merged recursively; unmatched
// records are appended as new nodes. Merge never removes nodes.
func Merge(tree *Tree, doc Document) *Tree {
	if tree == nil {
		return nil
	}
	if doc.Family != "" && doc.Family != tree.Family {
		tree.logger.Warn("skipping document for another family",
			"source", doc.Source, "family", doc.Family, "tree_family", tree.Family)
		return tree
	}
	tree.mergeRecords(tree.Root, doc.Items, doc.Source, "")
	return tree
}

// MergeAll merges docs into tree in the given order.
func MergeAll(tree *Tree, docs ...Document) *Tree {
	for _, doc := range docs {
		Merge(tree, doc)
	}
	return tree
}

func (t *Tree) mergeRecords(parent *core.Node, records []Record, source, path string) {
	top := parent == t.Root
	for i, rec := range records {
		recPath := "items[" + strconv.Itoa(i) + "]"
		if !top {
			recPath = path + ".children[" + strconv.Itoa(i) + "]"
		}

		kind, itemType, err := rec.resolveKind(fallbackKind(rec, parent.Kind, top, t.Family))
		if err != nil {
			t.logger.Warn("skipping record with invalid kind",
				"source", source, "path", recPath, "error", err)
			t.Diagnostics = append(t.Diagnostics, Diagnostic{
				Code:     CodeInvalidKind,
				Severity: SeverityError,
				Message:  err.Error(),
				Source:   source,
				Path:     recPath + ".kind",
			})
			continue
		}

		id := rec.ID
		if id == "" {
			// The source keeps tokens from different documents apart while
			// re-merging the same document still yields the same ids.
			id = core.DeriveID(deref(rec.Label), source+"#"+parent.Path()+"/"+string(kind)+"/"+strconv.Itoa(i))
		}

		node, exists := parent.Child(id)
		if !exists {
			node = core.NewNode(id, kind)
			if err := parent.AppendChild(node); err != nil {
				// Child lookup above makes this unreachable for well-formed trees.
				t.logger.Error("appending merged node", "source", source, "path", recPath, "error", err)
				continue
			}
		}
		applyRecord(node, rec, itemType)

		if len(rec.Children) > 0 {
			t.mergeRecords(node, rec.Children, source, recPath)
		}
	}
}

// applyRecord copies the fields rec specifies onto node, leaving omitted
// fields unchanged.
func applyRecord(node *core.Node, rec Record, itemType string) {
	if itemType != "" {
		node.Type = itemType
	}
	if rec.Label != nil {
		node.Label = *rec.Label
	}
	if rec.Tooltip != nil {
		node.Tooltip = *rec.Tooltip
	}
	if rec.Icon != nil {
		node.Icon = *rec.Icon
	}
	if rec.Color != nil {
		node.Color = *rec.Color
	}
	if rec.SortOrder != nil {
		node.SortOrder = *rec.SortOrder
	}
	if rec.Plugin != "" {
		node.Plugin = rec.Plugin
	}
	if len(rec.Arguments) > 0 {
		if node.Arguments == nil {
			node.Arguments = make(map[string]any, len(rec.Arguments))
		}
		for k, v := range rec.Arguments {
			node.Arguments[k] = v
		}
	}
	for k, v := range rec.Extra {
		node.Extra[k] = v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Dump renders the tree as indented "kind id" lines; used by tests and
// the CLI to compare tree shapes.
func Dump(n *core.Node) string {
	var b strings.Builder
	_ = n.Walk(func(node *core.Node, depth int) error {
		if node == n && node.ID == "" {
			return nil
		}
		indent := depth
		if n.ID == "" {
			indent--
		}
		b.WriteString(strings.Repeat("  ", indent))
		fmt.Fprintf(&b, "%s %s\n", node.Kind, node.ID)
		return nil
	})
	return b.String()
}
