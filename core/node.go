package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrDuplicateChild is returned when a child id is already used by a sibling.
var ErrDuplicateChild = errors.New("core: duplicate child id")

// SkipChildren may be returned from a WalkFunc to skip a node's subtree.
var SkipChildren = errors.New("core: skip children")

// nodeIDNamespace seeds generated ids for records with neither id nor label.
var nodeIDNamespace = uuid.MustParse("6f1c4f5e-3b0a-4d8e-9b5f-2c1f0d7e8a41")

// Node is one item in a menu or shelf tree.
// Parents own their children; parent is a non-owning back-reference used
// for path computation and ancestor search.
type Node struct {
	ID        string
	Kind      NodeKind
	Type      string // item type resolved by the registry; empty uses the kind default
	Label     string
	Tooltip   string
	Icon      string
	Color     string
	SortOrder int
	Plugin    string         // plugin id bound to a leaf; empty means the node id
	Arguments map[string]any // arguments passed to the plugin command
	Extra     map[string]any
	Children  []*Node

	parent *Node
}

// NewNode creates a detached node with the given id and kind.
func NewNode(id string, kind NodeKind) *Node {
	return &Node{
		ID:    id,
		Kind:  kind,
		Extra: make(map[string]any),
	}
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Child returns the direct child with the given id.
func (n *Node) Child(id string) (*Node, bool) {
	for _, c := range n.Children {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// AppendChild appends child and points its parent at n.
func (n *Node) AppendChild(child *Node) error {
	if child == nil {
		return errors.New("core: nil child")
	}
	if _, exists := n.Child(child.ID); exists {
		return fmt.Errorf("%w: %q under %q", ErrDuplicateChild, child.ID, n.Path())
	}
	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = n
	n.Children = append(n.Children, child)
	return nil
}

func (n *Node) removeChild(child *Node) {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

// Path returns the slash-joined ids from the outermost named ancestor to n.
// Ancestors with an empty id (synthetic roots) are left out.
func (n *Node) Path() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.parent {
		if cur.ID != "" {
			parts = append(parts, cur.ID)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// Ancestor returns the nearest ancestor of the given kind.
func (n *Node) Ancestor(kind NodeKind) (*Node, bool) {
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur.Kind == kind {
			return cur, true
		}
	}
	return nil, false
}

// IsLeaf reports whether the node resolves to a command.
func (n *Node) IsLeaf() bool {
	return n.Kind.IsLeaf()
}

// ItemType returns the registry key used to resolve this node.
func (n *Node) ItemType() string {
	if n.Type != "" {
		return n.Type
	}
	if n.Kind.IsLeaf() {
		return string(NodeKindDefinition)
	}
	return string(n.Kind)
}

// PluginID returns the plugin id a leaf resolves to.
func (n *Node) PluginID() string {
	if n.Plugin != "" {
		return n.Plugin
	}
	return n.ID
}

// Attrs returns the node's display attributes merged with its extra attributes.
// Empty display fields are omitted.
func (n *Node) Attrs() Attrs {
	out := make(Attrs, len(n.Extra)+4)
	for k, v := range n.Extra {
		out[k] = v
	}
	set := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	set(AttrLabel, n.Label)
	set(AttrTooltip, n.Tooltip)
	set(AttrIcon, n.Icon)
	set(AttrColor, n.Color)
	return out
}

// WalkFunc is called for each node visited by Walk.
type WalkFunc func(node *Node, depth int) error

// Walk visits n and its descendants depth-first in child order.
// Returning SkipChildren skips the node's subtree; any other error stops the walk.
func (n *Node) Walk(fn WalkFunc) error {
	return n.walk(fn, 0)
}

func (n *Node) walk(fn WalkFunc, depth int) error {
	if err := fn(n, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range n.Children {
		if err := c.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// DeriveID returns the id for a record lacking one: the label with all
// whitespace removed, or a deterministic token derived from seed.
func DeriveID(label, seed string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, label)
	if stripped != "" {
		return stripped
	}
	return "node-" + uuid.NewSHA1(nodeIDNamespace, []byte(seed)).String()
}
