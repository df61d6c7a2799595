// Package core provides the foundational types shared by every shelfwright package.
//
// This package contains:
//   - Core types: NodeKind, Family, Attrs, CommandDescriptor
//   - Data structures: Node (the generic parented layout tree node)
package core

import (
	"fmt"
	"strings"
)

// NodeKind identifies the type of a layout node.
// The set of kinds is closed; item-type strings extend leaves instead.
type NodeKind string

const (
	NodeKindSeparator   NodeKind = "separator"
	NodeKindGroup       NodeKind = "group"
	NodeKindLabel       NodeKind = "label"
	NodeKindMenu        NodeKind = "menu"
	NodeKindShelf       NodeKind = "shelf"
	NodeKindShelfButton NodeKind = "shelf_button"
	NodeKindDefinition  NodeKind = "definition"
	NodeKindVariant     NodeKind = "variant"
)

// NodeKinds lists every valid kind in declaration order.
var NodeKinds = []NodeKind{
	NodeKindSeparator,
	NodeKindGroup,
	NodeKindLabel,
	NodeKindMenu,
	NodeKindShelf,
	NodeKindShelfButton,
	NodeKindDefinition,
	NodeKindVariant,
}

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the declared kinds.
func (k NodeKind) Valid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsContainer reports whether nodes of this kind open a nested container
// when built by a host.
func (k NodeKind) IsContainer() bool {
	switch k {
	case NodeKindMenu, NodeKindShelf, NodeKindGroup:
		return true
	default:
		return false
	}
}

// IsLeaf reports whether nodes of this kind are resolved through the
// item-type registry into an executable command.
func (k NodeKind) IsLeaf() bool {
	switch k {
	case NodeKindShelfButton, NodeKindDefinition, NodeKindVariant:
		return true
	default:
		return false
	}
}

// DefaultChildKind returns the kind assigned to a child record that does
// not declare one. Shelf-button children are variants, shelf children are
// buttons; elsewhere a child with children of its own is a submenu and a
// childless one is a definition.
func (k NodeKind) DefaultChildKind(childHasChildren bool) NodeKind {
	switch k {
	case NodeKindShelfButton:
		return NodeKindVariant
	case NodeKindShelf:
		return NodeKindShelfButton
	}
	if childHasChildren {
		return NodeKindMenu
	}
	return NodeKindDefinition
}

// ParseNodeKind converts a document kind string into a NodeKind.
// Matching is case-insensitive and accepts hyphenated spellings.
func ParseNodeKind(s string) (NodeKind, error) {
	clean := strings.ToLower(strings.TrimSpace(s))
	clean = strings.ReplaceAll(clean, "-", "_")
	kind := NodeKind(clean)
	if !kind.Valid() {
		return "", fmt.Errorf("unknown node kind %q", s)
	}
	return kind, nil
}

// Family selects one of the two canonical layout trees.
type Family string

const (
	FamilyMenu  Family = "menu"
	FamilyShelf Family = "shelf"
)

// Families lists the families in build order.
var Families = []Family{FamilyMenu, FamilyShelf}

// String returns the string representation of the Family.
func (f Family) String() string {
	return string(f)
}

// RootKind returns the container kind used for top-level nodes of the family.
func (f Family) RootKind() NodeKind {
	if f == FamilyShelf {
		return NodeKindShelf
	}
	return NodeKindMenu
}

// Attrs holds the display attributes of a node as handed to a host.
// Well-known keys are the Attr* constants; resolvers may add others.
type Attrs map[string]any

const (
	AttrLabel   = "label"
	AttrTooltip = "tooltip"
	AttrIcon    = "icon"
	AttrColor   = "color"
)

// Clone returns a shallow copy of the attributes.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Apply copies every key of overrides onto a copy of a and returns it.
func (a Attrs) Apply(overrides Attrs) Attrs {
	out := a.Clone()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// String returns the value for key when it is a string.
func (a Attrs) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// CommandDescriptor is the resolved, executable command bound to a leaf.
// It is immutable once created by a resolver.
type CommandDescriptor struct {
	PluginID  string         `json:"plugin_id"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// Payload is the opaque, host-storable invocation text.
	Payload string `json:"payload"`
}
