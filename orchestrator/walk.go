package orchestrator

import (
	"errors"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
	"github.com/petal-labs/shelfwright/registry"
)

// walkTree emits the tree's top-level nodes and their subtrees to host,
// depth-first in child order.
func (o *Orchestrator) walkTree(report Report, tree *layout.Tree, host Host, fr *FamilyReport) {
	w := walker{o: o, runID: report.RunID, family: tree.Family, host: host, report: fr}
	for _, top := range tree.Root.Children {
		w.node(top, 0)
	}
}

type walker struct {
	o      *Orchestrator
	runID  string
	family core.Family
	host   Host
	report *FamilyReport
}

func (w *walker) instruction(op Op, n *core.Node, depth int) Instruction {
	return Instruction{
		Op:     op,
		Family: w.family,
		ID:     n.ID,
		Path:   n.Path(),
		Kind:   n.Kind,
		Depth:  depth,
		Attrs:  n.Attrs(),
	}
}

func (w *walker) node(n *core.Node, depth int) {
	switch {
	case n.Kind == core.NodeKindSeparator:
		w.host.Emit(w.instruction(OpSeparator, n, depth))
	case n.Kind == core.NodeKindLabel:
		w.host.Emit(w.instruction(OpLabel, n, depth))
	case n.Kind.IsContainer():
		w.host.Emit(w.instruction(OpOpen, n, depth))
		for _, c := range n.Children {
			w.node(c, depth+1)
		}
		w.host.Emit(w.instruction(OpClose, n, depth))
	case n.IsLeaf():
		if !w.leaf(n, depth) {
			return
		}
		// Variants of a shelf button follow it one level deeper.
		for _, c := range n.Children {
			w.node(c, depth+1)
		}
	}
}

// leaf resolves n through the item-type registry and emits it. It reports
// whether the leaf was built.
func (w *walker) leaf(n *core.Node, depth int) bool {
	o := w.o
	itemType := n.ItemType()
	pluginID := n.PluginID()

	res, err := o.resolvers.Lookup(itemType)
	if err != nil {
		o.logger.Warn("skipping leaf with unknown item type",
			"family", w.family, "path", n.Path(), "type", itemType, "error", err)
		w.skip(n, itemType, err)
		return false
	}

	base := n.Attrs()
	attrs := base
	switch override := res.ResolveOverrides(pluginID, base.Clone()); override.Status {
	case registry.OverrideFound:
		attrs = base.Apply(override.Attrs)
	case registry.OverrideFailed:
		overrideErr := override.Err
		var oe *registry.OverrideError
		if !errors.As(overrideErr, &oe) {
			overrideErr = &registry.OverrideError{Type: itemType, ID: pluginID, Err: override.Err}
		}
		o.logger.Warn("resolver override failed; using layout attributes",
			"family", w.family, "path", n.Path(), "type", itemType, "error", overrideErr)
	}

	cmd, err := res.BuildCommand(pluginID, n.Arguments)
	if err != nil {
		o.logger.Warn("skipping leaf whose command cannot be built",
			"family", w.family, "path", n.Path(), "type", itemType, "error", err)
		w.skip(n, itemType, err)
		return false
	}

	ins := w.instruction(OpItem, n, depth)
	ins.Type = itemType
	ins.Attrs = attrs
	ins.Command = cmd.Descriptor
	w.host.Emit(ins)

	w.report.Leaves++
	o.emit(NewEvent(EventLeafBuilt, w.runID).
		WithFamily(w.family).
		WithNode(n.ID, n.Kind).
		WithPayload("type", itemType).
		WithPayload("has_command", cmd.Present()))
	return true
}

func (w *walker) skip(n *core.Node, itemType string, err error) {
	w.report.SkippedLeaves++
	w.o.emit(NewEvent(EventLeafSkipped, w.runID).
		WithFamily(w.family).
		WithNode(n.ID, n.Kind).
		WithPayload("type", itemType).
		WithPayload("error", err.Error()))
}
