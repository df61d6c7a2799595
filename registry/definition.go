package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/tool"
)

// DefinitionType is the item type of the built-in resolver. Leaves with no
// explicit type resolve through it.
const DefinitionType = string(core.NodeKindDefinition)

// DefinitionResolver is the built-in resolver backed by the definition
// registry. It owns the registry and tears it down with itself.
type DefinitionResolver struct {
	defs *tool.Registry
}

// NewDefinitionResolver wraps defs.
func NewDefinitionResolver(defs *tool.Registry) *DefinitionResolver {
	return &DefinitionResolver{defs: defs}
}

// Definitions returns the backing definition registry.
func (r *DefinitionResolver) Definitions() *tool.Registry { return r.defs }

func (r *DefinitionResolver) Type() string { return DefinitionType }

// OwnedPluginIDs returns the resident definition ids.
func (r *DefinitionResolver) OwnedPluginIDs() []string {
	return r.defs.List()
}

// ResolveOverrides fills label and tooltip from the definition manifest
// where the layout left them empty. It fails when no definition is
// resident for id.
func (r *DefinitionResolver) ResolveOverrides(id string, base core.Attrs) Override {
	var manifest *tool.Manifest
	for _, m := range r.defs.Manifests() {
		if m.ID == id {
			manifest = &m
			break
		}
	}
	if manifest == nil {
		return Failed(&OverrideError{Type: DefinitionType, ID: id, Err: tool.ErrDefinitionNotFound})
	}

	attrs := core.Attrs{}
	if base.String(core.AttrLabel) == "" && manifest.Label != "" {
		attrs[core.AttrLabel] = manifest.Label
	}
	if base.String(core.AttrTooltip) == "" && manifest.Description != "" {
		attrs[core.AttrTooltip] = manifest.Description
	}
	if len(attrs) == 0 {
		return NotApplicable()
	}
	return Found(attrs)
}

// BuildCommand encodes an invocation payload for id. Nothing is executed;
// the payload is dispatched later through tool.Dispatcher.
func (r *DefinitionResolver) BuildCommand(id string, args map[string]any) (Command, error) {
	payload, err := tool.EncodePayload(id, args)
	if err != nil {
		return NoCommand(), fmt.Errorf("registry: building command for %q: %w", id, err)
	}
	return Built(core.CommandDescriptor{PluginID: id, Arguments: args, Payload: payload}), nil
}

// Teardown tears down every resident definition.
func (r *DefinitionResolver) Teardown(ctx context.Context) error {
	return errors.Join(r.defs.Teardown(ctx)...)
}
