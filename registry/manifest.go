package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/loader"
	"github.com/petal-labs/shelfwright/tool"
)

// ErrPluginNotDeclared is the override failure of a strict manifest
// resolver asked about a plugin id it does not declare.
var ErrPluginNotDeclared = errors.New("registry: plugin not declared")

// Manifest declares a data-driven resolver for one item type.
type Manifest struct {
	Type string `json:"type"`
	// Defaults apply to every leaf of the type.
	Defaults core.Attrs `json:"defaults,omitempty"`
	// Plugins holds per plugin id attributes layered over Defaults.
	Plugins map[string]core.Attrs `json:"plugins,omitempty"`
	// Strict makes leaves whose plugin id is not in Plugins fail override
	// resolution instead of receiving only Defaults.
	Strict  bool             `json:"strict,omitempty"`
	Command *CommandTemplate `json:"command,omitempty"`

	Source string `json:"-"`
}

// CommandTemplate describes the command bound to leaves of a manifest type.
type CommandTemplate struct {
	// Plugin is the plugin id to invoke; empty means the leaf's plugin id.
	Plugin    string         `json:"plugin,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ParseManifest decodes one resolver manifest.
func ParseManifest(data []byte, path string) (Manifest, error) {
	jsonData, err := loader.ToJSON(data, path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return Manifest{}, fmt.Errorf("registry: parsing manifest %s: %w", path, err)
	}
	if strings.TrimSpace(m.Type) == "" {
		return Manifest{}, fmt.Errorf("registry: manifest %s: type is required", path)
	}
	if m.Command != nil {
		if err := tool.ValidateArguments(m.Command.Arguments); err != nil {
			return Manifest{}, fmt.Errorf("registry: manifest %s: %w", path, err)
		}
	}
	m.Source = path
	return m, nil
}

// ManifestResolver is a Resolver backed by a Manifest.
type ManifestResolver struct {
	m Manifest
}

// NewManifestResolver creates a resolver for m.
func NewManifestResolver(m Manifest) *ManifestResolver {
	return &ManifestResolver{m: m}
}

func (r *ManifestResolver) Type() string { return r.m.Type }

// OwnedPluginIDs returns the declared plugin ids, sorted.
func (r *ManifestResolver) OwnedPluginIDs() []string {
	ids := make([]string, 0, len(r.m.Plugins))
	for id := range r.m.Plugins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveOverrides returns Defaults layered with the plugin's attributes.
func (r *ManifestResolver) ResolveOverrides(id string, base core.Attrs) Override {
	plugin, declared := r.m.Plugins[id]
	if !declared && r.m.Strict {
		return Failed(&OverrideError{Type: r.m.Type, ID: id, Err: ErrPluginNotDeclared})
	}
	if len(r.m.Defaults) == 0 && len(plugin) == 0 {
		return NotApplicable()
	}
	return Found(r.m.Defaults.Apply(plugin))
}

// BuildCommand encodes the command template for id. Leaf arguments
// override template arguments key by key.
func (r *ManifestResolver) BuildCommand(id string, args map[string]any) (Command, error) {
	if r.m.Command == nil {
		return NoCommand(), nil
	}
	pluginID := r.m.Command.Plugin
	if pluginID == "" {
		pluginID = id
	}
	merged := make(map[string]any, len(r.m.Command.Arguments)+len(args))
	for k, v := range r.m.Command.Arguments {
		merged[k] = v
	}
	for k, v := range args {
		merged[k] = v
	}
	payload, err := tool.EncodePayload(pluginID, merged)
	if err != nil {
		return NoCommand(), err
	}
	return Built(core.CommandDescriptor{PluginID: pluginID, Arguments: merged, Payload: payload}), nil
}

// Teardown is a no-op; manifest resolvers hold no resources.
func (r *ManifestResolver) Teardown(ctx context.Context) error {
	return nil
}

// LoadManifests scans paths for resolver manifests and registers a
// ManifestResolver for each. Manifests that fail to read or parse are
// logged and skipped. It returns the number of resolvers registered.
func (r *Registry) LoadManifests(paths []string) int {
	n := 0
	for _, path := range loader.Discover(paths, r.logger) {
		data, err := os.ReadFile(path) // #nosec G304 -- path from search path
		if err != nil {
			r.logger.Warn("skipping resolver manifest", "path", path, "error", err)
			continue
		}
		m, err := ParseManifest(data, path)
		if err != nil {
			r.logger.Warn("skipping resolver manifest", "path", path, "error", err)
			continue
		}
		r.Register(NewManifestResolver(m))
		r.logger.Debug("registered resolver manifest", "type", m.Type, "path", path)
		n++
	}
	return n
}
