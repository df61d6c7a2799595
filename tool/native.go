package tool

import (
	"context"
	"fmt"
)

// NativeDefinition runs an in-process NativeFunc.
type NativeDefinition struct {
	manifest Manifest
	fn       NativeFunc
}

// NewNativeDefinition binds m to the native function it names. The
// function name defaults to the manifest id.
func NewNativeDefinition(m Manifest, natives Natives) (Definition, error) {
	name := m.Native
	if name == "" {
		name = m.ID
	}
	fn, ok := natives[name]
	if !ok || fn == nil {
		return nil, fmt.Errorf("tool: native function %q not provided for definition %q", name, m.ID)
	}
	return &NativeDefinition{manifest: m, fn: fn}, nil
}

// NewNative wraps fn as a definition with the given id.
func NewNative(id string, fn NativeFunc) *NativeDefinition {
	return &NativeDefinition{
		manifest: Manifest{ID: id, Runner: RunnerNative},
		fn:       fn,
	}
}

func (d *NativeDefinition) ID() string         { return d.manifest.ID }
func (d *NativeDefinition) Manifest() Manifest { return d.manifest }

// Execute calls the native function.
func (d *NativeDefinition) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	if d.fn == nil {
		return nil, newDefinitionError(ErrorCodeInvalidRequest, "tool: native definition has no function", false, nil)
	}
	return d.fn(ctx, args)
}

// Teardown is a no-op for native definitions.
func (d *NativeDefinition) Teardown(ctx context.Context) error {
	return nil
}
