package tool

import (
	"context"
	"fmt"
	"time"
)

// Definition is a resident command implementation addressed by plugin id.
type Definition interface {
	ID() string
	Manifest() Manifest
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
	Teardown(ctx context.Context) error
}

// NativeFunc is an in-process command body.
type NativeFunc func(ctx context.Context, args map[string]any) (map[string]any, error)

// Natives maps native function names to their implementations.
type Natives map[string]NativeFunc

// Factory instantiates a Definition for a manifest.
type Factory func(m Manifest, natives Natives) (Definition, error)

// Factories maps runner names to factories.
type Factories map[string]Factory

// DefaultFactories returns the built-in native and stdio runners.
func DefaultFactories() Factories {
	return Factories{
		RunnerNative: NewNativeDefinition,
		RunnerStdio:  NewStdioDefinition,
	}
}

// Instantiate creates a Definition for m using the runner it names.
func (f Factories) Instantiate(m Manifest, natives Natives) (Definition, error) {
	factory, ok := f[m.Runner]
	if !ok {
		return nil, fmt.Errorf("%w: %q (definition %q)", ErrUnknownRunner, m.Runner, m.ID)
	}
	return factory(m, natives)
}

// State is the lifecycle state of a resident definition.
type State string

// A definition starts constructed and becomes idle after its first
// execution.
const (
	StateConstructed State = "constructed"
	StateIdle        State = "idle"
	StateExecuting   State = "executing"
	StateTornDown    State = "torn_down"
)

// Stats is the execution bookkeeping kept for a resident definition.
type Stats struct {
	State        State         `json:"state"`
	Executions   int           `json:"executions"`
	Failures     int           `json:"failures"`
	LastStarted  time.Time     `json:"last_started,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
}
