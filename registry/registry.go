// Package registry maps item types to the resolvers that turn layout leaves
// into display attributes and executable commands.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/petal-labs/shelfwright/core"
)

// Resolver supplies display overrides and commands for one item type.
type Resolver interface {
	// Type returns the item type this resolver is registered under.
	Type() string
	// OwnedPluginIDs lists the plugin ids the resolver knows about.
	OwnedPluginIDs() []string
	// ResolveOverrides returns display attributes for the leaf with the
	// given plugin id, layered over base by the caller.
	ResolveOverrides(id string, base core.Attrs) Override
	// BuildCommand returns the command bound to the leaf, if any.
	BuildCommand(id string, args map[string]any) (Command, error)
	// Teardown releases resolver resources at shutdown.
	Teardown(ctx context.Context) error
}

// OverrideStatus distinguishes the outcomes of ResolveOverrides.
type OverrideStatus int

const (
	OverrideNotApplicable OverrideStatus = iota
	OverrideFound
	OverrideFailed
)

func (s OverrideStatus) String() string {
	switch s {
	case OverrideFound:
		return "found"
	case OverrideFailed:
		return "failed"
	default:
		return "not_applicable"
	}
}

// Override is the typed result of ResolveOverrides.
type Override struct {
	Status OverrideStatus
	Attrs  core.Attrs
	Err    error
}

// Found returns an override carrying attrs.
func Found(attrs core.Attrs) Override {
	return Override{Status: OverrideFound, Attrs: attrs}
}

// NotApplicable returns an override meaning the resolver has nothing to add.
func NotApplicable() Override {
	return Override{Status: OverrideNotApplicable}
}

// Failed returns an override meaning the computation failed.
func Failed(err error) Override {
	return Override{Status: OverrideFailed, Err: err}
}

// Command is the typed result of BuildCommand.
type Command struct {
	Descriptor *core.CommandDescriptor
}

// Built returns a command carrying desc.
func Built(desc core.CommandDescriptor) Command {
	return Command{Descriptor: &desc}
}

// NoCommand returns the absent command.
func NoCommand() Command {
	return Command{}
}

// Present reports whether a descriptor was built.
func (c Command) Present() bool {
	return c.Descriptor != nil
}

// UnknownTypeError is returned when no resolver is registered for an item type.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("registry: no resolver for item type %q", e.Type)
}

// OverrideError reports a resolver that failed to compute overrides.
type OverrideError struct {
	Type string
	ID   string
	Err  error
}

func (e *OverrideError) Error() string {
	return fmt.Sprintf("registry: resolving overrides for %q (type %q): %v", e.ID, e.Type, e.Err)
}

func (e *OverrideError) Unwrap() error { return e.Err }

// Registry holds the resolvers keyed by item type.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]Resolver
	order  []string // preserves registration order
	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		types:  make(map[string]Resolver),
		logger: logger,
	}
}

// Register adds a resolver. If a resolver with the same type already
// exists it is replaced, keeping its original position.
func (r *Registry) Register(res Resolver) {
	if res == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	typ := res.Type()
	if _, exists := r.types[typ]; exists {
		r.logger.Debug("replacing resolver", "type", typ)
	} else {
		r.order = append(r.order, typ)
	}
	r.types[typ] = res
}

// Get returns the resolver for an item type.
func (r *Registry) Get(itemType string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.types[itemType]
	return res, ok
}

// Lookup is Get returning an *UnknownTypeError when itemType is unregistered.
func (r *Registry) Lookup(itemType string) (Resolver, error) {
	if res, ok := r.Get(itemType); ok {
		return res, nil
	}
	return nil, &UnknownTypeError{Type: itemType}
}

// Has returns true if the item type is registered.
func (r *Registry) Has(itemType string) bool {
	_, ok := r.Get(itemType)
	return ok
}

// Types returns the registered item types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered resolvers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Teardown tears down every resolver in registration order and returns the
// collected errors. A failing resolver never stops the rest.
func (r *Registry) Teardown(ctx context.Context) []error {
	r.mu.RLock()
	resolvers := make([]Resolver, 0, len(r.order))
	for _, typ := range r.order {
		resolvers = append(resolvers, r.types[typ])
	}
	r.mu.RUnlock()

	var errs []error
	for _, res := range resolvers {
		if err := safeTeardown(ctx, res); err != nil {
			r.logger.Error("resolver teardown failed", "type", res.Type(), "error", err)
			errs = append(errs, fmt.Errorf("registry: tearing down %q: %w", res.Type(), err))
		}
	}
	return errs
}

func safeTeardown(ctx context.Context, res Resolver) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New(fmt.Sprint("panic: ", rec))
		}
	}()
	return res.Teardown(ctx)
}
