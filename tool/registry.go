package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RegistryConfig configures a definition registry.
type RegistryConfig struct {
	// Paths is the definition search path scanned for manifests.
	Paths []string
	// Factories maps runner names to constructors; nil uses DefaultFactories.
	Factories Factories
	// Natives supplies in-process functions to the native runner.
	Natives  Natives
	Observer Observer
	History  HistoryStore
	Logger   *slog.Logger
}

type resident struct {
	def   Definition
	stats Stats
}

// Registry holds resident definitions. Each definition is instantiated
// exactly once and lives until Teardown.
type Registry struct {
	mu        sync.Mutex
	residents map[string]*resident
	order     []string
	tornDown  bool

	factories Factories
	natives   Natives
	observer  Observer
	history   HistoryStore
	logger    *slog.Logger
}

// NewRegistry scans cfg.Paths for definition manifests and instantiates
// each one. A manifest that fails to instantiate is logged and skipped;
// a duplicate id keeps the first definition.
func NewRegistry(ctx context.Context, cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		residents: make(map[string]*resident),
		factories: cfg.Factories,
		natives:   cfg.Natives,
		observer:  cfg.Observer,
		history:   cfg.History,
		logger:    cfg.Logger,
	}
	if r.factories == nil {
		r.factories = DefaultFactories()
	}
	if r.observer == nil {
		r.observer = NoopObserver{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	for _, m := range ScanManifests(cfg.Paths, r.logger) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.Has(m.ID) {
			r.logger.Warn("duplicate definition id; keeping first",
				"id", m.ID, "source", m.Source)
			continue
		}
		def, err := r.factories.Instantiate(m, r.natives)
		if err != nil {
			r.logger.Warn("skipping definition", "id", m.ID, "source", m.Source, "error", err)
			continue
		}
		if err := r.Add(def); err != nil {
			r.logger.Warn("skipping definition", "id", m.ID, "source", m.Source, "error", err)
		}
	}
	return r, nil
}

// Add registers an instantiated definition.
func (r *Registry) Add(def Definition) error {
	if def == nil {
		return errors.New("tool: nil definition")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tornDown {
		return ErrTornDown
	}
	id := def.ID()
	if _, exists := r.residents[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDefinition, id)
	}
	r.residents[id] = &resident{def: def, stats: Stats{State: StateConstructed}}
	r.order = append(r.order, id)
	r.logger.Debug("definition registered", "id", id, "runner", def.Manifest().Runner)
	return nil
}

// Has reports whether a definition with id is resident.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.residents[id]
	return ok
}

// List returns the resident definition ids in registration order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Manifests returns the manifests of resident definitions in registration order.
func (r *Registry) Manifests() []Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Manifest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.residents[id].def.Manifest())
	}
	return out
}

// Stats returns the bookkeeping for id.
func (r *Registry) Stats(id string) (Stats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.residents[id]
	if !ok {
		return Stats{}, false
	}
	return res.stats, true
}

// Execute runs the resident definition for pluginID. Failures, including
// a panic raised by the definition, are returned as *ExecutionError.
func (r *Registry) Execute(ctx context.Context, pluginID string, args map[string]any) (map[string]any, error) {
	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		return nil, &ExecutionError{PluginID: pluginID, Err: ErrTornDown}
	}
	res, ok := r.residents[pluginID]
	if !ok {
		r.mu.Unlock()
		return nil, &ExecutionError{PluginID: pluginID, Err: ErrDefinitionNotFound}
	}
	start := time.Now()
	res.stats.State = StateExecuting
	res.stats.LastStarted = start
	res.stats.Executions++
	r.mu.Unlock()

	outputs, err := safeExecute(ctx, res.def, args)
	duration := time.Since(start)

	r.mu.Lock()
	res.stats.LastDuration = duration
	res.stats.LastError = ""
	if err != nil {
		res.stats.Failures++
		res.stats.LastError = err.Error()
	}
	if res.stats.State == StateExecuting {
		res.stats.State = StateIdle
	}
	r.mu.Unlock()

	r.observer.ObserveExecute(ExecutionObservation{
		PluginID:   pluginID,
		Runner:     res.def.Manifest().Runner,
		DurationMS: duration.Milliseconds(),
		Success:    err == nil,
		ErrorCode:  ErrorCode(err),
	})
	r.recordHistory(ctx, pluginID, start, duration, err)

	if err != nil {
		r.logger.Warn("definition execution failed", "id", pluginID, "duration", duration, "error", err)
		return nil, &ExecutionError{PluginID: pluginID, Err: err}
	}
	r.logger.Debug("definition executed", "id", pluginID, "duration", duration)
	return outputs, nil
}

func (r *Registry) recordHistory(ctx context.Context, pluginID string, start time.Time, duration time.Duration, execErr error) {
	if r.history == nil {
		return
	}
	rec := ExecutionRecord{
		ID:        uuid.NewString(),
		PluginID:  pluginID,
		StartedAt: start,
		Duration:  duration,
		Success:   execErr == nil,
		ErrorCode: ErrorCode(execErr),
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	if err := r.history.Record(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("recording execution history", "id", pluginID, "error", err)
	}
}

// Teardown tears down every resident definition in registration order.
// Each hook runs in isolation: a failure is logged and collected as a
// *TeardownError and the remaining definitions are still torn down.
// Calling Teardown again is a no-op.
func (r *Registry) Teardown(ctx context.Context) []error {
	r.mu.Lock()
	if r.tornDown {
		r.mu.Unlock()
		return nil
	}
	r.tornDown = true
	residents := make([]*resident, 0, len(r.order))
	for _, id := range r.order {
		residents = append(residents, r.residents[id])
	}
	r.mu.Unlock()

	var errs []error
	for _, res := range residents {
		id := res.def.ID()
		err := safeTeardown(ctx, res.def)

		r.mu.Lock()
		res.stats.State = StateTornDown
		r.mu.Unlock()

		r.observer.ObserveTeardown(TeardownObservation{PluginID: id, Success: err == nil})
		if err != nil {
			r.logger.Error("definition teardown failed", "id", id, "error", err)
			errs = append(errs, &TeardownError{PluginID: id, Err: err})
		}
	}
	return errs
}

func safeExecute(ctx context.Context, def Definition, args map[string]any) (outputs map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			outputs, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()
	return def.Execute(ctx, args)
}

func safeTeardown(ctx context.Context, def Definition) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return def.Teardown(ctx)
}
