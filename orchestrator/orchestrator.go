// Package orchestrator drives the layout pipeline: load, merge, sort,
// inject trailing status nodes, then walk each family tree and hand
// resolved build instructions to a host.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/shelfwright/config"
	"github.com/petal-labs/shelfwright/core"
	"github.com/petal-labs/shelfwright/layout"
	"github.com/petal-labs/shelfwright/loader"
	"github.com/petal-labs/shelfwright/registry"
	"github.com/petal-labs/shelfwright/tool"
)

var (
	// ErrBuildInProgress is returned when Build is entered while another build runs.
	ErrBuildInProgress = errors.New("orchestrator: build already in progress")
	// ErrClosed is returned by Build after Teardown.
	ErrClosed = errors.New("orchestrator: torn down")
)

// Ids of the nodes injected after the status root's children.
const (
	StatusSeparatorID = "shelfwright_status_separator"
	StatusLabelID     = "shelfwright_status"
)

// Config configures an Orchestrator.
type Config struct {
	Settings config.Config

	// Natives and Factories are passed to the definition registry.
	Natives   tool.Natives
	Factories tool.Factories
	Observer  tool.Observer
	// History records definition executions. When nil and
	// Settings.HistoryDSN is set, a SQLite history is opened and owned by
	// the orchestrator.
	History tool.HistoryStore

	// Resolvers are registered after those found on the resolver path.
	Resolvers []registry.Resolver

	Events EventHandler
	Logger *slog.Logger
}

// FamilyReport summarizes one family's build.
type FamilyReport struct {
	Family        core.Family         `json:"family"`
	Documents     []string            `json:"documents"`
	Diagnostics   []layout.Diagnostic `json:"diagnostics,omitempty"`
	Leaves        int                 `json:"leaves"`
	SkippedLeaves int                 `json:"skipped_leaves"`
}

// Report summarizes a build.
type Report struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Duration time.Duration  `json:"duration"`
	Families []FamilyReport `json:"families"`
}

// Diagnostics returns every family's diagnostics.
func (r Report) Diagnostics() []layout.Diagnostic {
	var out []layout.Diagnostic
	for _, f := range r.Families {
		out = append(out, f.Diagnostics...)
	}
	return out
}

// Orchestrator is the service object that owns the canonical trees, the
// resolver registry and the definition registry for its lifetime.
type Orchestrator struct {
	settings config.Config
	logger   *slog.Logger
	events   EventHandler

	resolvers  *registry.Registry
	defs       *tool.Registry
	dispatcher *tool.Dispatcher
	history    tool.HistoryStore
	ownHistory bool

	buildMu sync.Mutex

	mu       sync.RWMutex
	trees    map[core.Family]*layout.Tree
	tornDown bool
}

// New creates the definition registry, the built-in definition resolver
// and the resolvers found on the resolver search path.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		settings: cfg.Settings,
		logger:   logger,
		events:   cfg.Events,
		history:  cfg.History,
		trees:    make(map[core.Family]*layout.Tree),
	}

	if o.history == nil && cfg.Settings.HistoryDSN != "" {
		h, err := tool.NewSQLiteHistory(cfg.Settings.HistoryDSN)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: opening history: %w", err)
		}
		o.history = h
		o.ownHistory = true
	}

	defs, err := tool.NewRegistry(ctx, tool.RegistryConfig{
		Paths:     cfg.Settings.DefinitionPaths,
		Factories: cfg.Factories,
		Natives:   cfg.Natives,
		Observer:  cfg.Observer,
		History:   o.history,
		Logger:    logger,
	})
	if err != nil {
		_ = o.closeHistory()
		return nil, err
	}
	o.defs = defs
	o.dispatcher = tool.NewDispatcher(defs)

	builtin := registry.NewDefinitionResolver(defs)
	o.resolvers = registry.New(logger)
	o.resolvers.Register(builtin)
	o.resolvers.LoadManifests(cfg.Settings.ResolverPaths)
	for _, res := range cfg.Resolvers {
		if res != nil && res.Type() == registry.DefinitionType {
			logger.Warn("item type is reserved for the built-in resolver; ignoring replacement",
				"type", registry.DefinitionType)
			if err := res.Teardown(ctx); err != nil {
				logger.Warn("tearing down rejected resolver", "type", res.Type(), "error", err)
			}
			continue
		}
		o.resolvers.Register(res)
	}
	if res, _ := o.resolvers.Get(registry.DefinitionType); res != registry.Resolver(builtin) {
		logger.Warn("item type is reserved for the built-in resolver; ignoring replacement",
			"type", registry.DefinitionType)
		o.resolvers.Register(builtin)
	}

	logger.Debug("orchestrator ready",
		"resolvers", o.resolvers.Len(), "definitions", len(defs.List()))
	return o, nil
}

// Resolvers returns the item-type registry.
func (o *Orchestrator) Resolvers() *registry.Registry { return o.resolvers }

// Definitions returns the definition registry.
func (o *Orchestrator) Definitions() *tool.Registry { return o.defs }

// History returns the execution history store, or nil.
func (o *Orchestrator) History() tool.HistoryStore { return o.history }

// Tree returns the tree built for family by the last Build. Callers must
// treat it as read-only.
func (o *Orchestrator) Tree(family core.Family) (*layout.Tree, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.trees[family]
	return t, ok
}

// Build runs the whole pipeline for every family and emits the result to
// host. Concurrent calls fail fast with ErrBuildInProgress. Problems with
// individual documents or leaves are logged and reported, never returned.
func (o *Orchestrator) Build(ctx context.Context, host Host) (Report, error) {
	if !o.buildMu.TryLock() {
		return Report{}, ErrBuildInProgress
	}
	defer o.buildMu.Unlock()

	o.mu.RLock()
	closed := o.tornDown
	o.mu.RUnlock()
	if closed {
		return Report{}, ErrClosed
	}

	report := Report{RunID: uuid.NewString(), Started: time.Now()}
	o.emit(NewEvent(EventBuildStarted, report.RunID))
	o.logger.Info("layout build started", "run_id", report.RunID)

	// Every family is loaded before the host sees anything, so a failed
	// build never leaves one family realized and the other missing.
	trees := make(map[core.Family]*layout.Tree, len(core.Families))
	frs := make([]FamilyReport, 0, len(core.Families))
	for _, family := range core.Families {
		tree, fr, err := o.buildTree(ctx, report, family)
		if err != nil {
			return report, err
		}
		trees[family] = tree
		frs = append(frs, fr)
	}
	for i := range frs {
		o.walkTree(report, trees[frs[i].Family], host, &frs[i])
	}
	report.Families = frs

	o.mu.Lock()
	o.trees = trees
	o.mu.Unlock()

	report.Duration = time.Since(report.Started)
	finished := NewEvent(EventBuildFinished, report.RunID).WithElapsed(report.Duration)
	for _, fr := range report.Families {
		finished = finished.WithPayload(string(fr.Family)+"_leaves", fr.Leaves)
	}
	o.emit(finished)
	o.logger.Info("layout build finished", "run_id", report.RunID, "duration", report.Duration)
	return report, nil
}

// Refresh discards the current trees and rebuilds from Load.
func (o *Orchestrator) Refresh(ctx context.Context, host Host) (Report, error) {
	o.mu.Lock()
	o.trees = make(map[core.Family]*layout.Tree)
	o.mu.Unlock()
	return o.Build(ctx, host)
}

func (o *Orchestrator) buildTree(ctx context.Context, report Report, family core.Family) (*layout.Tree, FamilyReport, error) {
	fr := FamilyReport{Family: family}

	res, err := loader.Load(ctx, loader.Options{
		Family: family,
		Paths:  o.settings.Paths(family),
		Logger: o.logger,
	})
	if err != nil {
		return nil, fr, err
	}

	for _, d := range res.Diagnostics {
		o.emit(NewEvent(EventDocumentSkipped, report.RunID).
			WithFamily(family).
			WithPayload("source", d.Source).
			WithPayload("error", d.Message))
	}
	for _, doc := range res.Documents {
		fr.Documents = append(fr.Documents, doc.Source)
		o.emit(NewEvent(EventDocumentLoaded, report.RunID).
			WithFamily(family).
			WithPayload("source", doc.Source).
			WithPayload("priority", doc.Priority))
	}

	tree := layout.MergeAll(layout.NewTree(family, o.logger), res.Documents...)
	layout.SortTree(tree)
	o.injectStatus(tree)

	fr.Diagnostics = append(fr.Diagnostics, res.Diagnostics...)
	fr.Diagnostics = append(fr.Diagnostics, tree.Diagnostics...)
	return tree, fr, nil
}

// injectStatus appends the status separator and label to the configured
// root container. A missing root is not an error.
func (o *Orchestrator) injectStatus(tree *layout.Tree) {
	rootID := o.settings.StatusRoot
	if rootID == "" {
		return
	}
	root, ok := tree.Top(rootID)
	if !ok {
		o.logger.Debug("status root not present", "family", tree.Family, "root", rootID)
		return
	}

	next := 0
	if n := len(root.Children); n > 0 {
		next = root.Children[n-1].SortOrder + 1
	}
	place := func(id string, kind core.NodeKind, label string) {
		node, exists := root.Child(id)
		if exists {
			// Move an authored node with the reserved id to the end.
			root.Children = append(removeNode(root.Children, node), node)
		} else {
			node = core.NewNode(id, kind)
			_ = root.AppendChild(node)
		}
		node.Kind = kind
		node.Label = label
		node.SortOrder = next
		next++
	}
	place(StatusSeparatorID, core.NodeKindSeparator, "")
	place(StatusLabelID, core.NodeKindLabel, o.settings.StatusLabel)
}

func removeNode(children []*core.Node, n *core.Node) []*core.Node {
	for i, c := range children {
		if c == n {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

// Execute decodes a stored command payload and runs it. Execution
// failures are returned as *tool.ExecutionError.
func (o *Orchestrator) Execute(ctx context.Context, payload string) (map[string]any, error) {
	start := time.Now()
	out, err := o.dispatcher.Dispatch(ctx, payload)
	elapsed := time.Since(start)

	pluginID := ""
	if inv, decodeErr := tool.DecodePayload(payload); decodeErr == nil {
		pluginID = inv.PluginID
	}
	if err != nil {
		o.emit(NewEvent(EventCommandFailed, "").
			WithNode(pluginID, "").
			WithElapsed(elapsed).
			WithPayload("error", err.Error()).
			WithPayload("error_code", tool.ErrorCode(err)))
		return nil, err
	}
	o.emit(NewEvent(EventCommandExecuted, "").WithNode(pluginID, "").WithElapsed(elapsed))
	return out, nil
}

// Teardown tears down every resolver (and through the built-in resolver
// every definition) and closes an owned history store. Failures are logged
// and isolated; the result reports whether every hook succeeded.
func (o *Orchestrator) Teardown(ctx context.Context) bool {
	o.mu.Lock()
	if o.tornDown {
		o.mu.Unlock()
		return true
	}
	o.tornDown = true
	o.trees = make(map[core.Family]*layout.Tree)
	o.mu.Unlock()

	ok := true
	for _, err := range o.resolvers.Teardown(ctx) {
		ok = false
		o.logger.Error("teardown failed", "error", err)
	}
	if err := o.closeHistory(); err != nil {
		ok = false
		o.logger.Error("closing history", "error", err)
	}
	o.logger.Info("orchestrator torn down", "clean", ok)
	return ok
}

func (o *Orchestrator) closeHistory() error {
	if !o.ownHistory || o.history == nil {
		return nil
	}
	return o.history.Close()
}

func (o *Orchestrator) emit(e Event) {
	if o.events != nil {
		o.events(e)
	}
}
