package orchestrator

import (
	"time"

	"github.com/petal-labs/shelfwright/core"
)

// EventKind identifies the type of event emitted by the orchestrator.
type EventKind string

const (
	// EventBuildStarted is emitted when a build begins.
	EventBuildStarted EventKind = "build.started"

	// EventDocumentLoaded is emitted for each document that parsed.
	EventDocumentLoaded EventKind = "document.loaded"

	// EventDocumentSkipped is emitted for each document that failed to load.
	EventDocumentSkipped EventKind = "document.skipped"

	// EventLeafBuilt is emitted when a leaf is handed to the host.
	EventLeafBuilt EventKind = "leaf.built"

	// EventLeafSkipped is emitted when a leaf is left out of the host build.
	EventLeafSkipped EventKind = "leaf.skipped"

	// EventBuildFinished is emitted when a build completes.
	EventBuildFinished EventKind = "build.finished"

	// EventCommandExecuted is emitted when a dispatched command succeeds.
	EventCommandExecuted EventKind = "command.executed"

	// EventCommandFailed is emitted when a dispatched command fails.
	EventCommandFailed EventKind = "command.failed"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured record of what happened during a build or dispatch.
type Event struct {
	Kind EventKind

	// RunID identifies the build; empty for command events.
	RunID string

	// Family is the layout family being built (empty for run-level events).
	Family core.Family

	// NodeID and NodeKind identify the leaf for leaf events.
	NodeID   string
	NodeKind core.NodeKind

	Time time.Time

	// Elapsed is the duration since the build started, or the command duration.
	Elapsed time.Duration

	// Payload contains event-specific data.
	Payload map[string]any

	// TraceID and SpanID are set when a tracing emitter wraps the handler.
	TraceID string
	SpanID  string
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID string) Event {
	return Event{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithFamily sets the family on the event.
func (e Event) WithFamily(family core.Family) Event {
	e.Family = family
	return e
}

// WithNode sets the node information on the event.
func (e Event) WithNode(nodeID string, nodeKind core.NodeKind) Event {
	e.NodeID = nodeID
	e.NodeKind = nodeKind
	return e
}

// WithElapsed sets the elapsed duration on the event.
func (e Event) WithElapsed(elapsed time.Duration) Event {
	e.Elapsed = elapsed
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling events.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}
