package tool

// ExecutionObservation captures one definition execution outcome.
type ExecutionObservation struct {
	PluginID   string
	Runner     string
	DurationMS int64
	Success    bool
	ErrorCode  string
}

// TeardownObservation captures one definition teardown outcome.
type TeardownObservation struct {
	PluginID string
	Success  bool
}

// Observer receives definition-level observability events.
type Observer interface {
	ObserveExecute(observation ExecutionObservation)
	ObserveTeardown(observation TeardownObservation)
}

// NoopObserver discards every observation.
type NoopObserver struct{}

func (NoopObserver) ObserveExecute(ExecutionObservation) {}
func (NoopObserver) ObserveTeardown(TeardownObservation) {}
