package metrics

import "time"

// OutcomeLabel enumerates terminal states of a fetch cycle.
type OutcomeLabel string

const (
	OutcomeSuccess    OutcomeLabel = "success"
	OutcomeFailure    OutcomeLabel = "failure"
	OutcomeSuperseded OutcomeLabel = "superseded" // a newer cycle was issued first
	OutcomeAbandoned  OutcomeLabel = "abandoned"  // the latest cycle was torn down
)

// PersistenceOp names a storage operation for failure counters.
type PersistenceOp string

const (
	OpLoad   PersistenceOp = "load"
	OpSave   PersistenceOp = "save"
	OpDelete PersistenceOp = "delete"
)

// Recorder defines observability hooks for fetch cycles and persistence.
// Implementations must be safe for concurrent use.
type Recorder interface {
	IncFetchIssued()
	IncFetchOutcome(outcome OutcomeLabel)
	ObserveFetchDuration(d time.Duration, outcome OutcomeLabel)
	IncPersistenceFailure(key string, op PersistenceOp)
	SetLoading(loading bool)
	SetBreakerState(state string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFetchIssued()                                {}
func (NoopRecorder) IncFetchOutcome(OutcomeLabel)                   {}
func (NoopRecorder) ObserveFetchDuration(time.Duration, OutcomeLabel) {}
func (NoopRecorder) IncPersistenceFailure(string, PersistenceOp)    {}
func (NoopRecorder) SetLoading(bool)                                {}
func (NoopRecorder) SetBreakerState(string)                         {}
