package metrics

import "testing"

// NoopRecorder must satisfy Recorder and be usable as a zero value.
func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncFetchIssued()
	r.IncFetchOutcome(OutcomeAbandoned)
	r.ObserveFetchDuration(0, OutcomeAbandoned)
	r.IncPersistenceFailure("k", OpLoad)
	r.SetLoading(true)
	r.SetBreakerState("closed")
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
