package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Breaker states exported by the breaker_state gauge.
var breakerStates = []string{"closed", "half-open", "open"}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once                sync.Once
	fetchIssued         prom.Counter
	fetchOutcomes       *prom.CounterVec
	fetchDuration       *prom.HistogramVec
	persistenceFailures *prom.CounterVec
	loading             prom.Gauge
	breakerState        *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.fetchIssued = prom.NewCounter(prom.CounterOpts{
			Namespace: "stargazer",
			Name:      "fetch_cycles_issued_total",
			Help:      "Visibility fetch cycles issued",
		})
		pr.fetchOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "stargazer",
			Name:      "fetch_cycle_outcomes_total",
			Help:      "Fetch cycle terminal outcomes",
		}, []string{"outcome"})
		pr.fetchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "stargazer",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of visibility fetch cycles",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.persistenceFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "stargazer",
			Name:      "persistence_failures_total",
			Help:      "Swallowed persistence failures by key and operation",
		}, []string{"key", "op"})
		pr.loading = prom.NewGauge(prom.GaugeOpts{
			Namespace: "stargazer",
			Name:      "loading",
			Help:      "1 while a fetch for the current parameters is outstanding",
		})
		pr.breakerState = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "stargazer",
			Name:      "breaker_state",
			Help:      "Visibility service circuit breaker state (1 for the active state)",
		}, []string{"state"})
		reg.MustRegister(pr.fetchIssued, pr.fetchOutcomes, pr.fetchDuration, pr.persistenceFailures, pr.loading, pr.breakerState)
	})
	return pr
}

func (p *PrometheusRecorder) IncFetchIssued() {
	if p == nil || p.fetchIssued == nil {
		return
	}
	p.fetchIssued.Inc()
}

func (p *PrometheusRecorder) IncFetchOutcome(outcome OutcomeLabel) {
	if p == nil || p.fetchOutcomes == nil {
		return
	}
	p.fetchOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveFetchDuration(d time.Duration, outcome OutcomeLabel) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	p.fetchDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPersistenceFailure(key string, op PersistenceOp) {
	if p == nil || p.persistenceFailures == nil {
		return
	}
	p.persistenceFailures.WithLabelValues(key, string(op)).Inc()
}

func (p *PrometheusRecorder) SetLoading(loading bool) {
	if p == nil || p.loading == nil {
		return
	}
	if loading {
		p.loading.Set(1)
		return
	}
	p.loading.Set(0)
}

func (p *PrometheusRecorder) SetBreakerState(state string) {
	if p == nil || p.breakerState == nil {
		return
	}
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		p.breakerState.WithLabelValues(s).Set(v)
	}
}
