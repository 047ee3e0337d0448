package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncFetchIssued()
	pr.IncFetchIssued()
	pr.IncFetchOutcome(OutcomeSuperseded)
	pr.IncFetchOutcome(OutcomeSuccess)
	pr.ObserveFetchDuration(150*time.Millisecond, OutcomeSuccess)
	pr.IncPersistenceFailure("stargazer:coords", OpSave)
	pr.SetLoading(true)
	pr.SetBreakerState("open")

	assert.InDelta(t, 2, testutil.ToFloat64(pr.fetchIssued), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.fetchOutcomes.WithLabelValues("superseded")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.persistenceFailures.WithLabelValues("stargazer:coords", "save")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.loading), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.breakerState.WithLabelValues("open")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(pr.breakerState.WithLabelValues("closed")), 0)

	pr.SetLoading(false)
	assert.InDelta(t, 0, testutil.ToFloat64(pr.loading), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncFetchIssued()
		pr.IncFetchOutcome(OutcomeFailure)
		pr.SetLoading(true)
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncFetchIssued()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stargazer_fetch_cycles_issued_total"))
}
