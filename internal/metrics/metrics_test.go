package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/internal/metrics"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.ObserveStep("next", "ok")
	m.ObserveStep("next", "ok")
	m.ObserveStep("next", "invalid")
	m.ObserveValidation(domain.Reason("time_order"))
	m.ObserveCommit("reconciliation", 20*time.Millisecond)
	m.ObserveResponse(domain.Response{QuestionnaireID: "qn-morning"})
	m.ObserveFetchFailure("fail_open")

	problems, err := testutil.GatherAndLint(m.Registry(),
		"sleepdiary_navigation_steps_total",
		"sleepdiary_commit_total",
		"sleepdiary_commit_duration_seconds",
	)
	require.NoError(t, err)
	assert.Empty(t, problems)

	count, err := testutil.GatherAndCount(m.Registry(),
		"sleepdiary_navigation_steps_total",
		"sleepdiary_commit_total",
		"sleepdiary_responses_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 4, count, "one series per label set")
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.ObserveResponse(domain.Response{QuestionnaireID: "qn-evening"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `sleepdiary_responses_total{questionnaire="qn-evening"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveStep("next", "ok")
		m.ObserveCommit("ok", time.Second)
		m.ObserveFetchFailure("fail_closed")
	})
}
