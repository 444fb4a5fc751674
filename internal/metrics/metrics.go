// Package metrics exports the engine's Prometheus collectors. The core
// packages report through observer callbacks; this package supplies them.
package metrics

import (
	"net/http"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sleepdiary"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	steps       *prometheus.CounterVec
	validations *prometheus.CounterVec
	commits     *prometheus.CounterVec
	commitTime  prometheus.Histogram
	responses   *prometheus.CounterVec
	fetchFails  *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigation_steps_total",
			Help:      "Wizard navigation steps by action and outcome.",
		}, []string{"action", "outcome"}),
		validations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Validation failures by reason.",
		}, []string{"reason"}),
		commits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_total",
			Help:      "Editor commits by outcome.",
		}, []string{"outcome"}),
		commitTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Latency of editor commits.",
			Buckets:   prometheus.DefBuckets,
		}),
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Submitted responses by questionnaire.",
		}, []string{"questionnaire"}),
		fetchFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Question fetch failures by policy.",
		}, []string{"policy"}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveStep counts one navigator step.
func (m *Metrics) ObserveStep(action, outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(action, outcome).Inc()
}

// ObserveValidation counts one validation failure.
func (m *Metrics) ObserveValidation(reason domain.Reason) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(string(reason)).Inc()
}

// ObserveCommit records one editor commit.
func (m *Metrics) ObserveCommit(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(outcome).Inc()
	m.commitTime.Observe(took.Seconds())
}

// ObserveResponse counts one stored response.
func (m *Metrics) ObserveResponse(r domain.Response) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(r.QuestionnaireID).Inc()
}

// ObserveFetchFailure counts one failed question fetch. policy is the
// fetch policy's String form.
func (m *Metrics) ObserveFetchFailure(policy string) {
	if m == nil {
		return
	}
	m.fetchFails.WithLabelValues(policy).Inc()
}
