// Package metrics exposes Prometheus instruments for token refreshes, catalog calls, and orchestrator commands.
//
// A nil [*Recorder] is valid and records nothing, so components can be built without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "maestro"

// Recorder owns the instruments and the registry they are registered with.
type Recorder struct {
	registry  *prometheus.Registry
	refreshes *prometheus.CounterVec
	catalog   *prometheus.HistogramVec
	commands  *prometheus.CounterVec
	linked    prometheus.Gauge
}

// NewRecorder creates a [Recorder] with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by result.",
		}, []string{"result"}),
		catalog: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_request_duration_seconds",
			Help:      "Catalog API call latency by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "outcome"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Orchestrator commands by operation and outcome.",
		}, []string{"op", "outcome"}),
		linked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "linked_users",
			Help:      "Users with a stored credential.",
		}),
	}

	r.registry.MustRegister(r.refreshes, r.catalog, r.commands, r.linked)
	r.registry.MustRegister(collectors.NewGoCollector())
	return r
}

// Refresh counts a refresh attempt.
func (r *Recorder) Refresh(ok bool) {
	if r == nil {
		return
	}
	r.refreshes.WithLabelValues(outcome(ok)).Inc()
}

// Catalog observes the duration of one catalog call started at start.
func (r *Recorder) Catalog(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.catalog.WithLabelValues(op, outcome(err == nil)).Observe(time.Since(start).Seconds())
}

// Command counts one orchestrator operation.
func (r *Recorder) Command(op string, err error) {
	if r == nil {
		return
	}
	r.commands.WithLabelValues(op, outcome(err == nil)).Inc()
}

// Linked sets the number of credentials held.
func (r *Recorder) Linked(n int) {
	if r == nil {
		return
	}
	r.linked.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
