// Package metrics holds the Prometheus collectors for the tracker.
//
// Collectors live on a Registry owned by the caller rather than the global
// default registry, so tests can build as many as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clicktrail"

type Registry struct {
	reg *prometheus.Registry

	ClicksCreated   prometheus.Counter
	MatchOutcomes   *prometheus.CounterVec
	WebhookUpdates  *prometheus.CounterVec
	Exports         prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// New builds a registry with the tracker's collectors plus the Go runtime
// and process collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ClicksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_created_total",
			Help:      "Pending clicks created by the redirect handler.",
		}),
		MatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_outcomes_total",
			Help:      "Start events by matcher outcome.",
		}, []string{"outcome"}),
		WebhookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_updates_total",
			Help:      "Webhook deliveries by how they were handled.",
		}, []string{"result"}),
		Exports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "CSV exports served.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	r.reg.MustRegister(
		r.ClicksCreated,
		r.MatchOutcomes,
		r.WebhookUpdates,
		r.Exports,
		r.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
