// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wayfinder"

var breakerStates = []string{"closed", "half-open", "open"}

// Prometheus records to its own registry, exposed through Handler.
type Prometheus struct {
	registry *prometheus.Registry

	lookups       *prometheus.CounterVec
	lookupSeconds *prometheus.HistogramVec
	plans         *prometheus.CounterVec
	planSeconds   *prometheus.HistogramVec
	searches      *prometheus.CounterVec
	searchRounds  prometheus.Histogram
	searchSeconds prometheus.Histogram
	breaker       *prometheus.GaugeVec
}

// NewPrometheus builds a recorder backed by a fresh registry that also
// carries the Go runtime and process collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_lookups_total",
			Help:      "Relation oracle lookups by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		lookupSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_lookup_seconds",
			Help:      "Relation oracle lookup latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "planner_calls_total",
			Help:      "Planner calls by operation and success.",
		}, []string{"op", "success"}),
		planSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "planner_call_seconds",
			Help:      "Planner call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"op"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Completed searches by result.",
		}, []string{"found"}),
		searchRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_rounds",
			Help:      "Planner rounds used per search.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		searchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_seconds",
			Help:      "Wall time per search.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		breaker: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_breaker_state",
			Help:      "1 for the current circuit breaker state of each oracle endpoint.",
		}, []string{"endpoint", "state"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.lookups, p.lookupSeconds,
		p.plans, p.planSeconds,
		p.searches, p.searchRounds, p.searchSeconds,
		p.breaker,
	)
	return p
}

func (p *Prometheus) ObserveLookup(kind, outcome string, d time.Duration) {
	p.lookups.WithLabelValues(kind, outcome).Inc()
	p.lookupSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) ObservePlan(op string, success bool, d time.Duration) {
	p.plans.WithLabelValues(op, strconv.FormatBool(success)).Inc()
	p.planSeconds.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prometheus) ObserveSearch(found bool, rounds int, d time.Duration) {
	p.searches.WithLabelValues(strconv.FormatBool(found)).Inc()
	p.searchRounds.Observe(float64(rounds))
	p.searchSeconds.Observe(d.Seconds())
}

// SetBreakerState flips the state gauge so exactly one state reads 1.
func (p *Prometheus) SetBreakerState(endpoint, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		p.breaker.WithLabelValues(endpoint, s).Set(v)
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
