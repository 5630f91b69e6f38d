// Package metrics exposes Prometheus collectors for the comparison API and the offline
// clusterer, plus host snapshots for health reporting.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "peerbench"

// Metrics owns a private registry so tests and multiple servers never collide
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lookupsTotal    *prometheus.CounterVec

	snapshotRows     prometheus.Gauge
	snapshotClusters *prometheus.GaugeVec

	clusteringIterations prometheus.Counter
	clusteringInertia    prometheus.Gauge
	clusteringDuration   prometheus.Histogram
}

// New creates and registers every collector
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"route"}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "lookups_total",
			Help:      "Peer lookups by kind (id, profile) and outcome.",
		}, []string{"kind", "outcome"}),
		snapshotRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "rows",
			Help:      "Rows in the served feature table.",
		}),
		snapshotClusters: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "cluster_size",
			Help:      "Rows per cluster in the served feature table.",
		}, []string{"cluster", "persona"}),
		clusteringIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clustering",
			Name:      "iterations_total",
			Help:      "k-means iterations run.",
		}),
		clusteringInertia: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "clustering",
			Name:      "inertia",
			Help:      "Within-cluster sum of squares of the last clustering run.",
		}),
		clusteringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "clustering",
			Name:      "duration_seconds",
			Help:      "Wall time of clustering runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.lookupsTotal,
		m.snapshotRows,
		m.snapshotClusters,
		m.clusteringIterations,
		m.clusteringInertia,
		m.clusteringDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveLookup records the outcome of a peer lookup
func (m *Metrics) ObserveLookup(kind, outcome string) {
	m.lookupsTotal.WithLabelValues(kind, outcome).Inc()
}

// SetSnapshot publishes the size of the served table. sizes maps cluster id to row count.
func (m *Metrics) SetSnapshot(rows int, sizes map[int]int, personas map[int]string) {
	m.snapshotRows.Set(float64(rows))
	m.snapshotClusters.Reset()
	for cluster, size := range sizes {
		m.snapshotClusters.WithLabelValues(strconv.Itoa(cluster), personas[cluster]).Set(float64(size))
	}
}

// ObserveIteration records one k-means iteration
func (m *Metrics) ObserveIteration(inertia float64) {
	m.clusteringIterations.Inc()
	m.clusteringInertia.Set(inertia)
}

// ObserveClustering records a finished clustering run
func (m *Metrics) ObserveClustering(duration time.Duration, inertia float64) {
	m.clusteringDuration.Observe(duration.Seconds())
	m.clusteringInertia.Set(inertia)
}
