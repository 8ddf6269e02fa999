// Package metrics exposes formation listing counters over Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FormationsCache/internal/ports"
)

// Recorder implements ports.FormationMetrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	urls       *prometheus.CounterVec
	listings   *prometheus.CounterVec
	returned   prometheus.Counter
	latency    prometheus.Histogram
	ingested   *prometheus.CounterVec
	lastScrape prometheus.Gauge
}

var (
	_ ports.FormationMetrics = (*Recorder)(nil)
	_ ports.IngestMetrics    = (*Recorder)(nil)
)

// NewRecorder registers all collectors, including Go runtime metrics.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		urls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formations",
			Name:      "urls_total",
			Help:      "Formation detail URLs checked, by outcome (valid or fallback).",
		}, []string{"outcome"}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formations",
			Name:      "listings_total",
			Help:      "Formation listing requests, by result.",
		}, []string{"result"}),
		returned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "formations",
			Name:      "returned_total",
			Help:      "Formations returned to clients.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "formations",
			Name:      "listing_duration_seconds",
			Help:      "Time spent reading and assembling formations.",
			Buckets:   prometheus.DefBuckets,
		}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formations",
			Name:      "ingested_total",
			Help:      "Rows touched by the ingestion job, by action.",
		}, []string{"action"}),
		lastScrape: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "formations",
			Name:      "last_scrape_timestamp_seconds",
			Help:      "Unix time of the last successful scrape.",
		}),
	}

	reg.MustRegister(
		r.urls, r.listings, r.returned, r.latency, r.ingested, r.lastScrape,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveURL counts a detail link as valid or replaced by the fallback.
func (r *Recorder) ObserveURL(valid bool) {
	if valid {
		r.urls.WithLabelValues("valid").Inc()
		return
	}
	r.urls.WithLabelValues("fallback").Inc()
}

// ObserveListing records one listing request.
func (r *Recorder) ObserveListing(success bool, count int, elapsed time.Duration) {
	result := "success"
	if !success {
		result = "error"
	}
	r.listings.WithLabelValues(result).Inc()
	r.returned.Add(float64(count))
	r.latency.Observe(elapsed.Seconds())
}

// ObserveIngest records the outcome of one scrape-and-store run.
func (r *Recorder) ObserveIngest(upserted, deactivated int, at time.Time) {
	r.ingested.WithLabelValues("upserted").Add(float64(upserted))
	r.ingested.WithLabelValues("deactivated").Add(float64(deactivated))
	r.lastScrape.Set(float64(at.Unix()))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
