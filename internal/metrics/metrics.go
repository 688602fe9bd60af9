package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for inbound HTTP requests and for the
// fetch/merge pipeline.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	categoriesTotal  *prometheus.CounterVec
	candidatesTotal  prometheus.Counter
	duplicatesTotal  prometheus.Counter
	enrichmentsTotal prometheus.Counter
	jobsTotal        *prometheus.CounterVec
	jobReuseTotal    prometheus.Counter
	cacheLookups     *prometheus.CounterVec
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventradar",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for inbound HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests.",
		}, []string{"method", "path", "status"}),
		categoriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "pipeline",
			Name:      "categories_total",
			Help:      "Category fetch cycles by terminal state.",
		}, []string{"state"}),
		candidatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "pipeline",
			Name:      "candidates_total",
			Help:      "Candidate events parsed from provider output.",
		}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "pipeline",
			Name:      "duplicates_total",
			Help:      "Candidates dropped as duplicates with nothing new.",
		}),
		enrichmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "pipeline",
			Name:      "enrichments_total",
			Help:      "Stored records enriched by duplicate candidates.",
		}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Jobs by final status.",
		}, []string{"status"}),
		jobReuseTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "pipeline",
			Name:      "job_reuse_total",
			Help:      "Requests resolved to an already-running job.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventradar",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Day-bucket cache lookups by result.",
		}, []string{"result"}),
	}

	collectors := []prometheus.Collector{
		c.requestDuration, c.requestTotal,
		c.categoriesTotal, c.candidatesTotal, c.duplicatesTotal,
		c.enrichmentsTotal, c.jobsTotal, c.jobReuseTotal, c.cacheLookups,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// CategoryFinished records a category reaching a terminal state.
func (c *Collector) CategoryFinished(state string) {
	c.categoriesTotal.WithLabelValues(state).Inc()
}

// CandidatesParsed records candidates obtained from a provider call.
func (c *Collector) CandidatesParsed(n int) {
	c.candidatesTotal.Add(float64(n))
}

// DuplicatesDropped records duplicates with no enrichment opportunity.
func (c *Collector) DuplicatesDropped(n int) {
	c.duplicatesTotal.Add(float64(n))
}

// EnrichmentsApplied records stored records enriched by duplicates.
func (c *Collector) EnrichmentsApplied(n int) {
	c.enrichmentsTotal.Add(float64(n))
}

// JobFinished records a job reaching a final status.
func (c *Collector) JobFinished(status string) {
	c.jobsTotal.WithLabelValues(status).Inc()
}

// JobReused records a request resolved to an in-flight job.
func (c *Collector) JobReused() {
	c.jobReuseTotal.Inc()
}

// CacheLookup records a day-bucket lookup outcome.
func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
