// Package metrics exposes Prometheus counters for round activity and HTTP
// request latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registers into its own registry rather than the global one.
type Metrics struct {
	reg *prometheus.Registry

	roundsCreated   prometheus.Counter
	songsSubmitted  prometheus.Counter
	ratingsRecorded prometheus.Counter
	roundsCompleted prometheus.Counter
	resultsLookups  *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		roundsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_rounds_created_total",
			Help: "Rounds created.",
		}),
		songsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_songs_submitted_total",
			Help: "Songs accepted in submissions.",
		}),
		ratingsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_ratings_recorded_total",
			Help: "Individual ratings stored.",
		}),
		roundsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "rate_rounds_completed_total",
			Help: "Rounds that became complete because every submitter finished rating.",
		}),
		resultsLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_results_lookups_total",
			Help: "Results requests by cache outcome.",
		}, []string{"cache"}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rate_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) RoundCreated()         { m.roundsCreated.Inc() }
func (m *Metrics) SongsSubmitted(n int)  { m.songsSubmitted.Add(float64(n)) }
func (m *Metrics) RatingsRecorded(n int) { m.ratingsRecorded.Add(float64(n)) }
func (m *Metrics) RoundCompleted()       { m.roundsCompleted.Inc() }

// ResultsLookup records a results request; hit is whether the cache served it.
func (m *Metrics) ResultsLookup(hit bool) {
	if hit {
		m.resultsLookups.WithLabelValues("hit").Inc()
		return
	}
	m.resultsLookups.WithLabelValues("miss").Inc()
}

// Middleware observes request latency labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestLatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{}))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
