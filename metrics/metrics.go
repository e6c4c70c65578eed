package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Report pipeline metrics
	reportJobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_jobs_submitted_total",
			Help: "Report jobs offered to the runner, by admission result",
		},
		[]string{"result"},
	)

	reportJobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_jobs_finished_total",
			Help: "Report jobs finished, by final status and generation outcome",
		},
		[]string{"status", "outcome"},
	)

	reportJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "report_job_duration_seconds",
			Help:    "Wall time from job start to final store update",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 180, 300},
		},
	)

	reportQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "report_queue_depth",
			Help: "Report jobs waiting for a worker",
		},
	)

	reportJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "report_jobs_in_flight",
			Help: "Report jobs currently being generated",
		},
	)

	predictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Image classification requests, by result",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency. The route template is used
// as the path label so ids do not blow up cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// --- Report pipeline helpers ---

// RecordJobSubmitted records a runner admission decision (accepted, queue_full, stopped).
func RecordJobSubmitted(result string) {
	reportJobsSubmitted.WithLabelValues(result).Inc()
}

// RecordJobFinished records a job reaching a terminal status.
func RecordJobFinished(status, outcome string, d time.Duration) {
	reportJobsFinished.WithLabelValues(status, outcome).Inc()
	reportJobDuration.Observe(d.Seconds())
}

func SetQueueDepth(n int) {
	reportQueueDepth.Set(float64(n))
}

func JobStarted() { reportJobsInFlight.Inc() }

func JobDone() { reportJobsInFlight.Dec() }

// RecordPrediction records a /predict result (ok, bad_request, error).
func RecordPrediction(result string) {
	predictionsTotal.WithLabelValues(result).Inc()
}
