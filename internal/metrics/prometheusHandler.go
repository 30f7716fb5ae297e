package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var waitingJobs = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "queue_waiting_jobs",
	Help: "Number of jobs waiting in the queue (including delayed)",
})

var activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "queue_active_jobs",
	Help: "Number of jobs currently mid-handler",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of running processor workers",
})

var jobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jobs_completed_total",
	Help: "Jobs finished, labelled by type and outcome",
}, []string{"type", "outcome"})

var throttleRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "throttle_rejections_total",
	Help: "Jobs handed back to the queue because the admission throttle was full",
})

var jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "job_duration_seconds",
	Help:    "Time spent inside a job handler.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120},
}, []string{"type", "outcome"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementWaitingJobs() {
	waitingJobs.Inc()
}

func DecrementWaitingJobs() {
	waitingJobs.Dec()
}

func IncrementActiveJobs() {
	activeJobs.Inc()
}

func DecrementActiveJobs() {
	activeJobs.Dec()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}

func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func IncrementThrottleRejections() {
	throttleRejectionsTotal.Inc()
}

func CaptureJobMetrics(jobType string, outcome string, timeElapsed time.Duration) {
	jobsCompletedTotal.WithLabelValues(jobType, outcome).Inc()
	jobDuration.WithLabelValues(jobType, outcome).Observe(timeElapsed.Seconds())
}
