// Package jobmetrics instruments background jobs with Prometheus collectors.
package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	expired     *prometheus.CounterVec
	provisioned *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddExpiredQuotes counts quotes moved to EXPIRED for a tenant.
func (m *Metrics) AddExpiredQuotes(tenantID int64, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.expired.WithLabelValues(strconv.FormatInt(tenantID, 10)).Add(float64(count))
}

// AddProvisioned counts tenants provisioned by result ("ok" or "failed").
func (m *Metrics) AddProvisioned(result string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.provisioned.WithLabelValues(result).Add(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optica_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optica_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "optica_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	expired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optica_quotes_expired_total",
		Help: "Quotes expired by the nightly sweep, per tenant.",
	}, []string{"tenant"})
	provisioned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optica_finance_provisioned_tenants_total",
		Help: "Tenants processed by batch finance provisioning.",
	}, []string{"result"})
	registerer.MustRegister(runs, failures, duration, expired, provisioned)
	return &Metrics{runs: runs, failures: failures, duration: duration, expired: expired, provisioned: provisioned}
}
