// Package stats provides Prometheus metrics for the demo lifecycle:
// provisioning, teardown waits, GPU inventory and inference smoke checks.
package stats

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhai3_demo_requests_total",
			Help: "Total number of HTTP requests received",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rhai3_demo_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Provisioning metrics
	provisionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhai3_demo_provision_operations_total",
			Help: "Total number of provisioning operations per component",
		},
		[]string{"component", "status"},
	)

	provisionOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rhai3_demo_provision_operation_duration_seconds",
			Help:    "Provisioning operation duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"component"},
	)

	// Teardown metrics
	teardowns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhai3_demo_teardowns_total",
			Help: "Total number of teardown attempts per resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	teardownWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rhai3_demo_teardown_wait_duration_seconds",
			Help:    "Time spent waiting for a resource to disappear after deletion",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"resource"},
	)

	lastTeardownTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhai3_demo_last_teardown_timestamp_seconds",
			Help: "Unix timestamp of the most recent teardown attempt",
		},
	)

	// Current state metrics
	namespacePresent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rhai3_demo_namespace_present",
			Help: "Whether the demo namespace currently exists (1 if present, 0 otherwise)",
		},
		[]string{"namespace"},
	)

	gpuPods = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhai3_demo_gpu_pods",
			Help: "Number of pods requesting GPUs at the last inventory scan",
		},
	)

	gpusAllocated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rhai3_demo_gpus_allocated",
			Help: "Total GPUs requested by pods at the last inventory scan",
		},
	)

	// Inference smoke check metrics
	smokeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhai3_demo_smoke_checks_total",
			Help: "Total number of inference smoke checks",
		},
		[]string{"status"},
	)

	smokeLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rhai3_demo_smoke_latency_seconds",
			Help:    "End-to-end latency of inference smoke checks",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	smokeTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rhai3_demo_smoke_tokens_total",
			Help: "Tokens consumed by inference smoke checks",
		},
		[]string{"kind"},
	)
)

// MetricsRecorder handles recording metrics
type MetricsRecorder struct {
	mu            sync.Mutex
	lastNamespace string
}

// NewMetricsRecorder creates a new metrics recorder
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// RecordRequest records an HTTP request with its metrics
func (mr *MetricsRecorder) RecordRequest(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)

	requestsTotal.WithLabelValues(method, path, statusStr).Inc()
	requestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// RecordProvision records a provisioning operation for one component
// (namespace, pull-secret, inference-service).
func (mr *MetricsRecorder) RecordProvision(component string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}

	provisionOps.WithLabelValues(component, status).Inc()
	if success {
		provisionOpDuration.WithLabelValues(component).Observe(duration.Seconds())
	}
}

// RecordTeardown records a teardown attempt. The outcome label carries the
// waiter outcome ("deleted", "timed_out") or a failure class ("request_failed",
// "check_failed"). Wait duration is only observed for completed deletions;
// timeouts always equal the configured maximum.
func (mr *MetricsRecorder) RecordTeardown(resource, outcome string, waited time.Duration) {
	teardowns.WithLabelValues(resource, outcome).Inc()
	lastTeardownTimestamp.SetToCurrentTime()

	if outcome == "deleted" {
		teardownWaitDuration.WithLabelValues(resource).Observe(waited.Seconds())
	}
}

// SetNamespacePresent tracks whether the demo namespace exists. Switching to a
// different namespace zeroes the gauge for the previous one.
func (mr *MetricsRecorder) SetNamespacePresent(namespace string, present bool) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	if mr.lastNamespace != "" && mr.lastNamespace != namespace {
		namespacePresent.WithLabelValues(mr.lastNamespace).Set(0)
	}
	mr.lastNamespace = namespace

	value := 0.0
	if present {
		value = 1.0
	}
	namespacePresent.WithLabelValues(namespace).Set(value)
}

// UpdateGPUInventory updates the gauges from the latest cluster scan
func (mr *MetricsRecorder) UpdateGPUInventory(pods int, gpus int64) {
	gpuPods.Set(float64(pods))
	gpusAllocated.Set(float64(gpus))
}

// RecordSmokeCheck records one inference smoke check round trip
func (mr *MetricsRecorder) RecordSmokeCheck(success bool, duration time.Duration, promptTokens, completionTokens int) {
	status := "success"
	if !success {
		status = "failure"
	}

	smokeChecks.WithLabelValues(status).Inc()
	if success {
		smokeLatency.Observe(duration.Seconds())
		smokeTokens.WithLabelValues("prompt").Add(float64(promptTokens))
		smokeTokens.WithLabelValues("completion").Add(float64(completionTokens))
	}
}
