// Package metrics registers and records Prometheus metrics for the engine's
// subsystems: bitstream ingestion, the concurrent iterate phase, per-test
// iteration verdicts, and the final partition assessment.
package metrics

import (
	"reflect"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IterationsTotal    *prometheus.CounterVec
	IterationFailures  *prometheus.CounterVec
	IterationDuration  prometheus.Histogram
	PValueDistribution *prometheus.HistogramVec
	TestsDisabled      *prometheus.CounterVec
	PartitionOutcomes  *prometheus.CounterVec
	WorkersActive      prometheus.Gauge
	SourceBytes        prometheus.Counter
	SourceDropped      *prometheus.CounterVec
	MQTTConnected      prometheus.Gauge
	MQTTReconnects     prometheus.Counter
	MQTTMessages       prometheus.Counter

	metricsMu         sync.RWMutex
	currentRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
)

func init() {
	resetMetrics(prometheus.DefaultRegisterer)
}

// SetRegisterer sets a new registerer and reinitializes all metrics. It
// returns the previous registerer so it can be restored later. Designed for
// tests that need an isolated registry.
func SetRegisterer(registerer prometheus.Registerer) prometheus.Registerer {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	previous := currentRegisterer
	if currentRegisterer != nil {
		unregisterAll(currentRegisterer)
	}
	currentRegisterer = registerer
	initializeMetrics(registerer)
	return previous
}

// ResetForTesting reconfigures all metric collectors against the provided
// registerer, unregistering the previous set to avoid duplicate
// registrations when invoked repeatedly.
func ResetForTesting(registerer prometheus.Registerer) {
	resetMetrics(registerer)
}

func resetMetrics(registerer prometheus.Registerer) {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	if currentRegisterer != nil {
		unregisterAll(currentRegisterer)
	}
	currentRegisterer = registerer
	initializeMetrics(registerer)
}

// initializeMetrics creates all metrics using the provided registerer.
// Must be called while holding metricsMu.
func initializeMetrics(registerer prometheus.Registerer) {
	factory := promauto.With(registerer)

	IterationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sts_iterations_total",
			Help: "Total number of test iterations, by test and verdict",
		},
		[]string{"test", "verdict"},
	)

	IterationFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sts_iteration_failures_total",
			Help: "Total number of failed iterations, by test and failure reason",
		},
		[]string{"test", "reason"},
	)

	IterationDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sts_iteration_duration_seconds",
			Help:    "Wall time of one iteration across all enabled tests",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)

	PValueDistribution = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sts_p_value",
			Help:    "Distribution of valid iteration p-values (should be uniform on [0,1])",
			Buckets: prometheus.LinearBuckets(0.0, 0.1, 11),
		},
		[]string{"test"},
	)

	TestsDisabled = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sts_tests_disabled_total",
			Help: "Tests disabled at init time, by test and reason",
		},
		[]string{"test", "reason"},
	)

	PartitionOutcomes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sts_partition_outcomes_total",
			Help: "Final partition assessments, by test and outcome",
		},
		[]string{"test", "outcome"},
	)

	WorkersActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "sts_workers_active",
			Help: "Number of worker threads currently iterating",
		},
	)

	SourceBytes = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "sts_source_bytes_total",
			Help: "Raw entropy bytes accepted from the bitstream source",
		},
	)

	SourceDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sts_source_dropped_total",
			Help: "Source payloads or bytes dropped, by reason",
		},
		[]string{"reason"},
	)

	MQTTConnected = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "sts_mqtt_connected",
			Help: "Whether the MQTT ingest client is currently connected (0 or 1)",
		},
	)

	MQTTReconnects = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "sts_mqtt_reconnects_total",
			Help: "Total number of MQTT reconnections",
		},
	)

	MQTTMessages = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "sts_mqtt_messages_total",
			Help: "Total number of inbound MQTT messages",
		},
	)
}

// unregisterAll removes all collectors from the registerer.
// Must be called while holding metricsMu.
func unregisterAll(registerer prometheus.Registerer) {
	collectors := []prometheus.Collector{
		IterationsTotal,
		IterationFailures,
		IterationDuration,
		PValueDistribution,
		TestsDisabled,
		PartitionOutcomes,
		WorkersActive,
		SourceBytes,
		SourceDropped,
		MQTTConnected,
		MQTTReconnects,
		MQTTMessages,
	}
	for _, collector := range collectors {
		if collector == nil {
			continue
		}
		// A nil *CounterVec (etc.) stored in the interface is non-nil as an
		// interface value but still crashes Unregister; check the pointer too.
		if v := reflect.ValueOf(collector); v.Kind() == reflect.Ptr && v.IsNil() {
			continue
		}
		registerer.Unregister(collector)
	}
}

// RecordIteration counts one completed iteration for a test.
func RecordIteration(test string, success bool) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	verdict := "failure"
	if success {
		verdict = "success"
	}
	IterationsTotal.WithLabelValues(test, verdict).Inc()
}

// RecordIterationFailure counts one failed iteration with its reason
// ("below_alpha", "bogus_low", "bogus_high").
func RecordIterationFailure(test, reason string) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	IterationFailures.WithLabelValues(test, reason).Inc()
}

// RecordIterationDuration observes the wall time of one iteration.
func RecordIterationDuration(d time.Duration) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	IterationDuration.Observe(d.Seconds())
}

// RecordPValue observes a valid p-value for a test.
func RecordPValue(test string, p float64) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	PValueDistribution.WithLabelValues(test).Observe(p)
}

// RecordTestDisabled counts a test disabled at init time.
func RecordTestDisabled(test, reason string) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	TestsDisabled.WithLabelValues(test, reason).Inc()
}

// RecordPartitionOutcome counts one partition's final assessment.
func RecordPartitionOutcome(test, outcome string) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	PartitionOutcomes.WithLabelValues(test, outcome).Inc()
}

// SetWorkersActive publishes the current worker thread count.
func SetWorkersActive(n int) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	WorkersActive.Set(float64(n))
}

// RecordSourceBytes counts raw entropy bytes accepted from the source.
func RecordSourceBytes(n int) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	SourceBytes.Add(float64(n))
}

// RecordSourceDropped counts dropped source payloads or bytes by reason.
func RecordSourceDropped(reason string, n int) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if n <= 0 {
		return
	}
	SourceDropped.WithLabelValues(reason).Add(float64(n))
}

// SetMQTTConnected publishes the ingest client's connection state.
func SetMQTTConnected(connected bool) {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if connected {
		MQTTConnected.Set(1)
	} else {
		MQTTConnected.Set(0)
	}
}

// RecordMQTTReconnect counts one MQTT reconnection.
func RecordMQTTReconnect() {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	MQTTReconnects.Inc()
}

// RecordMQTTMessage counts one inbound MQTT message.
func RecordMQTTMessage() {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	MQTTMessages.Inc()
}
