package metrics_test

import (
	"testing"
	"time"

	"entropy-sts-engine/internal/metrics"
	"entropy-sts-engine/testutil"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordIteration(t *testing.T) {
	testutil.ResetRegistryForTest(t)

	metrics.RecordIteration("universal", true)
	metrics.RecordIteration("universal", true)
	metrics.RecordIteration("universal", false)

	success := promtestutil.ToFloat64(metrics.IterationsTotal.WithLabelValues("universal", "success"))
	failure := promtestutil.ToFloat64(metrics.IterationsTotal.WithLabelValues("universal", "failure"))
	if success != 2 || failure != 1 {
		t.Fatalf("expected 2 successes and 1 failure, got %g and %g", success, failure)
	}
}

func TestRecordIterationFailureReasons(t *testing.T) {
	testutil.ResetRegistryForTest(t)

	metrics.RecordIterationFailure("universal", "below_alpha")
	metrics.RecordIterationFailure("universal", "below_alpha")
	metrics.RecordIterationFailure("universal", "bogus_low")

	belowAlpha := promtestutil.ToFloat64(metrics.IterationFailures.WithLabelValues("universal", "below_alpha"))
	bogus := promtestutil.ToFloat64(metrics.IterationFailures.WithLabelValues("universal", "bogus_low"))
	if belowAlpha != 2 || bogus != 1 {
		t.Fatalf("expected 2 below_alpha and 1 bogus_low, got %g and %g", belowAlpha, bogus)
	}
}

func TestSourceCounters(t *testing.T) {
	testutil.ResetRegistryForTest(t)

	metrics.RecordSourceBytes(128)
	metrics.RecordSourceBytes(64)
	metrics.RecordSourceDropped("backlog_full", 16)
	metrics.RecordSourceDropped("backlog_full", 0) // ignored

	if got := promtestutil.ToFloat64(metrics.SourceBytes); got != 192 {
		t.Fatalf("expected 192 source bytes, got %g", got)
	}
	if got := promtestutil.ToFloat64(metrics.SourceDropped.WithLabelValues("backlog_full")); got != 16 {
		t.Fatalf("expected 16 dropped bytes, got %g", got)
	}
}

func TestGauges(t *testing.T) {
	testutil.ResetRegistryForTest(t)

	metrics.SetWorkersActive(4)
	if got := promtestutil.ToFloat64(metrics.WorkersActive); got != 4 {
		t.Fatalf("expected 4 active workers, got %g", got)
	}
	metrics.SetWorkersActive(0)
	if got := promtestutil.ToFloat64(metrics.WorkersActive); got != 0 {
		t.Fatalf("expected 0 active workers, got %g", got)
	}

	metrics.SetMQTTConnected(true)
	if got := promtestutil.ToFloat64(metrics.MQTTConnected); got != 1 {
		t.Fatalf("expected connected gauge 1, got %g", got)
	}
	metrics.SetMQTTConnected(false)
	if got := promtestutil.ToFloat64(metrics.MQTTConnected); got != 0 {
		t.Fatalf("expected connected gauge 0, got %g", got)
	}
}

func TestPartitionAndDisableCounters(t *testing.T) {
	testutil.ResetRegistryForTest(t)

	metrics.RecordPartitionOutcome("universal", "passed")
	metrics.RecordTestDisabled("universal", "min_length")
	metrics.RecordIterationDuration(5 * time.Millisecond)
	metrics.RecordPValue("universal", 0.42)

	if got := promtestutil.ToFloat64(metrics.PartitionOutcomes.WithLabelValues("universal", "passed")); got != 1 {
		t.Fatalf("expected 1 passed partition, got %g", got)
	}
	if got := promtestutil.ToFloat64(metrics.TestsDisabled.WithLabelValues("universal", "min_length")); got != 1 {
		t.Fatalf("expected 1 disabled test, got %g", got)
	}
}

func TestResetIsolatesRegistries(t *testing.T) {
	reg := testutil.ResetRegistryForTest(t)

	metrics.RecordMQTTMessage()
	metrics.RecordMQTTReconnect()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, family := range families {
		seen[family.GetName()] = true
	}
	if !seen["sts_mqtt_messages_total"] || !seen["sts_mqtt_reconnects_total"] {
		t.Fatalf("expected mqtt counters in the test registry, saw %v", seen)
	}
}
