package universal

import (
	"log"

	"entropy-sts-engine/internal/assess"
	"entropy-sts-engine/internal/metrics"
	"entropy-sts-engine/internal/sts"
)

// Metrics assesses the accumulated p-value log once per partition: the
// proportion of passing iterations against the three-sigma band, and the
// chi-square uniformity of the p-value histogram. The test counts as
// successful for the run only when every partition passes both checks.
func (t *Test) Metrics() error {
	if !t.enabled {
		return nil
	}
	cfg := t.run.Config.Run

	partitions := cfg.Partitions
	if partitions < 1 {
		partitions = 1
	}
	if expected := int(cfg.BitStreams); t.pvals.Count() != expected {
		log.Printf("universal: assessing %d p-values, expected %d", t.pvals.Count(), expected)
	}

	t.verdicts = make([]assess.Verdict, 0, partitions)
	allPassed := true
	for j := 0; j < partitions; j++ {
		tally := assess.NewTally(cfg.UniformityBins)
		t.pvals.Stride(j, partitions, func(_ int, p float64) {
			if p == sts.NonPValue {
				return
			}
			tally.Add(p, cfg.Alpha)
		})

		verdict := assess.Evaluate(tally, cfg.Alpha, cfg.UniformityLevel)
		t.verdicts = append(t.verdicts, verdict)
		metrics.RecordPartitionOutcome(testName, verdict.Outcome.String())
		log.Printf("universal: partition %d/%d: %s (proportion %d/%d in [%.2f, %.2f], uniformity %.6f)",
			j+1, partitions, verdict.Outcome, verdict.PassCount, verdict.SampleCount,
			verdict.ProportionMin, verdict.ProportionMax, verdict.Uniformity)

		if verdict.Outcome != assess.PassedBoth {
			allPassed = false
		}
	}

	if allPassed {
		t.run.RecordTestSuccess()
	}
	return nil
}

// Verdicts returns the per-partition assessment results. Valid only after
// the metrics phase.
func (t *Test) Verdicts() []assess.Verdict {
	return t.verdicts
}
