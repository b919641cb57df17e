package universal

import (
	"bufio"
	"fmt"
	"io"
	"log"

	"entropy-sts-engine/internal/report"
	"entropy-sts-engine/internal/sts"
)

// Print writes stats.txt, results.txt and, with more than one partition,
// the interleaved data files. Disabled tests and runs without stats output
// write nothing.
func (t *Test) Print() error {
	if !t.enabled {
		log.Printf("universal: print skipped, test disabled")
		return nil
	}
	cfg := t.run.Config.Run
	if !cfg.StatsOutput {
		return nil
	}

	if t.pvals.Count() != t.stats.Count() {
		return sts.Invariantf("universal.Print", "p-value log holds %d entries, stats log %d",
			t.pvals.Count(), t.stats.Count())
	}

	dir, err := report.SubDir(cfg.ResultsDir, testName)
	if err != nil {
		return err
	}

	statsFile, err := report.CreateFile(dir, "stats.txt")
	if err != nil {
		return err
	}
	w := bufio.NewWriter(statsFile)
	for i := 0; i < t.stats.Count(); i++ {
		t.writeStat(w, t.stats.Get(i), t.pvals.Get(i), cfg.LegacyOutput)
	}
	if err := w.Flush(); err != nil {
		statsFile.Close()
		return fmt.Errorf("universal: write stats.txt: %w", err)
	}
	if err := statsFile.Close(); err != nil {
		return fmt.Errorf("universal: close stats.txt: %w", err)
	}

	if err := report.WriteResults(dir, t.pvals); err != nil {
		return err
	}
	return report.WriteData(dir, cfg.Partitions, t.pvals)
}

// writeStat renders one iteration block in the historical stats.txt layout.
// Write errors surface through the buffered writer's Flush.
func (t *Test) writeStat(w io.Writer, stat IterationRecord, pValue float64, legacy bool) {
	L := t.params.L

	if legacy {
		fmt.Fprintf(w, "\t\tUNIVERSAL STATISTICAL TEST\n")
		fmt.Fprintf(w, "\t\t--------------------------------------------\n")
		fmt.Fprintf(w, "\t\tCOMPUTATIONAL INFORMATION:\n")
	} else {
		fmt.Fprintf(w, "\t\tUniversal statistical test\n")
	}
	fmt.Fprintf(w, "\t\t--------------------------------------------\n")
	fmt.Fprintf(w, "\t\t(a) L         = %d\n", L)
	fmt.Fprintf(w, "\t\t(b) Q         = %d\n", stat.Q)
	fmt.Fprintf(w, "\t\t(c) K         = %d\n", stat.K)
	fmt.Fprintf(w, "\t\t(d) sum       = %f\n", stat.Sum)
	fmt.Fprintf(w, "\t\t(e) sigma     = %f\n", stat.Sigma)
	fmt.Fprintf(w, "\t\t(f) variance  = %f\n", variance[L])
	fmt.Fprintf(w, "\t\t(g) exp_value = %f\n", expectedValue[L])
	fmt.Fprintf(w, "\t\t(h) phi       = %f\n", stat.FN)
	if legacy {
		fmt.Fprintf(w, "\t\t(i) WARNING:  %d bits were discarded.\n", t.discarded)
	} else {
		fmt.Fprintf(w, "\t\t(i) discarded = %d\n", t.discarded)
	}
	fmt.Fprintf(w, "\t\t-----------------------------------------\n")

	switch {
	case stat.Success:
		fmt.Fprintf(w, "SUCCESS\t\tp_value = %f\n\n", pValue)
	case pValue == sts.NonPValue:
		fmt.Fprintf(w, "FAILURE\t\tp_value = %s\n\n", report.InvalidMarker)
	default:
		fmt.Fprintf(w, "FAILURE\t\tp_value = %f\n\n", pValue)
	}
}
