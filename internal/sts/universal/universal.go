// Package universal implements Maurer's universal statistical test. The
// test splits each bitstream into L-bit blocks, primes a last-occurrence
// table over an initialization segment of Q blocks, then accumulates the
// base-2 logarithm of the block distances over a test segment of K blocks.
// The normalized sum is compared against the expected value for a truly
// random sequence and converted to a p-value via the complementary error
// function.
package universal

import (
	"log"
	"math"

	"entropy-sts-engine/internal/assess"
	"entropy-sts-engine/internal/bitstream"
	"entropy-sts-engine/internal/metrics"
	"entropy-sts-engine/internal/store"
	"entropy-sts-engine/internal/sts"
)

const testName = "universal"

// IterationRecord captures the per-iteration computation for the stats
// report.
type IterationRecord struct {
	Q       int64
	K       int64
	Sum     float64
	Sigma   float64
	FN      float64
	Success bool
}

// Test runs Maurer's universal statistical test across all iterations of a
// run. Scratch tables are per worker thread and never shared; counters and
// result logs are mutated only under the run's shared-state lock.
type Test struct {
	run *sts.Run

	enabled        bool
	disabledReason string

	params    Params
	discarded int64

	// tables[id] is worker id's last-occurrence table of 2^L entries.
	tables [][]int64

	counts   sts.Counts
	stats    *store.OrderedLog[IterationRecord]
	pvals    *store.OrderedLog[float64]
	verdicts []assess.Verdict
}

// New returns an uninitialized test instance. Init must run before any
// other phase.
func New() *Test {
	return &Test{}
}

// Name returns the test's directory-safe identifier.
func (t *Test) Name() string { return testName }

// Enabled reports whether the test participates in this run.
func (t *Test) Enabled() bool { return t.enabled }

// DisabledReason returns why Init disabled the test, or "" when enabled.
func (t *Test) DisabledReason() string { return t.disabledReason }

// Params returns the parameters derived during Init.
func (t *Test) Params() Params { return t.params }

// Counts returns a snapshot of the run-wide iteration counters. Valid only
// after the iterate phase has finished.
func (t *Test) Counts() sts.Counts { return t.counts }

// Init derives L, Q and K from the configured bitstream length and
// allocates one scratch table per worker thread. A bitstream length the
// test cannot handle disables the test for the run; that is an
// informational outcome, not an error.
func (t *Test) Init(run *sts.Run) error {
	t.run = run
	cfg := run.Config.Run

	params, reason := DeriveParams(cfg.BitLength)
	if reason != "" {
		t.enabled = false
		t.disabledReason = reason
		metrics.RecordTestDisabled(testName, reason)
		log.Printf("universal: disabled for this run (%s, n=%d, min n=%d)",
			reason, cfg.BitLength, MinN)
		return nil
	}
	t.params = params
	t.discarded = params.Discarded(cfg.BitLength)

	tableSize := int64(1) << uint(params.L)
	t.tables = make([][]int64, cfg.Threads)
	for i := range t.tables {
		t.tables[i] = make([]int64, tableSize)
	}

	sizeHint := int(cfg.BitStreams)
	t.stats = store.NewOrderedLog[IterationRecord](store.DefaultChunk, sizeHint)
	t.pvals = store.NewOrderedLog[float64](store.DefaultChunk, sizeHint)

	t.enabled = true
	log.Printf("universal: L=%d Q=%d K=%d, %d of %d bits discarded per stream",
		params.L, params.Q, params.K, t.discarded, cfg.BitLength)
	return nil
}

// Iterate processes one bitstream: zero the calling worker's table, prime
// it over the initialization segment, accumulate log2 distances over the
// test segment, and classify the resulting p-value under the run lock.
func (t *Test) Iterate(ts *sts.ThreadState) error {
	if !t.enabled {
		return nil
	}

	L, Q, K := t.params.L, t.params.Q, t.params.K
	if L < MinL || L > MaxL {
		return sts.Invariantf("universal.Iterate", "L=%d outside [%d, %d]", L, MinL, MaxL)
	}
	if (int64(1) << uint(L)) > math.MaxInt64/10 {
		return sts.Invariantf("universal.Iterate", "2^L overflows for L=%d", L)
	}
	if ts.ID < 0 || ts.ID >= len(t.tables) {
		return sts.Invariantf("universal.Iterate", "thread id %d outside table range [0, %d)",
			ts.ID, len(t.tables))
	}
	if need := (Q + K) * L; int64(len(ts.Bits)) < need {
		return sts.Invariantf("universal.Iterate", "bitstream has %d bits, need %d",
			len(ts.Bits), need)
	}

	table := t.tables[ts.ID]
	clear(table)

	// Initialization segment: record the 1-based index of the last
	// occurrence of each L-bit pattern. A zero entry means "never seen".
	bits := ts.Bits
	for i := int64(1); i <= Q; i++ {
		table[decodeBlock(bits, (i-1)*L, L)] = i
	}

	// Test segment: sum log2 of the distance to each block's previous
	// occurrence, then move the occurrence index forward.
	var sum float64
	for i := Q + 1; i <= Q+K; i++ {
		dec := decodeBlock(bits, (i-1)*L, L)
		sum += math.Log2(float64(i - table[dec]))
		table[dec] = i
	}

	fn := sum / float64(K)
	sigma, pValue := computePValue(L, K, fn)

	record := IterationRecord{Q: Q, K: K, Sum: sum, Sigma: sigma, FN: fn}

	t.run.Exclusive(func() {
		t.counts.Count++
		t.counts.Valid++

		switch alpha := t.run.Config.Run.Alpha; {
		case pValue < 0.0:
			t.counts.Failure++
			metrics.RecordIterationFailure(testName, "bogus_low")
			log.Printf("universal: iteration %d: bogus p-value %f < 0", ts.Iteration+1, pValue)
		case pValue > 1.0:
			t.counts.Failure++
			metrics.RecordIterationFailure(testName, "bogus_high")
			log.Printf("universal: iteration %d: bogus p-value %f > 1", ts.Iteration+1, pValue)
		case pValue < alpha:
			t.counts.ValidPValue++
			t.counts.Failure++
			metrics.RecordIterationFailure(testName, "below_alpha")
		default:
			t.counts.ValidPValue++
			t.counts.Success++
			record.Success = true
		}

		t.stats.Append(record)
		t.pvals.Append(pValue)
	})

	metrics.RecordIteration(testName, record.Success)
	if pValue >= 0.0 && pValue <= 1.0 {
		metrics.RecordPValue(testName, pValue)
	}
	return nil
}

// Destroy releases the per-run storage. Counters and verdicts survive so
// that callers can still summarize the run; the test must be
// re-initialized before it can iterate again.
func (t *Test) Destroy() {
	t.tables = nil
	t.stats = nil
	t.pvals = nil
}

// decodeBlock reads the L bits starting at offset as a big-endian integer.
func decodeBlock(bits bitstream.Bits, offset, L int64) int64 {
	var dec int64
	for j := int64(0); j < L; j++ {
		dec = dec<<1 | int64(bits[offset+j])
	}
	return dec
}

// computePValue converts the normalized log-distance sum fn into the
// test's sigma and two-sided erfc p-value. The scaling factor c corrects
// sigma for the finite test segment length.
func computePValue(L, K int64, fn float64) (sigma, pValue float64) {
	c := 0.7 - 0.8/float64(L) +
		(4.0+32.0/float64(L))*math.Pow(float64(K), -3.0/float64(L))/15.0
	sigma = c * math.Sqrt(variance[L]/float64(K))
	arg := math.Abs(fn-expectedValue[L]) / (math.Sqrt2 * sigma)
	return sigma, math.Erfc(arg)
}
