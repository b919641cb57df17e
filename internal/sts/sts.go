// Package sts implements the shared execution contract of the statistical
// test suite: a run carries the configuration and the single lock guarding
// all shared result state, and every test moves through the same five
// phases: init, iterate, print, metrics, destroy. Init may disable a test
// for the whole run (an informational outcome, not an error), in which case
// the remaining phases become no-ops.
package sts

import (
	"fmt"

	"entropy-sts-engine/internal/bitstream"
)

// NonPValue marks an iteration whose p-value could not be computed. It is
// recorded in the p-value log in place of a real value and excluded from
// assessment.
const NonPValue = -99999.0

// Counts are the run-wide iteration counters a test maintains. They are
// mutated only while holding the run's shared-state lock and only ever grow.
type Counts struct {
	Count       int64 // iterations attempted
	Valid       int64 // iterations that produced a result
	Failure     int64 // iterations classified as failures
	ValidPValue int64 // p-values inside [0, 1]
	Success     int64 // iterations classified as successes
}

// InvariantError reports a violated precondition in the hot path: malformed
// internal state or an out-of-range parameter that indicates a logic bug
// rather than bad input. It is unrecoverable; the coordinator aborts the run
// when one surfaces.
type InvariantError struct {
	Site   string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("sts: invariant violated in %s: %s", e.Site, e.Detail)
}

// Invariantf constructs an InvariantError for the given call site.
func Invariantf(site, format string, args ...any) *InvariantError {
	return &InvariantError{Site: site, Detail: fmt.Sprintf(format, args...)}
}

// ThreadState is the per-worker view handed to Iterate. Each worker owns one
// ThreadState for the lifetime of the run; the ID indexes the test's
// per-thread scratch storage and must never be shared across workers.
type ThreadState struct {
	ID        int
	Iteration int64
	Bits      bitstream.Bits
}

// Test is one member of the statistical test family. Implementations hold
// their own counters, scratch tables, and result logs; the run supplies
// configuration and the shared-state lock.
type Test interface {
	// Name returns the test's directory-safe identifier.
	Name() string

	// Init derives parameters from the run configuration and allocates
	// per-thread scratch state. It may disable the test for this run.
	Init(run *Run) error

	// Enabled reports whether the test participates in this run.
	Enabled() bool

	// Iterate processes one bitstream on the calling worker thread. Only
	// the final bookkeeping may touch shared state, under the run lock.
	// A returned error is fatal for the whole run.
	Iterate(ts *ThreadState) error

	// Print writes the per-iteration result files.
	Print() error

	// Metrics assesses the accumulated p-value log per partition.
	Metrics() error

	// Destroy releases per-run storage.
	Destroy()
}
