package sts

import (
	"context"
	"fmt"
	"log"
	"sync"

	"entropy-sts-engine/internal/bitstream"
	"entropy-sts-engine/internal/clock"
	"entropy-sts-engine/internal/config"

	"github.com/google/uuid"
)

// Run is the shared state of one qualification run. The embedded mutex is
// the single lock of the suite: result log appends and counter updates
// happen together under it, so a reader never observes one without the
// other.
type Run struct {
	ID     string
	Config config.Config

	mu          sync.Mutex
	clockSource clock.Clock

	successfulTests int
}

// Option applies an optional setting to a Run during construction.
type Option func(*Run)

// WithClock injects a custom clock for deterministic timing in tests.
func WithClock(c clock.Clock) Option {
	return func(r *Run) {
		r.clockSource = c
	}
}

// NewRun creates a run with a fresh identifier.
func NewRun(cfg config.Config, opts ...Option) *Run {
	r := &Run{
		ID:          uuid.NewString(),
		Config:      cfg,
		clockSource: clock.RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.clockSource == nil {
		r.clockSource = clock.RealClock{}
	}
	return r
}

// Exclusive runs fn while holding the run's shared-state lock. Tests use it
// for the single critical section at the end of each iteration.
func (r *Run) Exclusive(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
}

// RecordTestSuccess counts a test whose partitions all passed both checks.
// Called from the single-threaded metrics phase.
func (r *Run) RecordTestSuccess() {
	r.successfulTests++
}

// SuccessfulTests returns how many tests passed both checks on every
// partition.
func (r *Run) SuccessfulTests() int {
	return r.successfulTests
}

// Conduct drives all tests through the full lifecycle: init, the concurrent
// iterate phase, then print, metrics, and destroy. Print and metrics are
// skipped for disabled tests by the tests themselves. Any error is fatal for
// the run.
func (r *Run) Conduct(ctx context.Context, source bitstream.Source, tests []Test) error {
	for _, t := range tests {
		if err := t.Init(r); err != nil {
			return fmt.Errorf("init %s: %w", t.Name(), err)
		}
	}

	if err := r.Execute(ctx, source, tests); err != nil {
		return err
	}

	for _, t := range tests {
		if err := t.Print(); err != nil {
			return fmt.Errorf("print %s: %w", t.Name(), err)
		}
	}

	for _, t := range tests {
		if err := t.Metrics(); err != nil {
			return fmt.Errorf("metrics %s: %w", t.Name(), err)
		}
	}

	for _, t := range tests {
		t.Destroy()
	}

	log.Printf("run %s: %d of %d tests successful", r.ID, r.successfulTests, len(tests))
	return nil
}
