package sts

import (
	"context"
	"fmt"
	"log"

	"entropy-sts-engine/internal/bitstream"
	"entropy-sts-engine/internal/clock"
	"entropy-sts-engine/internal/metrics"

	"golang.org/x/sync/errgroup"
)

// Execute runs the iterate phase: a fixed pool of worker threads pulls
// iteration numbers from a shared channel, fetches one bitstream per
// iteration, and feeds it to every enabled test. The per-iteration
// computation is lock-free; only each test's final bookkeeping takes the
// run lock. The first error cancels the remaining iterations.
func (r *Run) Execute(ctx context.Context, source bitstream.Source, tests []Test) error {
	enabled := make([]Test, 0, len(tests))
	for _, t := range tests {
		if t.Enabled() {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		log.Printf("run %s: no tests enabled, nothing to iterate", r.ID)
		return nil
	}

	iterations := r.Config.Run.BitStreams
	threads := r.Config.Run.Threads
	if int64(threads) > iterations {
		threads = int(iterations)
	}
	if threads < 1 {
		threads = 1
	}

	log.Printf("run %s: iterating %d bitstreams across %d worker threads", r.ID, iterations, threads)

	jobs := make(chan int64)
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(jobs)
		for i := int64(0); i < iterations; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	metrics.SetWorkersActive(threads)
	defer metrics.SetWorkersActive(0)

	for id := 0; id < threads; id++ {
		id := id
		group.Go(func() error {
			ts := &ThreadState{ID: id}
			for iteration := range jobs {
				bits, err := source.Next(ctx)
				if err != nil {
					return fmt.Errorf("worker %d: bitstream for iteration %d: %w", id, iteration, err)
				}

				ts.Iteration = iteration
				ts.Bits = bits

				start := r.clockSource.Now()
				for _, t := range enabled {
					if err := t.Iterate(ts); err != nil {
						return fmt.Errorf("worker %d: iteration %d: %w", id, iteration, err)
					}
				}
				metrics.RecordIterationDuration(clock.Since(r.clockSource, start))
			}
			return nil
		})
	}

	return group.Wait()
}
