// Package driver offers an opt-in helper for running several independent
// System instances concurrently. Nothing inside a single system's package
// (gb, nes, sms, genesis) imports this package — the cores themselves are
// single-threaded and know nothing of concurrency (spec.md §5). This is
// purely a convenience for callers that want to drive N instances across
// goroutines without hand-rolling the fan-out.
package driver

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunFramesParallel advances every system in systems by n frames each,
// one goroutine per system. Systems share no state (spec.md §5: "between
// systems: fully parallel shared-nothing"), so no synchronization beyond
// the errgroup's own completion barrier is required. The first system to
// return an error cancels the others' remaining work via ctx.
func RunFramesParallel(ctx context.Context, systems []Advancer, n int) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sys := range systems {
		sys := sys
		g.Go(func() error {
			for i := 0; i < n; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				sys.Frame()
			}
			return nil
		})
	}
	return g.Wait()
}

// Advancer is the minimal surface RunFramesParallel needs — any core.System
// satisfies it.
type Advancer interface {
	Frame()
}
