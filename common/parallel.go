// Package common - Shared helpers used across the decoding pipeline.
package common

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForRange runs fn once for every index in [0, n) on a bounded pool of
// goroutines and blocks until all of them have returned.
//
// Each index is handed to exactly one call of fn, so callers can write results
// into their own slot of a pre-sized slice without locking.
//
// Arguments:
//   - n: The number of independent tasks.
//   - workers: The maximum number of concurrent goroutines (<= 0 uses GOMAXPROCS).
//   - fn: The task body.
//
// Returns:
//   - The first non-nil error returned by fn, after every task has finished.
//
// @example
// out := make([]int, len(in))
//
//	err := ForRange(len(in), 0, func(i int) error {
//	    out[i] = in[i] * 2
//	    return nil
//	})
func ForRange(n, workers int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	if workers == 1 {
		var first error
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}

// ForEach is ForRange for task bodies that cannot fail.
func ForEach(n, workers int, fn func(i int)) {
	_ = ForRange(n, workers, func(i int) error {
		fn(i)
		return nil
	})
}
