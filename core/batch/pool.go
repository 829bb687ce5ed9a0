// Package batch fans independent, stateless tasks out over a bounded worker
// pool and collects their results in input order.
package batch

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/voi/core/model"
)

// Task computes the result for input index i.
type Task func(ctx context.Context, i int) (float64, error)

// Progress is called after each completed task with the number of completed
// tasks and the batch size. It may be called from several goroutines.
type Progress func(done, total int)

// DefaultWorkers caps the pool at half the available cores. Simulations are
// memory hungry and oversubscribing the machine degrades throughput.
func DefaultWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		return 1
	}
	return n
}

// Runner executes batches on a bounded pool.
type Runner struct {
	Workers  int
	Name     string
	Progress Progress
}

// Run executes n tasks and returns their results indexed like their inputs,
// whatever the completion order. The first failing task cancels the rest and
// the whole batch fails with a *model.EvaluationError naming the index.
func (r Runner) Run(ctx context.Context, n int, task Task) ([]float64, error) {
	if n <= 0 {
		return nil, model.NewInvalidInput("batch", "size must be positive")
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	out := make([]float64, n)
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := task(gctx, i)
			if err != nil {
				return &model.EvaluationError{Batch: r.Name, Index: i, Err: err}
			}
			out[i] = v
			if r.Progress != nil {
				r.Progress(int(done.Add(1)), n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
