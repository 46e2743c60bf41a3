package segment

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// A TaskRunner executes a batch of independent tasks. The caller supplies it
// so the host application keeps control of threading policy; tasks may run in
// any order and in parallel. RunTasks returns once every started task has
// finished, reporting only context cancellation: task-level failures are the
// tasks' own business.
type TaskRunner interface {
	RunTasks(ctx context.Context, tasks []func(context.Context)) error
}

// ParallelTaskRunner drains the task list with a bounded number of
// goroutines.
type ParallelTaskRunner struct {
	// Workers caps concurrently running tasks. Zero or less means one per
	// available CPU.
	Workers int
}

// RunTasks implements TaskRunner.
func (r ParallelTaskRunner) RunTasks(ctx context.Context, tasks []func(context.Context)) error {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, task := range tasks {
		task := task
		group.Go(func() error {
			// Stop dispatching once the run is cancelled; tasks already
			// started run to completion.
			if err := gctx.Err(); err != nil {
				return err
			}
			task(gctx)
			return nil
		})
	}
	return group.Wait()
}
