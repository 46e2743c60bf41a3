package segment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestParallelTaskRunnerRunsEverything(t *testing.T) {
	var ran int32
	tasks := make([]func(context.Context), 20)
	for i := range tasks {
		tasks[i] = func(context.Context) {
			atomic.AddInt32(&ran, 1)
		}
	}

	err := ParallelTaskRunner{Workers: 4}.RunTasks(context.Background(), tasks)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, atomic.LoadInt32(&ran), test.ShouldEqual, 20)
}

func TestParallelTaskRunnerBoundsParallelism(t *testing.T) {
	var inFlight, peak int32
	tasks := make([]func(context.Context), 12)
	for i := range tasks {
		tasks[i] = func(context.Context) {
			now := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}
	}

	err := ParallelTaskRunner{Workers: 2}.RunTasks(context.Background(), tasks)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, atomic.LoadInt32(&peak), test.ShouldBeLessThanOrEqualTo, 2)
	test.That(t, atomic.LoadInt32(&peak), test.ShouldBeGreaterThan, 0)
}

func TestParallelTaskRunnerPreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	tasks := []func(context.Context){
		func(context.Context) { atomic.AddInt32(&ran, 1) },
		func(context.Context) { atomic.AddInt32(&ran, 1) },
	}

	err := ParallelTaskRunner{Workers: 2}.RunTasks(ctx, tasks)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, atomic.LoadInt32(&ran), test.ShouldEqual, 0)
}

func TestParallelTaskRunnerStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran int32
	tasks := make([]func(context.Context), 6)
	for i := range tasks {
		n := i
		tasks[n] = func(context.Context) {
			atomic.AddInt32(&ran, 1)
			if n == 2 {
				cancel()
			}
		}
	}

	// With one worker the tasks run serially, so nothing past the
	// cancellation point starts.
	err := ParallelTaskRunner{Workers: 1}.RunTasks(ctx, tasks)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	test.That(t, atomic.LoadInt32(&ran), test.ShouldEqual, 3)
}

func TestParallelTaskRunnerZeroWorkersDefaults(t *testing.T) {
	var ran int32
	tasks := []func(context.Context){func(context.Context) { atomic.AddInt32(&ran, 1) }}
	err := ParallelTaskRunner{}.RunTasks(context.Background(), tasks)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, atomic.LoadInt32(&ran), test.ShouldEqual, 1)
}
