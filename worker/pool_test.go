package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPoolRespectsConcurrencyCeiling(t *testing.T) {
	const workers = 3
	var running, peak atomic.Int32

	p := NewPool(workers, func(ctx context.Context, n int) (int, error) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return n * 2, nil
	})

	inputs := make([]int, 20)
	for i := range inputs {
		inputs[i] = i
	}

	seen := make(map[int]bool)
	for task := range p.Stream(context.Background(), inputs) {
		if task.Err != nil {
			t.Fatalf("task %d: %v", task.Index, task.Err)
		}
		if task.Result != task.Input*2 {
			t.Fatalf("task %d: result %d, want %d", task.Index, task.Result, task.Input*2)
		}
		if seen[task.Index] {
			t.Fatalf("task %d reported twice", task.Index)
		}
		seen[task.Index] = true
	}

	if len(seen) != len(inputs) {
		t.Fatalf("got %d tasks, want %d", len(seen), len(inputs))
	}
	if got := peak.Load(); got > workers {
		t.Fatalf("peak concurrency %d exceeds %d", got, workers)
	}
}

// collect drains a stream into a slice indexed by input position.
func collect[T, R any](n int, tasks <-chan Task[T, R]) []Task[T, R] {
	out := make([]Task[T, R], n)
	for task := range tasks {
		out[task.Index] = task
	}
	return out
}

func TestPoolStreamIndexesMatchInputs(t *testing.T) {
	p := NewPool(4, func(ctx context.Context, s string) (int, error) {
		// Later inputs finish first.
		time.Sleep(time.Duration(5-len(s)) * time.Millisecond)
		return len(s), nil
	})

	inputs := []string{"a", "bb", "ccc", "dddd"}
	tasks := collect(len(inputs), p.Stream(context.Background(), inputs))
	for i, task := range tasks {
		if task.Input != inputs[i] || task.Result != i+1 {
			t.Fatalf("tasks[%d] = %+v", i, task)
		}
	}
}

func TestPoolKeepsErrorsPerTask(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(2, func(ctx context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, boom
		}
		return n, nil
	})

	tasks := collect(4, p.Stream(context.Background(), []int{0, 1, 2, 3}))
	for _, task := range tasks {
		odd := task.Input%2 == 1
		if odd != errors.Is(task.Err, boom) {
			t.Fatalf("task %d: err = %v", task.Index, task.Err)
		}
	}
}

func TestPoolCancelledContextReportsEveryInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	p := NewPool(2, func(ctx context.Context, n int) (int, error) {
		calls.Add(1)
		return n, nil
	})

	tasks := collect(3, p.Stream(ctx, []int{1, 2, 3}))
	for _, task := range tasks {
		if !errors.Is(task.Err, context.Canceled) {
			t.Fatalf("task %d: err = %v, want context.Canceled", task.Index, task.Err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("process called %d times after cancellation", calls.Load())
	}
}

func TestPoolLimiterSpacesLaunches(t *testing.T) {
	p := NewPool(10, func(ctx context.Context, n int) (int, error) {
		return n, nil
	}).WithLimiter(rate.NewLimiter(rate.Every(20*time.Millisecond), 1))

	start := time.Now()
	for range p.Stream(context.Background(), []int{1, 2, 3}) {
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Fatalf("three launches took %v, want at least 40ms of spacing", elapsed)
	}
}
