// Package worker runs a function over a set of inputs with bounded
// concurrency and streams the outcomes back as they complete.
package worker

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Task is the outcome of processing one input.
type Task[T any, R any] struct {
	// Index is the input's position in the slice passed to the pool.
	Index  int
	Input  T
	Result R
	Err    error
}

// ProcessFunc processes a single input.
type ProcessFunc[T any, R any] func(ctx context.Context, input T) (R, error)

// Pool is a generic worker pool with a concurrency ceiling and optional
// launch rate limit.
type Pool[T any, R any] struct {
	workers int
	process ProcessFunc[T, R]
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewPool creates a pool running at most workers calls of fn at once.
func NewPool[T any, R any](workers int, fn ProcessFunc[T, R]) *Pool[T, R] {
	if workers < 1 {
		workers = 1
	}
	return &Pool[T, R]{
		workers: workers,
		process: fn,
		log:     zerolog.Nop(),
	}
}

// WithLimiter spaces task launches through l. A nil limiter disables
// spacing.
func (p *Pool[T, R]) WithLimiter(l *rate.Limiter) *Pool[T, R] {
	p.limiter = l
	return p
}

// WithLogger sets the logger used for task failures.
func (p *Pool[T, R]) WithLogger(l zerolog.Logger) *Pool[T, R] {
	p.log = l
	return p
}

// Stream processes inputs in the background and sends one Task per input on
// the returned channel, in completion order. The channel is closed once
// every input has been accounted for. Inputs not started because ctx was
// cancelled are reported with ctx's error.
func (p *Pool[T, R]) Stream(ctx context.Context, inputs []T) <-chan Task[T, R] {
	out := make(chan Task[T, R], len(inputs))

	go func() {
		defer close(out)

		var g errgroup.Group
		g.SetLimit(p.workers)

		for i, in := range inputs {
			i, in := i, in
			if err := p.wait(ctx); err != nil {
				out <- Task[T, R]{Index: i, Input: in, Err: err}
				continue
			}
			g.Go(func() error {
				result, err := p.process(ctx, in)
				if err != nil {
					p.log.Error().Err(err).Int("index", i).Msg("Task failed")
				}
				out <- Task[T, R]{Index: i, Input: in, Result: result, Err: err}
				return nil
			})
		}

		_ = g.Wait()
	}()

	return out
}

func (p *Pool[T, R]) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
