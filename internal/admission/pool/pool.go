// Package pool bounds how many operations of one class run at once. Callers
// over capacity queue in submission order; nothing is ever rejected.
package pool

import (
	"context"

	"deal-analyzer/internal/common/metrics"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool names.
const (
	Light = "light"
	Heavy = "heavy"
)

// Pool is a fixed-size FIFO admission gate.
type Pool struct {
	name string
	size int64
	sem  *semaphore.Weighted
}

func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name: name,
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

func (p *Pool) Name() string { return p.name }

func (p *Pool) Size() int { return int(p.size) }

// Do waits for a slot, runs fn and releases the slot whether fn fails or not.
// It returns ctx.Err() if the context ends while still queued.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()
	return fn(ctx)
}

// Run executes fns with at most Size of them in flight. Slots are granted in
// slice order. The first error cancels the context handed to the remaining
// fns and is returned once every started fn has finished.
func (p *Pool) Run(ctx context.Context, fns ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		if err := p.acquire(gctx); err != nil {
			break
		}
		fn := fn
		g.Go(func() error {
			defer p.release()
			return fn(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Pool) acquire(ctx context.Context) error {
	waiting := metrics.PoolWaiting.WithLabelValues(p.name)
	waiting.Inc()
	err := p.sem.Acquire(ctx, 1)
	waiting.Dec()
	if err != nil {
		return err
	}
	metrics.PoolInFlight.WithLabelValues(p.name).Inc()
	return nil
}

func (p *Pool) release() {
	metrics.PoolInFlight.WithLabelValues(p.name).Dec()
	p.sem.Release(1)
}

// Pools separates cheap lookups from expensive calls so a burst of the latter
// cannot starve the former.
type Pools struct {
	Light *Pool
	Heavy *Pool
}

func NewPools(light, heavy int) *Pools {
	return &Pools{
		Light: New(Light, light),
		Heavy: New(Heavy, heavy),
	}
}
