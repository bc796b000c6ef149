package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"deal-analyzer/internal/common/database"

	"golang.org/x/sync/singleflight"
)

// Factory builds the limiter for one tier. An error leaves the tier
// uninitialized so the next call tries again.
type Factory func(ctx context.Context, tier Tier) (Limiter, error)

// RedisFactory returns a Factory that checks the store is reachable before
// handing out a limiter.
func RedisFactory(store *database.RedisClient) Factory {
	return func(ctx context.Context, tier Tier) (Limiter, error) {
		if store == nil || store.Client == nil {
			return nil, fmt.Errorf("rate limit store not configured")
		}
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return NewSlidingWindowLimiter(store.Client, tier), nil
	}
}

// Registry constructs each tier's limiter lazily and exactly once. Concurrent
// first calls for a tier share one in-flight construction; a failed
// construction is not remembered.
type Registry struct {
	tiers   map[string]Tier
	factory Factory

	group singleflight.Group
	mu    sync.RWMutex
	ready map[string]Limiter
}

func NewRegistry(tiers []Tier, factory Factory) *Registry {
	byName := make(map[string]Tier, len(tiers))
	for _, t := range tiers {
		byName[t.Name] = t
	}
	return &Registry{
		tiers:   byName,
		factory: factory,
		ready:   make(map[string]Limiter),
	}
}

// Tier returns the configuration of the named tier.
func (r *Registry) Tier(name string) (Tier, bool) {
	t, ok := r.tiers[name]
	return t, ok
}

// Limiter returns the ready limiter for name, constructing it on first use.
func (r *Registry) Limiter(ctx context.Context, name string) (Limiter, error) {
	tier, ok := r.tiers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTier, name)
	}

	r.mu.RLock()
	l, ok := r.ready[name]
	r.mu.RUnlock()
	if ok {
		return l, nil
	}

	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		r.mu.RLock()
		l, ok := r.ready[name]
		r.mu.RUnlock()
		if ok {
			return l, nil
		}

		l, err := r.factory(context.WithoutCancel(ctx), tier)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.ready[name] = l
		r.mu.Unlock()
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Limiter), nil
}
