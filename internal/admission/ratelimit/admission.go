package ratelimit

import (
	"context"
	"errors"
	"sync/atomic"

	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/metrics"
)

// Admission applies the tier limiters and fails open when the counter store
// is unavailable. The transition into and out of the degraded state is
// logged once each.
type Admission struct {
	registry *Registry
	logger   logger.Logger
	degraded atomic.Bool
}

func NewAdmission(registry *Registry, log logger.Logger) *Admission {
	return &Admission{
		registry: registry,
		logger:   log.WithFields(map[string]interface{}{"component": "ratelimit"}),
	}
}

// Admit decides one request. The only error is an unknown tier name.
func (a *Admission) Admit(ctx context.Context, tierName, identity string) (Result, error) {
	tier, ok := a.registry.Tier(tierName)
	if !ok {
		return Result{}, ErrUnknownTier
	}

	limiter, err := a.registry.Limiter(ctx, tierName)
	if err != nil {
		if errors.Is(err, ErrUnknownTier) {
			return Result{}, err
		}
		return a.open(tier, err), nil
	}

	res, err := limiter.Allow(ctx, identity)
	if err != nil {
		return a.open(tier, err), nil
	}

	if a.degraded.CompareAndSwap(true, false) {
		a.logger.Info("Rate limit store recovered", map[string]interface{}{"tier": tier.Name})
	}

	outcome := "allowed"
	if !res.Allowed {
		outcome = "rejected"
	}
	metrics.RateLimitDecisions.WithLabelValues(tier.Name, outcome).Inc()
	return res, nil
}

// Degraded reports whether the last decision bypassed the store.
func (a *Admission) Degraded() bool {
	return a.degraded.Load()
}

func (a *Admission) open(tier Tier, cause error) Result {
	if a.degraded.CompareAndSwap(false, true) {
		a.logger.Warn("Rate limit store unavailable, admitting without limits", map[string]interface{}{
			"tier":  tier.Name,
			"error": cause.Error(),
		})
	}
	metrics.RateLimitDecisions.WithLabelValues(tier.Name, "degraded").Inc()
	return Result{Allowed: true, Limit: tier.Limit, Remaining: tier.Limit, Degraded: true}
}
