// Package resolver supplies the two external inputs of an analysis, the
// investor criteria and the mortgage rate, with per-fetch timeouts, a Redis
// read-through cache and static fallbacks.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deal-analyzer/internal/common/database"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/metrics"
	"deal-analyzer/internal/models"
)

// Where a resolved value came from.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceFallback = "fallback"
	// SourceDefault means no lookup was attempted (no ZIP or no rate source).
	SourceDefault = "default"
)

// DefaultFallbackRate is used whenever a live rate is unavailable.
const DefaultFallbackRate models.Fraction = 0.07

type Options struct {
	CriteriaProfile  string
	CriteriaTimeout  time.Duration
	CriteriaCacheTTL time.Duration
	RateTimeout      time.Duration
	RateCacheTTL     time.Duration
	FallbackRate     models.Fraction
	FallbackCriteria *models.CriteriaConfig
}

type CriteriaResolution struct {
	Criteria models.CriteriaConfig
	Source   string
	Flags    []models.Flag
}

type RateResolution struct {
	Rate   models.Fraction
	Source string
	Flags  []models.Flag
}

type Resolver struct {
	criteria CriteriaSource
	rates    RateSource
	cache    *database.RedisClient
	opts     Options
	logger   logger.Logger
}

// New builds a Resolver. rates and cache may be nil.
func New(criteria CriteriaSource, rates RateSource, cache *database.RedisClient, opts Options, log logger.Logger) *Resolver {
	if opts.CriteriaProfile == "" {
		opts.CriteriaProfile = "default"
	}
	if opts.CriteriaTimeout <= 0 {
		opts.CriteriaTimeout = 2 * time.Second
	}
	if opts.RateTimeout <= 0 {
		opts.RateTimeout = 3 * time.Second
	}
	if opts.FallbackRate <= 0 {
		opts.FallbackRate = DefaultFallbackRate
	}
	if criteria == nil {
		criteria = NewStaticCriteriaSource(models.DefaultCriteria())
	}
	return &Resolver{
		criteria: criteria,
		rates:    rates,
		cache:    cache,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "resolver"}),
	}
}

// Criteria never fails: on error or timeout it returns the fallback criteria
// and a DEPENDENCY_DEGRADED flag.
func (r *Resolver) Criteria(ctx context.Context) CriteriaResolution {
	key := "criteria:" + r.opts.CriteriaProfile

	var cached models.CriteriaConfig
	if r.cacheGet(ctx, "criteria", key, &cached) {
		return CriteriaResolution{Criteria: cached, Source: SourceCache}
	}

	c, err := withTimeout(ctx, r.opts.CriteriaTimeout, r.criteria.LoadCriteria)
	if err != nil {
		flag := r.degraded("criteria", err)
		fallback := models.DefaultCriteria()
		if r.opts.FallbackCriteria != nil {
			fallback = r.opts.FallbackCriteria.Clone()
		}
		return CriteriaResolution{Criteria: fallback, Source: SourceFallback, Flags: []models.Flag{flag}}
	}

	r.cacheSet(ctx, key, c, r.opts.CriteriaCacheTTL)
	return CriteriaResolution{Criteria: c, Source: SourceLive}
}

// MortgageRate never fails. Without a ZIP code or a configured rate source
// it returns the fallback rate immediately.
func (r *Resolver) MortgageRate(ctx context.Context, loanAmount float64, termMonths int, zipCode string) RateResolution {
	if zipCode == "" || r.rates == nil {
		return RateResolution{Rate: r.opts.FallbackRate, Source: SourceDefault}
	}

	key := fmt.Sprintf("rate:%s:%d", zipCode, termMonths)
	var cached models.Fraction
	if r.cacheGet(ctx, "rate", key, &cached) {
		return RateResolution{Rate: cached, Source: SourceCache}
	}

	rate, err := withTimeout(ctx, r.opts.RateTimeout, func(ctx context.Context) (models.Fraction, error) {
		return r.rates.FetchMortgageRate(ctx, loanAmount, termMonths, zipCode)
	})
	if err != nil {
		flag := r.degraded("rates", err)
		return RateResolution{Rate: r.opts.FallbackRate, Source: SourceFallback, Flags: []models.Flag{flag}}
	}

	r.cacheSet(ctx, key, rate, r.opts.RateCacheTTL)
	return RateResolution{Rate: rate, Source: SourceLive}
}

func (r *Resolver) degraded(dependency string, err error) models.Flag {
	reason := "error"
	if errors.Is(err, ErrFetchTimeout) {
		reason = "timeout"
	}
	metrics.DependencyDegraded.WithLabelValues(dependency, reason).Inc()
	r.logger.Warn("Dependency degraded, using fallback", map[string]interface{}{
		"dependency": dependency,
		"reason":     reason,
		"error":      err.Error(),
	})
	return models.Flag{
		Code:    models.FlagDependencyDegraded,
		Message: fmt.Sprintf("%s unavailable (%s), fallback applied", dependency, reason),
		Source:  dependency,
	}
}

func (r *Resolver) cacheGet(ctx context.Context, kind, key string, dst interface{}) bool {
	if r.cache == nil {
		return false
	}
	found, err := r.cache.GetJSON(ctx, key, dst)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(kind, "error").Inc()
		r.logger.Debug("Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if !found {
		metrics.CacheLookups.WithLabelValues(kind, "miss").Inc()
		return false
	}
	metrics.CacheLookups.WithLabelValues(kind, "hit").Inc()
	return true
}

func (r *Resolver) cacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if r.cache == nil || ttl <= 0 {
		return
	}
	if err := r.cache.SetJSON(ctx, key, value, ttl); err != nil {
		r.logger.Debug("Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

// withTimeout races fn against timeout. fn keeps running in the background
// after a timeout; its result is discarded.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w after %s: %v", ErrFetchTimeout, timeout, ctx.Err())
	}
}
