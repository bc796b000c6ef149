package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"deal-analyzer/internal/admission/pool"
	"deal-analyzer/internal/alerts"
	"deal-analyzer/internal/common/aws"
	"deal-analyzer/internal/common/config"
	"deal-analyzer/internal/common/database"
	commonhttp "deal-analyzer/internal/common/http"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/observability"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/orchestrator"
	"deal-analyzer/internal/resolver"
	"deal-analyzer/internal/scoring"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// components holds everything an analysis needs. redis and pg are nil when
// the configuration does not call for them.
type components struct {
	zap   *zap.Logger
	log   logger.Logger
	obs   *observability.Observability
	redis *database.RedisClient
	pg    *database.PostgresClient
	pools *pool.Pools
	orch  *orchestrator.Orchestrator
}

func (c *components) Close() {
	if c.pg != nil {
		_ = c.pg.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if c.obs != nil {
		c.obs.Shutdown()
	}
	_ = c.zap.Sync()
}

type buildOptions struct {
	// connectRedis enables the resolver cache; serve also uses it for rate
	// limiting.
	connectRedis bool
	retries      int
	// notify enables SNS alerts when configured.
	notify bool
}

func newLoggers(cfg *config.Config) (*zap.Logger, logger.Logger) {
	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return zapLog, logger.NewZapAdapter(zapLog)
}

func buildComponents(ctx context.Context, cfg *config.Config, opts buildOptions) (*components, error) {
	c := &components{}
	c.zap, c.log = newLoggers(cfg)
	c.obs = observability.New(cfg.App.Name)

	if opts.retries <= 0 {
		opts.retries = 1
	}

	if opts.connectRedis && cfg.Database.Redis.Address != "" {
		err := retryWithBackoff(func() error {
			var err error
			c.redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return c.redis.Ping(ctx)
		}, opts.retries, 2*time.Second, c.zap, "Redis connection")
		if err != nil {
			c.Close()
			return nil, err
		}
		c.zap.Info("Redis connected successfully")
	}

	if cfg.Criteria.Source == config.CriteriaSourcePostgres {
		err := retryWithBackoff(func() error {
			var err error
			c.pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return c.pg.Ping(ctx)
		}, opts.retries, 2*time.Second, c.zap, "PostgreSQL connection")
		if err != nil {
			c.Close()
			return nil, err
		}
		c.zap.Info("PostgreSQL connected successfully")
	}

	var notifier orchestrator.Notifier
	if opts.notify && cfg.Alerts.Enabled {
		client, err := aws.NewSNSClient(ctx, cfg.Alerts.Region)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("sns client: %w", err)
		}
		notifier = alerts.NewSNSNotifier(client, cfg.Alerts.TopicARN, c.log)
	}

	c.pools = pool.NewPools(cfg.Admission.Pools.Light, cfg.Admission.Pools.Heavy)
	c.orch = orchestrator.New(orchestrator.Dependencies{
		Resolver:      newResolver(cfg, c.pg, c.redis, c.log),
		Pools:         c.pools,
		Scorer:        newScorer(cfg),
		Notifier:      notifier,
		Observability: c.obs,
	}, orchestrator.Config{
		TermMonths:     cfg.Rates.TermMonths,
		ScoringTimeout: config.GetDuration(cfg.Scoring.Timeout),
	}, c.log)

	return c, nil
}

func newResolver(cfg *config.Config, pg *database.PostgresClient, cache *database.RedisClient, log logger.Logger) *resolver.Resolver {
	var criteria resolver.CriteriaSource
	switch cfg.Criteria.Source {
	case config.CriteriaSourceFile:
		criteria = resolver.NewFileCriteriaSource(cfg.Criteria.FilePath)
	case config.CriteriaSourcePostgres:
		criteria = resolver.NewPostgresCriteriaSource(pg, cfg.Criteria.Profile)
	default:
		criteria = resolver.NewStaticCriteriaSource(models.DefaultCriteria())
	}

	var rates resolver.RateSource
	if cfg.Rates.BaseURL != "" {
		client := commonhttp.NewClient(config.GetDuration(cfg.Rates.FetchTimeout))
		rates = resolver.NewHTTPRateSource(client, cfg.Rates.BaseURL, cfg.Rates.APIKey)
	}

	return resolver.New(criteria, rates, cache, resolver.Options{
		CriteriaProfile:  cfg.Criteria.Profile,
		CriteriaTimeout:  config.GetDuration(cfg.Criteria.FetchTimeout),
		CriteriaCacheTTL: config.GetDuration(cfg.Criteria.CacheTTL),
		RateTimeout:      config.GetDuration(cfg.Rates.FetchTimeout),
		RateCacheTTL:     config.GetDuration(cfg.Rates.CacheTTL),
		FallbackRate:     models.Fraction(cfg.Rates.FallbackRate),
	}, log)
}

func newScorer(cfg *config.Config) orchestrator.Scorer {
	if !cfg.Scoring.Enabled {
		return nil
	}
	return scoring.NewOpenAIScorer(cfg.Scoring.APIKey, cfg.Scoring.Model, cfg.Scoring.BaseURL)
}
