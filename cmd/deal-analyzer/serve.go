package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deal-analyzer/internal/admission/ratelimit"
	"deal-analyzer/internal/common/auth"
	"deal-analyzer/internal/common/camunda"
	"deal-analyzer/internal/common/config"
	"deal-analyzer/internal/server"
	analyzedeal "deal-analyzer/internal/workers/deal/analyze-deal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the analyze-deal job worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg, buildOptions{connectRedis: true, retries: 10, notify: true})
	if err != nil {
		return err
	}
	defer c.Close()

	c.zap.Info("Starting deal analyzer...", zap.String("version", version), zap.String("environment", cfg.App.Environment))

	var checks []server.ReadinessCheck

	var admission server.Admitter
	if c.redis != nil {
		registry := ratelimit.NewRegistry(rateLimitTiers(cfg.Admission.Tiers), ratelimit.RedisFactory(c.redis))
		admission = ratelimit.NewAdmission(registry, c.log)
		checks = append(checks, server.ReadinessCheck{Name: "redis", Check: c.redis.Ping})
	} else {
		c.zap.Warn("Redis not configured, rate limiting disabled")
	}
	if c.pg != nil {
		checks = append(checks, server.ReadinessCheck{Name: "postgres", Check: c.pg.Ping})
	}

	var validator server.TokenValidator
	if cfg.Auth.Enabled {
		validator = auth.NewKeycloakClient(
			cfg.Auth.KeycloakURL,
			cfg.Auth.Realm,
			cfg.Auth.ClientID,
			cfg.Auth.ClientSecret,
			config.GetDuration(cfg.Auth.Timeout),
		)
	}

	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, c.zap, "Zeebe client initialization")
		if err != nil {
			return err
		}
		defer zeebe.Close()
		c.zap.Info("Zeebe client connected successfully")
		checks = append(checks, server.ReadinessCheck{Name: "zeebe", Check: zeebe.HealthCheck})

		if config.IsWorkerEnabled(cfg, analyzedeal.TaskType) {
			wcfg := config.GetWorkerConfig(cfg, analyzedeal.TaskType)
			handler := analyzedeal.NewHandler(analyzedeal.LoadConfig(wcfg), c.orch, c.log)
			w := camunda.NewWorker(zeebe.GetClient(), analyzedeal.TaskType, camunda.WorkerOptions{
				MaxJobsActive: wcfg.MaxJobsActive,
				Timeout:       config.GetDuration(wcfg.Timeout),
			}, handler.Handle, c.zap)
			defer w.Close()
		} else {
			c.zap.Info("worker disabled", zap.String("taskType", analyzedeal.TaskType))
		}
	}

	srv := server.New(c.orch, server.Options{
		Admission:   admission,
		Auth:        validator,
		Checks:      checks,
		CORSOrigins: cfg.Server.CORSOrigins,
		Version:     version,
	}, c.log)

	err = srv.Run(ctx, cfg.Server)
	c.zap.Info("Deal analyzer stopped")
	return err
}

func rateLimitTiers(tiers map[string]config.TierConfig) []ratelimit.Tier {
	out := make([]ratelimit.Tier, 0, len(tiers))
	for name, t := range tiers {
		out = append(out, ratelimit.Tier{
			Name:   name,
			Limit:  int64(t.Limit),
			Window: t.WindowDuration(),
		})
	}
	return out
}
