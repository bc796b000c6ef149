// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deal-analyzer/internal/admission/pool"
	"deal-analyzer/internal/admission/ratelimit"
	"deal-analyzer/internal/common/camunda"
	"deal-analyzer/internal/common/config"
	"deal-analyzer/internal/common/database"
	"deal-analyzer/internal/common/logger"
	"deal-analyzer/internal/common/observability"
	"deal-analyzer/internal/models"
	"deal-analyzer/internal/orchestrator"
	"deal-analyzer/internal/resolver"
	"deal-analyzer/internal/server"
	analyzedeal "deal-analyzer/internal/workers/deal/analyze-deal"
)

const e2eProfile = "e2e"

var zapLog *zap.Logger

func TestMain(m *testing.M) {
	zapLog, _ = zap.NewDevelopment()
	code := m.Run()
	_ = zapLog.Sync()
	os.Exit(code)
}

func requireE2E(t *testing.T) *config.Config {
	t.Helper()
	if os.Getenv("E2E") == "" {
		t.Skip("set E2E=1 to run against local Postgres, Redis and Zeebe")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	// Force localhost for docker-compose runs.
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Camunda.BrokerAddress = "localhost:26500"
	return cfg
}

func TestFullE2E(t *testing.T) {
	cfg := requireE2E(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	t.Log("🚀 Starting deal analyzer E2E test...")

	pg, rdb := connectServices(ctx, t, cfg)
	seedCriteria(ctx, t, pg)

	log := logger.NewZapAdapter(zapLog)
	res := resolver.New(
		resolver.NewPostgresCriteriaSource(pg, e2eProfile),
		nil,
		rdb,
		resolver.Options{CriteriaProfile: e2eProfile, CriteriaCacheTTL: time.Minute},
		log,
	)
	orch := orchestrator.New(orchestrator.Dependencies{
		Resolver:      res,
		Pools:         pool.NewPools(4, 1),
		Observability: observability.NewNoop(),
	}, orchestrator.Config{}, log)

	testHTTP(ctx, t, orch, rdb, log)
	testWorkerExecute(ctx, t, orch, log)

	t.Log("✅ E2E workflow successful")
}

// ==========================
// 1. Connectivity
// ==========================
func connectServices(ctx context.Context, t *testing.T, cfg *config.Config) (*database.PostgresClient, *database.RedisClient) {
	t.Log("🔍 Checking service connectivity...")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Cleanup(func() { _ = pg.Close() })
	t.Log("✅ PostgreSQL connected")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	t.Cleanup(func() { _ = rdb.Close() })
	t.Log("✅ Redis connected")

	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
	})
	require.NoError(t, err, "Zeebe client creation failed")
	assert.NoError(t, zeebe.HealthCheck(ctx), "Zeebe topology request failed")
	_ = zeebe.Close()
	t.Log("✅ Zeebe connected")

	return pg, rdb
}

// ==========================
// 2. Criteria schema + test profile
// ==========================
func seedCriteria(ctx context.Context, t *testing.T, pg *database.PostgresClient) {
	t.Log("🔧 Creating investment_criteria table and test profile...")

	require.NoError(t, pg.Migrate(ctx))

	criteria := models.DefaultCriteria()
	criteria.Name = ""
	criteria.CapRate.Minimum = 0.04
	raw, err := json.Marshal(criteria)
	require.NoError(t, err)

	require.NoError(t, pg.SaveCriteria(ctx, e2eProfile, "E2E Buy Box", raw))
	t.Log("✅ Criteria profile inserted")
}

// ==========================
// 3. HTTP API with live rate limiting
// ==========================
const dealBody = `{
  "property": {
    "address": "123 Main St",
    "city": "Columbus",
    "state": "OH",
    "zipCode": "43004",
    "propertyType": "Single Family",
    "purchasePrice": 200000,
    "monthlyRent": 2200
  },
  "fundingSource": "conventional"
}`

func testHTTP(ctx context.Context, t *testing.T, orch *orchestrator.Orchestrator, rdb *database.RedisClient, log logger.Logger) {
	t.Log("🌐 Testing HTTP API...")

	tiers := []ratelimit.Tier{
		{Name: config.TierGeneral, Limit: 100, Window: time.Minute},
		{Name: config.TierExpensive, Limit: 2, Window: time.Minute},
	}
	admission := ratelimit.NewAdmission(ratelimit.NewRegistry(tiers, ratelimit.RedisFactory(rdb)), log)
	srv := server.New(orch, server.Options{
		Admission: admission,
		Checks:    []server.ReadinessCheck{{Name: "redis", Check: rdb.Ping}},
	}, log)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Unique client per run so a previous run's window does not interfere.
	client := fmt.Sprintf("10.99.%d.%d", time.Now().Unix()%250, time.Now().UnixNano()%250)

	post := func() *http.Response {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/v1/analyses", strings.NewReader(dealBody))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", client)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result models.AnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.Equal(t, "E2E Buy Box", result.CriteriaName)
	assert.True(t, result.MeetsCriteria)
	assert.Equal(t, "2", resp.Header.Get(server.HeaderLimit))
	assert.Equal(t, "1", resp.Header.Get(server.HeaderRemaining))

	resp = post()
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post()
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(server.HeaderRetryAfter))
	t.Log("✅ Rate limit enforced through Redis")

	ready, err := http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

// ==========================
// 4. analyze-deal worker logic
// ==========================
func testWorkerExecute(ctx context.Context, t *testing.T, orch *orchestrator.Orchestrator, log logger.Logger) {
	t.Log("⚙️ Testing analyze-deal worker...")

	handler := analyzedeal.NewHandler(&analyzedeal.Config{Timeout: 30 * time.Second}, orch, log)
	input, err := analyzedeal.ParseInput(dealBody)
	require.NoError(t, err)

	out, err := handler.Execute(ctx, input)
	require.NoError(t, err)
	assert.NotEmpty(t, out.AnalysisID)
	assert.True(t, out.MeetsCriteria)
	assert.Greater(t, out.MonthlyCashFlow, 0.0)
	t.Log("✅ analyze-deal worker executed")
}
