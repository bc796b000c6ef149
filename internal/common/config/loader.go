// internal/common/config/loader.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Tier names shared with the admission layer.
const (
	TierGeneral   = "general"
	TierExpensive = "expensive"
	TierStrict    = "strict"
)

var validate = validator.New()

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if secrets are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Rates.APIKey == "" {
		cfg.Rates.APIKey = os.Getenv("RATES_API_KEY")
	}
	if cfg.Scoring.APIKey == "" {
		cfg.Scoring.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Auth.ClientSecret == "" {
		cfg.Auth.ClientSecret = os.Getenv("KEYCLOAK_CLIENT_SECRET")
	}
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "deal-analyzer"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60000
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Criteria defaults
	if cfg.Criteria.Source == "" {
		cfg.Criteria.Source = CriteriaSourceStatic
	}
	if cfg.Criteria.Profile == "" {
		cfg.Criteria.Profile = "default"
	}
	if cfg.Criteria.FetchTimeout == 0 {
		cfg.Criteria.FetchTimeout = 2000
	}

	if cfg.Auth.Timeout == 0 {
		cfg.Auth.Timeout = 5000
	}

	// Rate defaults
	if cfg.Rates.FetchTimeout == 0 {
		cfg.Rates.FetchTimeout = 3000
	}
	if cfg.Rates.FallbackRate == 0 {
		cfg.Rates.FallbackRate = 0.07
	}
	if cfg.Rates.TermMonths == 0 {
		cfg.Rates.TermMonths = 360
	}

	// Scoring defaults
	if cfg.Scoring.Model == "" {
		cfg.Scoring.Model = "gpt-4o-mini"
	}
	if cfg.Scoring.Timeout == 0 {
		cfg.Scoring.Timeout = 20000
	}

	if cfg.Alerts.Region == "" {
		cfg.Alerts.Region = "us-east-1"
	}

	// Admission defaults
	if cfg.Admission.Pools.Light == 0 {
		cfg.Admission.Pools.Light = 8
	}
	if cfg.Admission.Pools.Heavy == 0 {
		cfg.Admission.Pools.Heavy = 2
	}
	if cfg.Admission.Tiers == nil {
		cfg.Admission.Tiers = map[string]TierConfig{}
	}
	for name, def := range DefaultTiers() {
		tier, ok := cfg.Admission.Tiers[name]
		if !ok {
			cfg.Admission.Tiers[name] = def
			continue
		}
		if tier.Limit == 0 {
			tier.Limit = def.Limit
		}
		if tier.Window == 0 {
			tier.Window = def.Window
		}
		cfg.Admission.Tiers[name] = tier
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// DefaultTiers returns the built-in rate-limit tiers.
func DefaultTiers() map[string]TierConfig {
	return map[string]TierConfig{
		TierGeneral:   {Limit: 100, Window: 15 * 60 * 1000},
		TierExpensive: {Limit: 10, Window: 60 * 1000},
		TierStrict:    {Limit: 5, Window: 15 * 60 * 1000},
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%s failed on %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}

	if cfg.Criteria.Source == CriteriaSourcePostgres && cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required for criteria.source=postgres")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
