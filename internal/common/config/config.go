// internal/common/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig               `mapstructure:"app"`
	Server    ServerConfig            `mapstructure:"server"`
	Camunda   CamundaConfig           `mapstructure:"camunda"`
	Database  DatabaseConfig          `mapstructure:"database"`
	Criteria  CriteriaConfig          `mapstructure:"criteria"`
	Rates     RatesConfig             `mapstructure:"rates"`
	Scoring   ScoringConfig           `mapstructure:"scoring"`
	Alerts    AlertsConfig            `mapstructure:"alerts"`
	Admission AdmissionConfig         `mapstructure:"admission"`
	Auth      AuthConfig              `mapstructure:"auth"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Logging   LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string   `mapstructure:"address" validate:"required"`
	ReadTimeout  int      `mapstructure:"read_timeout" validate:"gte=0"`  // milliseconds
	WriteTimeout int      `mapstructure:"write_timeout" validate:"gte=0"` // milliseconds
	CORSOrigins  []string `mapstructure:"cors_origins"`                   // "*" when empty
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address" validate:"required_if=Enabled true"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as the migrator expects.
func (p PostgresConfig) GetURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:     "/" + p.Database,
		RawQuery: url.Values{"sslmode": {p.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain Configuration Sections ---

// Criteria source kinds.
const (
	CriteriaSourceStatic   = "static"
	CriteriaSourceFile     = "file"
	CriteriaSourcePostgres = "postgres"
)

// CriteriaConfig selects where the investor's buy box comes from.
type CriteriaConfig struct {
	Source       string `mapstructure:"source" validate:"oneof=static file postgres"`
	FilePath     string `mapstructure:"file_path" validate:"required_if=Source file"`
	Profile      string `mapstructure:"profile"`
	CacheTTL     int    `mapstructure:"cache_ttl"`     // milliseconds, 0 disables caching
	FetchTimeout int    `mapstructure:"fetch_timeout"` // milliseconds
}

// RatesConfig holds settings for the mortgage rate lookup.
type RatesConfig struct {
	BaseURL      string  `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey       string  `mapstructure:"api_key"`
	FetchTimeout int     `mapstructure:"fetch_timeout"` // milliseconds
	CacheTTL     int     `mapstructure:"cache_ttl"`     // milliseconds
	FallbackRate float64 `mapstructure:"fallback_rate" validate:"gte=0,lt=1"`
	TermMonths   int     `mapstructure:"term_months" validate:"gt=0"`
}

// ScoringConfig holds settings for the optional narrative assessment.
type ScoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// AlertsConfig holds settings for deal alerts published to SNS.
type AlertsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	TopicARN string `mapstructure:"topic_arn" validate:"required_if=Enabled true"`
	Region   string `mapstructure:"region"`
}

// AuthConfig enables Keycloak token introspection so authenticated callers
// are rate limited per user rather than per address.
type AuthConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	KeycloakURL  string `mapstructure:"keycloak_url" validate:"required_if=Enabled true"`
	Realm        string `mapstructure:"realm" validate:"required_if=Enabled true"`
	ClientID     string `mapstructure:"client_id" validate:"required_if=Enabled true"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

// AdmissionConfig sizes the concurrency pools and rate-limit tiers.
type AdmissionConfig struct {
	Pools PoolsConfig           `mapstructure:"pools"`
	Tiers map[string]TierConfig `mapstructure:"tiers" validate:"dive"`
}

type PoolsConfig struct {
	Light int `mapstructure:"light" validate:"gte=0"`
	Heavy int `mapstructure:"heavy" validate:"gte=0"`
}

type TierConfig struct {
	Limit  int `mapstructure:"limit" validate:"gt=0"`
	Window int `mapstructure:"window" validate:"gt=0"` // milliseconds
}

// WindowDuration returns the window as a time.Duration.
func (t TierConfig) WindowDuration() time.Duration {
	return GetDuration(t.Window)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	Output string `mapstructure:"output"`
}
