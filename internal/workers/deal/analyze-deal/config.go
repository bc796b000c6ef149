// internal/workers/deal/analyze-deal/config.go
package analyzedeal

import (
	"time"

	"deal-analyzer/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	c := &Config{Timeout: 60 * time.Second}
	if wcfg.Timeout > 0 {
		c.Timeout = config.GetDuration(wcfg.Timeout)
	}
	return c
}
