// internal/workers/loan/run-loan-workflow/config.go
package runloanworkflow

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
