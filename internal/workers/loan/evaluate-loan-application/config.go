// internal/workers/loan/evaluate-loan-application/config.go
package evaluateloanapplication

import "time"

type Config struct {
	// Timeout covers the whole evaluator chain. When it expires the run ends
	// FAIL with "evaluation cancelled"; only evaluators wrapped with
	// pipeline.WithTimeout fall back to a degraded verdict instead.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
