// internal/workers/loan/search-evaluations/config.go
package searchevaluations

import "time"

type Config struct {
	Timeout     time.Duration
	DefaultSize int
	MaxSize     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     15 * time.Second,
		DefaultSize: 20,
		MaxSize:     100,
	}
}
