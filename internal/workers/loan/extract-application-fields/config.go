// internal/workers/loan/extract-application-fields/config.go
package extractapplicationfields

import "time"

type Config struct {
	Timeout time.Duration
	// MaxMessageLength bounds the text a single job may carry.
	MaxMessageLength int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:          5 * time.Second,
		MaxMessageLength: 4000,
	}
}
