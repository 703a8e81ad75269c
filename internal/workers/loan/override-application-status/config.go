// internal/workers/loan/override-application-status/config.go
package overrideapplicationstatus

import "time"

type Config struct {
	Timeout time.Duration
	// DefaultActor is recorded when the job does not name who made the change.
	DefaultActor string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		DefaultActor: "admin",
	}
}
