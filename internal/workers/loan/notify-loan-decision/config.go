// internal/workers/loan/notify-loan-decision/config.go
package notifyloandecision

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	SenderID     string
	// CountryCode is prefixed to ten digit mobile numbers for SMS.
	CountryCode string
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		CountryCode: "+91",
		Timeout:     30 * time.Second,
	}
}
