package database

import (
	"context"
	"fmt"
	"time"

	"loan-workers/internal/common/logger"
)

// Pinger is satisfied by every client in this package.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitForReady pings p until it answers, backing off linearly between
// attempts. Each ping gets its own 5s budget.
func WaitForReady(ctx context.Context, name string, p Pinger, attempts int, delay time.Duration, log logger.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = p.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			log.Info("dependency ready", map[string]interface{}{"dependency": name, "attempt": i})
			return nil
		}
		log.Warn("dependency not ready", map[string]interface{}{
			"dependency": name,
			"attempt":    i,
			"error":      lastErr.Error(),
		})
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(i)):
		}
	}
	return fmt.Errorf("%s not ready after %d attempts: %w", name, attempts, lastErr)
}
