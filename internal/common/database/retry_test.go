package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-workers/internal/common/config"
	"loan-workers/internal/common/logger"
)

type flakyPinger struct {
	failures int
	calls    int
}

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.calls++
	if p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

func TestWaitForReady(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{name: "ready immediately", failures: 0, attempts: 3, wantCalls: 1},
		{name: "ready after retries", failures: 2, attempts: 3, wantCalls: 3},
		{name: "never ready", failures: 5, attempts: 3, wantErr: true, wantCalls: 3},
		{name: "zero attempts still pings once", failures: 0, attempts: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &flakyPinger{failures: tt.failures}
			err := WaitForReady(context.Background(), "postgres", p, tt.attempts, time.Millisecond, logger.NewTestLogger(t))

			if tt.wantErr {
				assert.ErrorContains(t, err, "postgres not ready after 3 attempts")
				assert.ErrorContains(t, err, "connection refused")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, p.calls)
		})
	}
}

func TestWaitForReady_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &flakyPinger{failures: 10}
	err := WaitForReady(ctx, "redis", p, 5, time.Second, logger.NewNoOpLogger())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, WaitForReady(context.Background(), "redis", client, 2, time.Millisecond, logger.NewTestLogger(t)))
}
