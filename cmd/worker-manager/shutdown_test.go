// cmd/worker-manager/shutdown_test.go
package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"loan-workers/internal/common/logger"
	"loan-workers/internal/evaluators"
	"loan-workers/internal/pipeline"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

type fakeWorker struct{ log *callLog }

func (w fakeWorker) Stop() { w.log.add("worker.Stop") }

// fakeServer finishes one in-flight evaluation while shutting down.
type fakeServer struct {
	log      *callLog
	inFlight func()
}

func (s fakeServer) Shutdown(context.Context) error {
	s.log.add("server.Shutdown")
	if s.inFlight != nil {
		s.inFlight()
	}
	return nil
}

type recordingFlusher struct {
	log   *callLog
	inner flusher
}

func (f recordingFlusher) Flush(ctx context.Context) error {
	f.log.add("Flush")
	return f.inner.Flush(ctx)
}

type slowPersister struct {
	saved atomic.Int32
}

func (p *slowPersister) Save(ctx context.Context, _ string, _ pipeline.Result) error {
	select {
	case <-time.After(30 * time.Millisecond):
		p.saved.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestGracefulShutdown_FlushesAfterServerDrains(t *testing.T) {
	calls := &callLog{}
	persister := &slowPersister{}
	orch := pipeline.NewOrchestrator(
		evaluators.Default(pipeline.NewSeededRandom(7)),
		nil,
		pipeline.WithPersister(persister),
		pipeline.WithLogger(logger.NewTestLogger(t)),
	)

	server := fakeServer{log: calls, inFlight: func() {
		orch.Run(context.Background(), pipeline.Application{ID: "app-late", CustomerName: "Asha Rao"})
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	gracefulShutdown(ctx,
		[]stopper{fakeWorker{log: calls}, fakeWorker{log: calls}},
		server,
		recordingFlusher{log: calls, inner: orch},
		zap.NewNop(),
	)

	require.Equal(t, []string{"worker.Stop", "worker.Stop", "server.Shutdown", "Flush"}, calls.calls)
	assert.Equal(t, int32(1), persister.saved.Load())
}
