// cmd/worker-manager/shutdown.go
package main

import (
	"context"

	"go.uber.org/zap"
)

type stopper interface {
	Stop()
}

type httpShutdowner interface {
	Shutdown(ctx context.Context) error
}

type flusher interface {
	Flush(ctx context.Context) error
}

// gracefulShutdown stops every producer of evaluation results before waiting
// on pending saves: job workers first, then in-flight HTTP requests.
func gracefulShutdown(ctx context.Context, workers []stopper, server httpShutdowner, results flusher, log *zap.Logger) {
	for _, w := range workers {
		w.Stop()
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := results.Flush(ctx); err != nil {
		log.Error("pending persistence did not finish", zap.Error(err))
	}
}
