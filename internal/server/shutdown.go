package server

import (
	"context"
	"time"
)

// ShutdownCoordinator manages graceful shutdown for long-lived push
// connections. Cancelling the base context tells every websocket handler
// to close; the grace period gives their close frames time to flush
// before the HTTP server is shut down.
type ShutdownCoordinator struct {
	baseCtx     context.Context
	cancel      context.CancelFunc
	gracePeriod time.Duration
}

func NewShutdownCoordinator(gracePeriod time.Duration) *ShutdownCoordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &ShutdownCoordinator{
		baseCtx:     ctx,
		cancel:      cancel,
		gracePeriod: gracePeriod,
	}
}

// BaseContext returns the context every HTTP request derives from.
func (sc *ShutdownCoordinator) BaseContext() context.Context {
	return sc.baseCtx
}

// InitiateShutdown cancels the base context and blocks for the grace
// period so active connections can close cleanly.
func (sc *ShutdownCoordinator) InitiateShutdown() {
	sc.cancel()
	time.Sleep(sc.gracePeriod)
}
