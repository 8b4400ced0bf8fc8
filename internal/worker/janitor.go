package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"workledger/internal/application/reconciler"
)

// SessionJanitor periodically evicts reconciler sessions that have gone idle.
// A session that is never evicted keeps its feed subscription alive forever,
// so the janitor bounds memory held for disconnected clients.
type SessionJanitor struct {
	registry *reconciler.Registry
	logger   *zap.Logger

	sweepInterval time.Duration
	sessionTTL    time.Duration

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSessionJanitor creates a session janitor.
func NewSessionJanitor(registry *reconciler.Registry, sweepInterval, sessionTTL time.Duration, logger *zap.Logger) *SessionJanitor {
	return &SessionJanitor{
		registry:      registry,
		logger:        logger,
		sweepInterval: sweepInterval,
		sessionTTL:    sessionTTL,
	}
}

// Start starts the sweep loop.
func (j *SessionJanitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		return fmt.Errorf("session janitor is already running")
	}

	j.ctx, j.cancel = context.WithCancel(ctx)
	j.isRunning = true

	j.logger.Info("SessionJanitor started",
		zap.Duration("sweep_interval", j.sweepInterval),
		zap.Duration("session_ttl", j.sessionTTL))

	go j.sweepLoop()

	return nil
}

// Stop stops the sweep loop.
func (j *SessionJanitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.isRunning {
		return
	}

	j.isRunning = false
	if j.cancel != nil {
		j.cancel()
	}

	j.logger.Info("SessionJanitor stopped")
}

// Name returns the worker name for identification.
func (j *SessionJanitor) Name() string {
	return "SessionJanitor"
}

func (j *SessionJanitor) sweepLoop() {
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			j.logger.Debug("Sweep loop context cancelled")
			return

		case <-ticker.C:
			evicted := j.registry.EvictIdle(j.sessionTTL)
			if evicted > 0 {
				j.logger.Info("Idle sessions evicted",
					zap.Int("evicted", evicted),
					zap.Int("remaining", j.registry.Len()))
			}
		}
	}
}
