// Package worker runs the service's background loops. Workers are registered
// during wiring in main, started together, and stopped in reverse order on
// shutdown.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Worker is one background loop with an explicit lifecycle.
type Worker interface {
	// Start launches the loop; it must return promptly and run in its own
	// goroutine until Stop or context cancellation.
	Start(ctx context.Context) error
	Stop()
	Name() string
}

// Manager owns worker startup and shutdown ordering. Register everything
// before StartAll; registration and start/stop are driven from the main
// goroutine only.
type Manager struct {
	logger  *zap.Logger
	workers []Worker

	// started counts the workers currently running, so a failed StartAll and
	// a repeated StopAll never stop a worker that was never started.
	started int
}

// NewManager creates an empty worker manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register queues a worker for StartAll.
func (m *Manager) Register(w Worker) {
	m.workers = append(m.workers, w)
}

// StartAll starts the registered workers in registration order. When one
// fails to start, the workers already running are stopped again in reverse
// before the error is returned, so a half-started service never leaks a loop.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, w := range m.workers {
		if err := w.Start(ctx); err != nil {
			m.logger.Error("Worker failed to start",
				zap.String("worker", w.Name()),
				zap.Error(err))
			m.StopAll()
			return fmt.Errorf("start worker %s: %w", w.Name(), err)
		}
		m.started++
		m.logger.Info("Worker started", zap.String("worker", w.Name()))
	}
	return nil
}

// StopAll stops the running workers in reverse start order. Calling it again
// after everything stopped is a no-op.
func (m *Manager) StopAll() {
	for i := m.started - 1; i >= 0; i-- {
		w := m.workers[i]
		w.Stop()
		m.logger.Info("Worker stopped", zap.String("worker", w.Name()))
	}
	m.started = 0
}
