package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"songdub/internal/config"
	"songdub/internal/jobs"
	"songdub/internal/logging"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("pipeline: job queue full")
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("pipeline: manager not running")
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, job *jobs.Job) error
}

// Manager runs at most max_concurrent_jobs jobs at once, pulling from a
// buffered backlog of queue_size jobs.
type Manager struct {
	runner  Runner
	workers int
	queue   chan *jobs.Job
	logger  *slog.Logger

	active atomic.Int32

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a manager around runner.
func NewManager(cfg *config.Config, runner Runner, logger *slog.Logger) *Manager {
	return &Manager{
		runner:  runner,
		workers: max(cfg.Pipeline.MaxConcurrentJobs, 1),
		queue:   make(chan *jobs.Job, max(cfg.Pipeline.QueueSize, 1)),
		logger:  logging.NewComponentLogger(logger, "manager"),
	}
}

// Start launches the job workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	for range m.workers {
		go m.work(runCtx)
	}
	m.logger.Info("pipeline started", logging.Args(logging.Int("workers", m.workers))...)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit. Jobs still in
// the backlog stay queued in the registry.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// Submit enqueues job without blocking.
func (m *Manager) Submit(job *jobs.Job) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return ErrNotRunning
	}
	select {
	case m.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Active returns the number of jobs currently running.
func (m *Manager) Active() int {
	return int(m.active.Load())
}

// Backlog returns the number of jobs waiting for a worker.
func (m *Manager) Backlog() int {
	return len(m.queue)
}

func (m *Manager) work(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.queue:
			m.active.Add(1)
			if err := m.runner.Run(ctx, job); err != nil {
				m.logger.Debug("job ended with error", logging.Args(
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
				)...)
			}
			m.active.Add(-1)
		}
	}
}
