package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"songdub/internal/api"
	"songdub/internal/artifacts"
	"songdub/internal/config"
	"songdub/internal/deps"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/logging"
	"songdub/internal/pipeline"
	"songdub/internal/preflight"
	"songdub/internal/services"
)

// LockFileName guards the data directory against a second daemon.
const LockFileName = "songdubd.lock"

// Daemon owns the job store, the pipeline manager and the HTTP server.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobs.Store
	manager *pipeline.Manager
	langs   *language.Set
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool

	checksMu sync.RWMutex
	checks   []preflight.Result
	deps     []api.DependencyStatus
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, manager *pipeline.Manager, langs *language.Set, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || langs == nil {
		return nil, errors.New("daemon requires config, store, pipeline manager, and language set")
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, LockFileName)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		langs:    langs,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the lock, fails interrupted jobs, and launches the pipeline
// and the HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another songdub daemon instance is already running")
	}

	if n, err := d.store.FailInterrupted(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		logging.WarnWithContext(d.logger, "interrupted jobs marked failed", "jobs_interrupted",
			logging.Int64("jobs", n),
			logging.String(logging.FieldErrorHint, "resubmit the affected songs"),
			logging.String(logging.FieldImpact, "jobs from the previous run will not finish"),
		)
	}

	d.runChecks(ctx)

	if err := d.manager.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start pipeline: %w", err)
	}
	if err := d.api.start(ctx); err != nil {
		d.manager.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("songdub daemon started", logging.Args(logging.String("lock", d.lockPath))...)
	return nil
}

// Stop shuts the HTTP server, cancels running jobs and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("songdub daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Submit validates req, stores the upload and queues the job. When the
// backlog is full the job is discarded and pipeline.ErrQueueFull returned.
func (d *Daemon) Submit(ctx context.Context, req pipeline.Request, body io.Reader) (*jobs.Job, error) {
	if !d.running.Load() {
		return nil, pipeline.ErrNotRunning
	}
	req, err := req.Normalize(d.langs, d.cfg.Languages.Default)
	if err != nil {
		return nil, err
	}
	job, err := pipeline.Admit(ctx, d.cfg, d.store, req, body)
	if err != nil {
		return nil, err
	}
	if err := d.manager.Submit(job); err != nil {
		d.discard(ctx, job.ID)
		return nil, err
	}
	logging.WithContext(ctx, d.logger).Info("job queued", logging.Args(
		logging.String(logging.FieldJobID, job.ID),
		logging.String("language", job.Language),
		logging.String("source", job.SourceName),
	)...)
	return job, nil
}

func (d *Daemon) discard(ctx context.Context, id string) {
	if err := d.store.Remove(ctx, id); err != nil {
		d.logger.Warn("discard rejected job", logging.Args(logging.String(logging.FieldJobID, id), logging.Error(err))...)
	}
	_ = os.RemoveAll(artifacts.NewLayout(d.cfg.JobsDir(), id).Root)
}

// Job returns one job record.
func (d *Daemon) Job(ctx context.Context, id string) (*jobs.Job, error) {
	return d.store.Get(ctx, id)
}

// Jobs lists job records newest first.
func (d *Daemon) Jobs(ctx context.Context) ([]*jobs.Job, error) {
	return d.store.List(ctx)
}

// Languages returns the supported target languages.
func (d *Daemon) Languages() api.LanguagesResponse {
	return api.LanguagesResponse{Default: d.cfg.Languages.Default, Languages: d.langs.Supported()}
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	counts, err := d.store.Counts(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	d.checksMu.RLock()
	checks := append([]preflight.Result(nil), d.checks...)
	dependencies := append([]api.DependencyStatus(nil), d.deps...)
	d.checksMu.RUnlock()
	if len(dependencies) == 0 {
		dependencies = api.FromDependencies(preflight.CheckSystemDeps(d.cfg))
	}
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DataDir:      d.cfg.Paths.DataDir,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Pipeline: api.PipelineStatus{
			Workers:   d.cfg.Pipeline.MaxConcurrentJobs,
			Active:    d.manager.Active(),
			Backlog:   d.manager.Backlog(),
			QueueSize: d.cfg.Pipeline.QueueSize,
		},
		Jobs:         counts,
		Dependencies: dependencies,
		Checks:       checks,
	}, nil
}

// runChecks probes the external tools and runs the preflight checks once,
// logging failures. Status serves the cached results.
func (d *Daemon) runChecks(ctx context.Context) {
	statuses := preflight.ProbeSystemDeps(ctx, d.cfg, nil)
	for _, missing := range deps.MissingRequired(statuses) {
		logging.WarnWithContext(d.logger, "required tool unavailable", "dependency_missing",
			logging.String("dependency", missing.Name),
			logging.String("detail", missing.Detail),
			logging.String(logging.FieldImpact, "jobs will fail at the stage that needs it"),
		)
	}
	results := preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "jobs may fail at the affected stage"),
		)
	}
	d.checksMu.Lock()
	d.checks = results
	d.deps = api.FromDependencies(statuses)
	d.checksMu.Unlock()
}

// fileError classifies artifact lookups for HTTP responses.
func fileError(err error) error {
	return services.Wrap(services.ErrNotFound, "", "files", "artifact lookup", err)
}
