package jobs

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"songdub/internal/logging"
	"songdub/internal/services"
)

// Tracker serializes all mutations of one job and persists each change.
type Tracker struct {
	mu         sync.Mutex
	job        *Job
	registry   Registry
	logger     *slog.Logger
	onTerminal func(Job)
}

// NewTracker wraps job, which must already exist in registry.
func NewTracker(job *Job, registry Registry, logger *slog.Logger) *Tracker {
	return &Tracker{
		job:      job.Clone(),
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "jobs").With(logging.String(logging.FieldJobID, job.ID)),
	}
}

// OnTerminal registers fn to run once, after the job reaches done or error.
func (t *Tracker) OnTerminal(fn func(Job)) {
	t.mu.Lock()
	t.onTerminal = fn
	t.mu.Unlock()
}

// Snapshot returns a copy of the current record.
func (t *Tracker) Snapshot() Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.job.Clone()
}

// ID returns the tracked job ID.
func (t *Tracker) ID() string {
	return t.job.ID
}

// Advance moves the job to status with the given stage label. Progress below
// the current value is ignored. Terminal jobs are left untouched.
func (t *Tracker) Advance(ctx context.Context, status Status, stage string, progress int) error {
	return t.mutate(ctx, func(job *Job) bool {
		if job.Status.Terminal() || status.Terminal() {
			return false
		}
		if stage == "" {
			stage = string(status)
		}
		changed := job.Status != status || job.Stage != stage
		job.Status = status
		job.Stage = stage
		if progress > job.Progress {
			job.Progress = min(progress, ProgressDone)
			changed = true
		}
		if changed {
			t.logger.Info("job advanced", logging.Args(
				logging.String(logging.FieldStage, string(status)),
				logging.String("label", stage),
				logging.Int("progress", job.Progress),
			)...)
		}
		return changed
	})
}

// SegmentDone records that done of total segments have rendered.
func (t *Tracker) SegmentDone(ctx context.Context, done, total int) error {
	return t.Advance(ctx, StatusProxyTTS, SegmentStage(done, total), SegmentProgress(done, total))
}

// Result applies fn to the job's results.
func (t *Tracker) Result(ctx context.Context, fn func(*Results)) error {
	return t.mutate(ctx, func(job *Job) bool {
		if job.Status.Terminal() {
			return false
		}
		fn(&job.Results)
		return true
	})
}

// Note records a soft failure of kind. The first note of each kind wins.
// Notes are accepted on terminal jobs too.
func (t *Tracker) Note(ctx context.Context, kind NoteKind, text string) error {
	text = strings.TrimSpace(text)
	return t.mutate(ctx, func(job *Job) bool {
		field := job.Notes.field(kind)
		if field == nil || text == "" || *field != "" {
			return false
		}
		*field = text
		logging.WarnWithContext(t.logger, "job degraded", "job_note",
			logging.String("note", string(kind)),
			logging.String("detail", text),
		)
		return true
	})
}

// Fail moves the job to error with err's message. Results gathered so far
// are kept.
func (t *Tracker) Fail(ctx context.Context, err error) error {
	details := services.Details(err)
	return t.terminate(ctx, func(job *Job) {
		job.Status = StatusError
		job.Stage = string(StatusError)
		job.Error = details.Message
		if job.Error == "" {
			job.Error = "job failed"
		}
		logging.ErrorWithContext(t.logger, "job failed", "job_failed", append(
			logging.ErrorDetails(err),
			logging.String(logging.FieldStage, details.Stage),
		)...)
	})
}

// Complete moves the job to done at 100%.
func (t *Tracker) Complete(ctx context.Context) error {
	return t.terminate(ctx, func(job *Job) {
		job.Status = StatusDone
		job.Stage = string(StatusDone)
		job.Progress = ProgressDone
		t.logger.Info("job completed", logging.Args(
			logging.Int("segments", job.Results.SegmentCount),
			logging.String("voice", job.Results.SelectedVoice),
		)...)
	})
}

func (t *Tracker) terminate(ctx context.Context, apply func(*Job)) error {
	var fire func(Job)
	var snapshot Job
	err := t.mutate(ctx, func(job *Job) bool {
		if job.Status.Terminal() {
			return false
		}
		apply(job)
		fire = t.onTerminal
		snapshot = *job.Clone()
		return true
	})
	if fire != nil {
		fire(snapshot)
	}
	return err
}

// mutate applies fn under the lock and persists the job when fn reports a
// change. The in-memory record keeps the change when the save fails; the next
// successful save brings the registry up to date.
func (t *Tracker) mutate(ctx context.Context, fn func(*Job) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !fn(t.job) {
		return nil
	}
	t.job.UpdatedAt = time.Now().UTC()
	return t.registry.Save(ctx, t.job)
}
