package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"songdub/internal/artifacts"
	"songdub/internal/config"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/services"
	"songdub/internal/textutil"
)

// Request describes a dubbing submission before a job exists.
type Request struct {
	SourceName string
	Language   string
	Start      float64
	End        float64
}

// Normalize validates the request and resolves its language against langs.
// An empty language selects fallback. End == 0 means "to the end of the
// file".
func (r Request) Normalize(langs *language.Set, fallback string) (Request, error) {
	if strings.TrimSpace(r.Language) == "" {
		r.Language = fallback
	}
	code, err := langs.Normalize(r.Language)
	if err != nil {
		return r, err
	}
	r.Language = code
	r.SourceName = textutil.SanitizeFileName(filepath.Base(strings.TrimSpace(r.SourceName)))

	switch {
	case math.IsNaN(r.Start) || math.IsNaN(r.End) || math.IsInf(r.Start, 0) || math.IsInf(r.End, 0):
		return r, windowError("window bounds must be finite")
	case r.Start < 0 || r.End < 0:
		return r, windowError("window bounds must not be negative")
	case r.End > 0 && r.End-r.Start < jobs.MinSegmentDuration:
		return r, windowError(fmt.Sprintf("window end %.2f must follow start %.2f", r.End, r.Start))
	}
	return r, nil
}

func windowError(msg string) error {
	return services.Wrap(services.ErrValidation, "", "window", "invalid window", fmt.Errorf("%s", msg))
}

// Admit creates a queued job for req and stores the uploaded body in its
// directory. The request must already be normalized. On failure nothing is
// left behind.
func Admit(ctx context.Context, cfg *config.Config, registry jobs.Registry, req Request, body io.Reader) (*jobs.Job, error) {
	job := jobs.New(req.Language, req.SourceName, req.Start, req.End)
	layout := artifacts.NewLayout(cfg.JobsDir(), job.ID)
	if err := layout.Ensure(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "admit", "create job dir", err)
	}
	if err := writeUpload(layout.Upload(req.SourceName), body); err != nil {
		_ = os.RemoveAll(layout.Root)
		return nil, services.Wrap(services.ErrTransient, "", "admit", "store upload", err)
	}
	if err := registry.Create(ctx, job); err != nil {
		_ = os.RemoveAll(layout.Root)
		return nil, services.Wrap(services.ErrTransient, "", "admit", "record job", err)
	}
	return job, nil
}

func writeUpload(path string, body io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := io.Copy(file, body)
	if err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("upload is empty")
	}
	return nil
}
