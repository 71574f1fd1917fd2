// Package demucs separates a song into vocal and instrumental stems with the
// Demucs two-stem model.
package demucs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"songdub/internal/logging"
	"songdub/internal/services"
)

// Stem file names written to the output directory.
const (
	VocalsFile       = "vocals.wav"
	InstrumentalFile = "instrumental.wav"
)

// Service runs `python -m demucs`.
type Service struct {
	python  string
	model   string
	timeout time.Duration
	runner  services.CommandRunner
	logger  *slog.Logger
}

// New returns a separator using the given interpreter and model name.
func New(python, model string, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		python:  python,
		model:   model,
		timeout: timeout,
		runner:  services.ExecRunner,
		logger:  logging.NewComponentLogger(logger, "demucs"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner services.CommandRunner) {
	s.runner = runner
}

// Args builds the demucs invocation for input writing under outDir.
func (s *Service) Args(input, outDir string) []string {
	return []string{"-m", "demucs", "-n", s.model, "--two-stems", "vocals", "--out", outDir, input}
}

// Separate writes vocals.wav and instrumental.wav into outDir.
func (s *Service) Separate(ctx context.Context, input, outDir string) (services.Stems, error) {
	const stage = "separating"
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return services.Stems{}, services.Wrap(services.ErrConfiguration, stage, "prepare", "create stem dir", err)
	}
	started := time.Now()
	if _, err := services.RunWithTimeout(ctx, s.runner, s.timeout, s.python, s.Args(input, outDir)...); err != nil {
		return services.Stems{}, services.Wrap(services.ErrExternalTool, stage, "demucs", "separation failed", err)
	}

	// demucs writes <out>/<model>/<track>/{vocals,no_vocals}.wav
	track := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	produced := filepath.Join(outDir, s.model, track)
	stems := services.Stems{
		Vocals:       filepath.Join(outDir, VocalsFile),
		Instrumental: filepath.Join(outDir, InstrumentalFile),
	}
	moves := [][2]string{
		{filepath.Join(produced, "vocals.wav"), stems.Vocals},
		{filepath.Join(produced, "no_vocals.wav"), stems.Instrumental},
	}
	for _, move := range moves {
		if err := os.Rename(move[0], move[1]); err != nil {
			return services.Stems{}, services.Wrap(services.ErrExternalTool, stage, "demucs",
				fmt.Sprintf("expected stem %s", filepath.Base(move[0])), err)
		}
	}
	_ = os.RemoveAll(filepath.Join(outDir, s.model))

	s.logger.Info("stems separated", logging.Args(
		logging.String("model", s.model),
		logging.Duration("elapsed", time.Since(started)),
	)...)
	return stems, nil
}
