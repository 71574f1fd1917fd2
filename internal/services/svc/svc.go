// Package svc converts the proxy vocal line toward a reference singer's
// timbre. The reference singer is picked by comparing the stitched proxy
// against per-speaker clip profiles.
package svc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"songdub/internal/audio"
	"songdub/internal/logging"
	"songdub/internal/services"
	"songdub/internal/timbre"
)

// queryWindow is the span of the vocal stem compared against speaker profiles.
const queryWindow = 12.0

// Config controls conversion and speaker selection.
type Config struct {
	Enabled        bool
	Template       []string
	SpeakersDir    string
	DefaultSpeaker string
	Timeout        time.Duration
}

// Service implements speaker selection and voice conversion.
type Service struct {
	cfg     Config
	matcher *timbre.Matcher
	runner  services.CommandRunner
	logger  *slog.Logger
}

// New creates a converter backed by a timbre matcher over cfg.SpeakersDir.
func New(cfg Config, logger *slog.Logger) *Service {
	logger = logging.NewComponentLogger(logger, "svc")
	return &Service{
		cfg:     cfg,
		matcher: timbre.NewMatcher(cfg.SpeakersDir, nil, logger),
		runner:  services.ExecRunner,
		logger:  logger,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner services.CommandRunner) {
	s.runner = runner
}

// SelectSpeaker returns the reference speaker closest to the proxy. When
// matching is impossible it still returns a usable speaker (the configured
// default if present, else the first one found) together with the reason.
func (s *Service) SelectSpeaker(ctx context.Context, proxy string) (string, error) {
	speakers, err := s.matcher.Speakers()
	if err != nil || len(speakers) == 0 {
		if err == nil {
			err = fmt.Errorf("no speakers under %s", s.cfg.SpeakersDir)
		}
		return s.cfg.DefaultSpeaker, fmt.Errorf("speaker selection: %w", err)
	}
	query, err := audio.ReadWAV(proxy)
	if err != nil {
		return s.fallback(speakers), fmt.Errorf("speaker selection: %w", err)
	}
	if secs := query.Seconds(); secs > queryWindow {
		mid := secs / 2
		query = query.Slice(mid-queryWindow/2, mid+queryWindow/2)
	}
	best, err := s.matcher.Select(query, speakers)
	if err != nil {
		return s.fallback(speakers), fmt.Errorf("speaker selection: %w", err)
	}
	return best, nil
}

func (s *Service) fallback(speakers []string) string {
	if s.cfg.DefaultSpeaker != "" && slices.Contains(speakers, s.cfg.DefaultSpeaker) {
		return s.cfg.DefaultSpeaker
	}
	return speakers[0]
}

// Convert runs voice conversion from in to out. With conversion disabled the
// input is copied unchanged.
func (s *Service) Convert(ctx context.Context, in, out, speaker string) error {
	const stage = "svc"
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stage, "convert", "create output dir", err)
	}
	if !s.cfg.Enabled || len(s.cfg.Template) == 0 {
		s.logger.Info("voice conversion disabled; copying proxy vocals")
		if err := copyFile(in, out); err != nil {
			return services.Wrap(services.ErrExternalTool, stage, "convert", "copy proxy vocals", err)
		}
		return nil
	}

	argv := services.ExpandTemplate(s.cfg.Template, map[string]string{
		"in":      in,
		"out":     out,
		"speaker": speaker,
	})
	started := time.Now()
	if _, err := services.RunWithTimeout(ctx, s.runner, s.cfg.Timeout, argv[0], argv[1:]...); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, "convert", "voice conversion failed", err)
	}
	if _, err := os.Stat(out); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, "convert", "converter produced no output", err)
	}
	s.logger.Info("voice converted", logging.Args(
		logging.String("speaker", speaker),
		logging.Duration("elapsed", time.Since(started)),
	)...)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
