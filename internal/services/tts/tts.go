// Package tts renders translated lyric lines to speech through a configurable
// command template.
package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"songdub/internal/services"
)

// Service synthesizes speech by expanding a command template with the
// placeholders {text}, {voice}, {lang} and {out}.
type Service struct {
	template []string
	voices   map[string]string
	timeout  time.Duration
	runner   services.CommandRunner
}

// New returns a synthesizer. voices maps language codes to voice names.
func New(template []string, voices map[string]string, timeout time.Duration) *Service {
	return &Service{
		template: append([]string(nil), template...),
		voices:   voices,
		timeout:  timeout,
		runner:   services.ExecRunner,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner services.CommandRunner) {
	s.runner = runner
}

// Synthesize writes speech for text to out.
func (s *Service) Synthesize(ctx context.Context, text, lang, out string) error {
	const stage = "proxy_tts"
	if len(s.template) == 0 {
		return services.Wrap(services.ErrConfiguration, stage, "tts", "tts command not configured", nil)
	}
	voice, ok := s.voices[lang]
	if !ok {
		return services.Wrap(services.ErrValidation, stage, "tts", fmt.Sprintf("no voice for language %q", lang), nil)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stage, "tts", "create output dir", err)
	}

	argv := services.ExpandTemplate(s.template, map[string]string{
		"text":  text,
		"voice": voice,
		"lang":  lang,
		"out":   out,
	})
	if _, err := services.RunWithTimeout(ctx, s.runner, s.timeout, argv[0], argv[1:]...); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, "tts", "speech synthesis failed", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, stage, "tts", "synthesizer produced no audio", err)
	}
	return nil
}
