// Package whisper transcribes the separated vocal stem with the whisper CLI
// and converts its JSON transcript into job segments.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"songdub/internal/jobs"
	"songdub/internal/logging"
	"songdub/internal/services"
)

// Config controls the whisper invocation.
type Config struct {
	Command  string
	Model    string
	Device   string
	Language string
	Timeout  time.Duration
}

// Service runs whisper and loads its transcript.
type Service struct {
	cfg    Config
	runner services.CommandRunner
	logger *slog.Logger
}

// New creates a transcription service.
func New(cfg Config, logger *slog.Logger) *Service {
	if cfg.Command == "" {
		cfg.Command = "whisper"
	}
	if cfg.Model == "" {
		cfg.Model = "medium"
	}
	return &Service{cfg: cfg, runner: services.ExecRunner, logger: logging.NewComponentLogger(logger, "whisper")}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner services.CommandRunner) {
	s.runner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

func (s *Service) buildArgs(source, outputDir string) []string {
	args := []string{
		source,
		"--model", s.cfg.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
		"--word_timestamps", "True",
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	if s.cfg.Device != "" {
		args = append(args, "--device", s.cfg.Device)
	}
	return args
}

// Transcribe runs whisper on vocals and returns the non-empty segments with
// times rounded to 10 ms. The JSON transcript is written next to the input.
func (s *Service) Transcribe(ctx context.Context, vocals string) ([]jobs.Segment, error) {
	const stage = "transcribing"
	if vocals == "" {
		return nil, services.Wrap(services.ErrValidation, stage, "transcribe", "source path required", nil)
	}
	outputDir := filepath.Join(filepath.Dir(vocals), "transcript")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stage, "transcribe", "ensure output dir", err)
	}

	started := time.Now()
	if _, err := services.RunWithTimeout(ctx, s.runner, s.cfg.Timeout, s.cfg.Command, s.buildArgs(vocals, outputDir)...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage, "whisper", "transcription failed", err)
	}

	base := strings.TrimSuffix(filepath.Base(vocals), filepath.Ext(vocals))
	segments, err := LoadSegments(filepath.Join(outputDir, base+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage, "whisper", "read transcript", err)
	}
	s.logger.Info("transcription complete", logging.Args(
		logging.String("model", s.cfg.Model),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)),
	)...)
	return segments, nil
}

type transcript struct {
	Language string              `json:"language"`
	Segments []transcriptSegment `json:"segments"`
}

type transcriptSegment struct {
	Start float64          `json:"start"`
	End   float64          `json:"end"`
	Text  string           `json:"text"`
	Words []transcriptWord `json:"words"`
}

type transcriptWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// LoadSegments parses a whisper JSON transcript.
func LoadSegments(path string) ([]jobs.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSegments(data)
}

// ParseSegments converts whisper JSON output into indexed segments. Segments
// whose text is blank are dropped.
func ParseSegments(data []byte) ([]jobs.Segment, error) {
	var payload transcript
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}
	segments := make([]jobs.Segment, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out := jobs.Segment{
			Index: len(segments),
			Start: round2(seg.Start),
			End:   round2(seg.End),
			Text:  text,
		}
		for _, w := range seg.Words {
			word := strings.TrimSpace(w.Word)
			if word == "" {
				continue
			}
			out.Words = append(out.Words, jobs.Word{Text: word, Start: round2(w.Start), End: round2(w.End)})
		}
		segments = append(segments, out)
	}
	return segments, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
