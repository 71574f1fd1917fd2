package translator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/time/rate"

	"songdub/internal/audio"
	"songdub/internal/jobs"
	"songdub/internal/logging"
	"songdub/internal/services"
)

const systemPrompt = `You translate song lyrics for dubbing. Translate the line from %s to %s.
Keep the meaning and mood, and keep the syllable count close to the original so the line
can be sung over the same melody. Respond with JSON only: {"translation": "<text>"}.`

const contextPrompt = `
The lines are sung on the track %s, which runs %.1f seconds. Make the translation fit its rhythm and mood.`

// Completer is the transport used by Translator.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tunes translation fan-out.
type Options struct {
	SourceLanguage string
	Workers        int
	// RequestsPerSecond limits request starts; zero disables limiting.
	RequestsPerSecond float64
}

// Translator translates segments concurrently.
type Translator struct {
	client  Completer
	source  string
	workers int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a translator on top of client.
func New(client Completer, opts Options, logger *slog.Logger) *Translator {
	workers := max(opts.Workers, 1)
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), workers)
	}
	source := strings.TrimSpace(opts.SourceLanguage)
	if source == "" {
		source = "en"
	}
	return &Translator{
		client:  client,
		source:  source,
		workers: workers,
		limiter: limiter,
		logger:  logging.NewComponentLogger(logger, "translator"),
	}
}

// Translate returns copies of segs with Translated and Language set. Segments
// with empty text stay empty. The first failed request fails the call.
// contextAudio, when set, is described in the system prompt.
func (t *Translator) Translate(ctx context.Context, segs []jobs.Segment, contextAudio, target string) ([]jobs.Segment, error) {
	out := make([]jobs.Segment, len(segs))
	copy(out, segs)
	prompt := fmt.Sprintf(systemPrompt, languageName(t.source), languageName(target)) + t.describe(contextAudio)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, t.workers)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i := range out {
		out[i].Language = target
		text := strings.TrimSpace(out[i].Text)
		if text == "" {
			out[i].Translated = ""
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()

			translated, err := t.translateOne(ctx, prompt, text)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("segment %d: %w", out[i].Index, err)
					cancel()
				}
				return
			}
			out[i].Translated = translated
		}(i, text)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, services.Wrap(services.ErrExternalTool, string(jobs.StatusTranslating), "translate", "translation request failed", firstErr)
	}
	t.logger.Info("segments translated", logging.Args(
		logging.Int("segments", len(out)),
		logging.String("target", target),
	)...)
	return out, nil
}

func (t *Translator) translateOne(ctx context.Context, prompt, text string) (string, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	content, err := t.client.CompleteJSON(ctx, prompt, text)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Translation string `json:"translation"`
	}
	if err := DecodeJSON(content, &parsed); err != nil {
		return "", fmt.Errorf("parse translation: %w", err)
	}
	return strings.TrimSpace(parsed.Translation), nil
}

func (t *Translator) describe(contextAudio string) string {
	if contextAudio == "" {
		return ""
	}
	secs, err := audio.WAVSeconds(contextAudio)
	if err != nil {
		logging.WarnWithContext(t.logger, "context audio unreadable", "translation_context",
			logging.String("path", contextAudio),
			logging.Error(err),
			logging.String(logging.FieldImpact, "prompt omits the track context"),
		)
		return ""
	}
	return fmt.Sprintf(contextPrompt, filepath.Base(contextAudio), secs)
}

func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}
