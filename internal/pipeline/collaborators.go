package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"songdub/internal/artifacts"
	"songdub/internal/audio"
	"songdub/internal/config"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/notifications"
	"songdub/internal/services"
	"songdub/internal/services/demucs"
	"songdub/internal/services/mixdown"
	"songdub/internal/services/svc"
	"songdub/internal/services/translator"
	"songdub/internal/services/tts"
	"songdub/internal/services/whisper"
)

// Trimmer cuts the submitted file to the requested window as PCM WAV.
type Trimmer interface {
	Trim(ctx context.Context, input, output string, start, end float64) error
}

// Separator splits a song into vocal and instrumental stems in outDir.
type Separator interface {
	Separate(ctx context.Context, input, outDir string) (services.Stems, error)
}

// Transcriber turns the vocal stem into timed lyric segments.
type Transcriber interface {
	Transcribe(ctx context.Context, vocals string) ([]jobs.Segment, error)
}

// Translator fills Segment.Translated for the target language. contextAudio
// names the track the lines are sung on.
type Translator interface {
	Translate(ctx context.Context, segs []jobs.Segment, contextAudio, target string) ([]jobs.Segment, error)
}

// Synthesizer renders one line of text to a WAV file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, out string) error
}

// Formatter rewrites an audio file at the given sample rate and channel count.
type Formatter interface {
	Convert(ctx context.Context, input, output string, rate, channels int) error
}

// Converter picks the reference singer closest to the proxy vocals and
// converts them.
type Converter interface {
	SelectSpeaker(ctx context.Context, proxy string) (string, error)
	Convert(ctx context.Context, in, out, speaker string) error
}

// Mixer sums the converted vocals with the instrumental.
type Mixer interface {
	Mix(ctx context.Context, vocals, instrumental, out string) error
}

// Collaborators bundles the external services a job needs. Publisher and
// Notifier are optional.
type Collaborators struct {
	Trimmer     Trimmer
	Separator   Separator
	Transcriber Transcriber
	Translator  Translator
	Synthesizer Synthesizer
	Formatter   Formatter
	Converter   Converter
	Mixer       Mixer
	Publisher   artifacts.Publisher
	Notifier    notifications.Service
}

func (c Collaborators) validate() error {
	var missing []string
	for name, v := range map[string]any{
		"trimmer":     c.Trimmer,
		"separator":   c.Separator,
		"transcriber": c.Transcriber,
		"translator":  c.Translator,
		"synthesizer": c.Synthesizer,
		"formatter":   c.Formatter,
		"converter":   c.Converter,
		"mixer":       c.Mixer,
	} {
		if v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "", "pipeline", "missing collaborators",
			fmt.Errorf("%s", strings.Join(missing, ", ")))
	}
	return nil
}

// NewCollaborators wires the production services from cfg.
func NewCollaborators(cfg *config.Config, langs *language.Set, logger *slog.Logger) (Collaborators, error) {
	timeout := cfg.ProcessTimeout()
	transcoder := audio.NewTranscoder(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, timeout, nil)

	voices := make(map[string]string)
	for _, code := range langs.Codes() {
		voices[code] = langs.Voice(code)
	}

	client := translator.NewClient(translator.Config{
		APIKey:         cfg.Translation.APIKey,
		BaseURL:        cfg.Translation.BaseURL,
		Model:          cfg.Translation.Model,
		Referer:        cfg.Translation.Referer,
		Title:          cfg.Translation.Title,
		TimeoutSeconds: cfg.Translation.TimeoutSeconds,
	})

	collab := Collaborators{
		Trimmer:   transcoder,
		Separator: demucs.New(cfg.Tools.Python, cfg.Tools.DemucsModel, timeout, logger),
		Transcriber: whisper.New(whisper.Config{
			Command:  cfg.Tools.WhisperCommand,
			Model:    cfg.Tools.WhisperModel,
			Device:   cfg.Tools.WhisperDevice,
			Language: cfg.Translation.SourceLanguage,
			Timeout:  timeout,
		}, logger),
		Translator: translator.New(client, translator.Options{
			SourceLanguage:    cfg.Translation.SourceLanguage,
			Workers:           cfg.Pipeline.TranslationWorkers,
			RequestsPerSecond: cfg.Pipeline.TranslationRPS,
		}, logger),
		Synthesizer: tts.New(cfg.Tools.TTSCommand, voices, cfg.TTSTimeout()),
		Formatter:   transcoder,
		Converter: svc.New(svc.Config{
			Enabled:        cfg.VoiceConversion.Enabled,
			Template:       cfg.Tools.SVCCommand,
			SpeakersDir:    cfg.VoiceConversion.SpeakersDir,
			DefaultSpeaker: cfg.VoiceConversion.DefaultSpeaker,
			Timeout:        timeout,
		}, logger),
		Mixer:    mixdown.New(transcoder),
		Notifier: notifications.NewService(cfg),
	}

	if cfg.Storage.Enabled {
		store, err := artifacts.NewStore(cfg.Storage, logger)
		if err != nil {
			return Collaborators{}, services.Wrap(services.ErrConfiguration, "", "storage", "configure object storage", err)
		}
		collab.Publisher = store
	}
	return collab, nil
}
