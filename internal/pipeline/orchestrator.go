package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"songdub/internal/artifacts"
	"songdub/internal/audio"
	"songdub/internal/config"
	"songdub/internal/fileutil"
	"songdub/internal/jobs"
	"songdub/internal/logging"
	"songdub/internal/pitch"
	"songdub/internal/services"
	"songdub/internal/stitch"
	"songdub/internal/stretch"
	"songdub/internal/transplant"
)

// Orchestrator runs the stages of one job at a time per call to Run. It holds
// no per-job state and may run several jobs concurrently.
type Orchestrator struct {
	cfg        *config.Config
	registry   jobs.Registry
	collab     Collaborators
	analyzer   *pitch.Analyzer
	fitter     *stretch.Fitter
	engine     *transplant.Engine
	stitchOpts stitch.Options
	logger     *slog.Logger
}

// NewOrchestrator builds an orchestrator from cfg. Every collaborator except
// Publisher and Notifier is required.
func NewOrchestrator(cfg *config.Config, registry jobs.Registry, collab Collaborators, logger *slog.Logger) (*Orchestrator, error) {
	if err := collab.validate(); err != nil {
		return nil, err
	}
	analyzer, err := pitch.NewAnalyzer(pitch.Params{
		SampleRate: cfg.Audio.AnalysisSampleRate,
		Hop:        cfg.Hop(),
		Floor:      cfg.Audio.F0Floor,
		Ceil:       cfg.Audio.F0Ceil,
		Threshold:  cfg.Audio.VoicingThreshold,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "pipeline", "pitch analyzer", err)
	}
	var weights [3]float64
	copy(weights[:], cfg.Audio.SmoothingWeights)

	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		collab:   collab,
		analyzer: analyzer,
		fitter:   stretch.NewFitter(cfg.Audio.MinFitSeconds, cfg.Audio.StretchToleranceMS/1000),
		engine: transplant.NewEngine(transplant.Options{
			Floor:           cfg.Audio.F0Floor,
			Ceil:            cfg.Audio.F0Ceil,
			Weights:         weights,
			MinSmoothVoiced: cfg.Audio.SmoothingMinVoiced,
			Analyzer:        analyzer,
		}),
		stitchOpts: stitch.Options{
			Rate:               stretch.Rate,
			Channels:           cfg.Audio.StitchChannels,
			PlaceholderSeconds: cfg.Audio.PlaceholderSeconds,
		},
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// run carries the per-job state shared by the stages.
type run struct {
	job     jobs.Job
	layout  artifacts.Layout
	tracker *jobs.Tracker
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

// Run drives job from queued to done or error. The returned error is the
// stage failure that moved the job to error, if any.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) error {
	ctx = services.WithJobID(ctx, job.ID)
	layout := artifacts.NewLayout(o.cfg.JobsDir(), job.ID)
	logger := o.logger.With(logging.String(logging.FieldJobID, job.ID))
	if err := layout.Ensure(); err == nil {
		if jobLogger, closer, err := logging.NewJobLogger(o.logger, layout.Root, job.ID); err == nil {
			logger = jobLogger
			defer closer.Close()
		}
	}

	tracker := jobs.NewTracker(job, o.registry, logger)
	tracker.OnTerminal(o.notify)
	r := &run{
		job:     *job.Clone(),
		layout:  layout,
		tracker: tracker,
		logger:  logger,
		sampler: logging.NewProgressSampler(10),
	}

	started := time.Now()
	logger.Info("job started", logging.Args(
		logging.String("language", job.Language),
		logging.String("source", job.SourceName),
	)...)

	if err := o.execute(ctx, r); err != nil {
		if failErr := tracker.Fail(ctx, err); failErr != nil {
			logger.Error("persist job failure", logging.Args(logging.Error(failErr))...)
		}
		return err
	}
	if err := tracker.Complete(ctx); err != nil {
		logger.Error("persist job completion", logging.Args(logging.Error(err))...)
	}
	logger.Info("job finished", logging.Args(logging.Duration("elapsed", time.Since(started)))...)
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	defer o.cleanup(r)

	if err := r.layout.Ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, string(jobs.StatusSeparating), "prepare", "create job dir", err)
	}

	stems, err := o.separate(ctx, r)
	if err != nil {
		return err
	}
	segments, err := o.transcribe(ctx, r, stems.Vocals)
	if err != nil {
		return err
	}
	segments, err = o.translate(ctx, r, segments, stems.Vocals)
	if err != nil {
		return err
	}
	proxy, err := o.renderProxy(ctx, r, stems.Vocals, segments)
	if err != nil {
		return err
	}
	converted, err := o.convert(ctx, r, proxy)
	if err != nil {
		return err
	}
	if err := o.mix(ctx, r, converted, stems.Instrumental); err != nil {
		return err
	}
	o.publish(ctx, r)
	return nil
}

func (o *Orchestrator) separate(ctx context.Context, r *run) (services.Stems, error) {
	const stage = string(jobs.StatusSeparating)
	ctx = services.WithStage(ctx, stage)
	o.advance(ctx, r, jobs.StatusSeparating, "", jobs.ProgressSeparating)

	upload := r.layout.Upload(r.job.SourceName)
	if _, err := os.Stat(upload); err != nil {
		return services.Stems{}, services.Wrap(services.ErrNotFound, stage, "prepare", "uploaded source missing", err)
	}
	trimmed := r.layout.Trimmed()
	if err := o.call(ctx, func(ctx context.Context) error {
		return o.collab.Trimmer.Trim(ctx, upload, trimmed, r.job.Start, r.job.End)
	}); err != nil {
		return services.Stems{}, services.Wrap(services.ErrExternalTool, stage, "trim", "trim source window", err)
	}

	var stems services.Stems
	if err := o.call(ctx, func(ctx context.Context) error {
		var err error
		stems, err = o.collab.Separator.Separate(ctx, trimmed, r.layout.Root)
		return err
	}); err != nil {
		return services.Stems{}, services.Wrap(services.ErrExternalTool, stage, "separate", "stem separation failed", err)
	}

	placed := services.Stems{Vocals: r.layout.Vocals(), Instrumental: r.layout.Instrumental()}
	if err := fileutil.MoveFile(stems.Vocals, placed.Vocals); err != nil {
		return services.Stems{}, services.Wrap(services.ErrExternalTool, stage, "separate", "collect vocal stem", err)
	}
	if err := fileutil.MoveFile(stems.Instrumental, placed.Instrumental); err != nil {
		return services.Stems{}, services.Wrap(services.ErrExternalTool, stage, "separate", "collect instrumental stem", err)
	}

	o.result(ctx, r, func(res *jobs.Results) {
		res.Vocals = o.url(r, artifacts.VocalsFile)
		res.Instrumental = o.url(r, artifacts.InstrumentalFile)
	})
	o.advance(ctx, r, jobs.StatusTranscribing, "", jobs.ProgressSeparated)
	return placed, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, r *run, vocals string) ([]jobs.Segment, error) {
	const stage = string(jobs.StatusTranscribing)
	ctx = services.WithStage(ctx, stage)

	var segments []jobs.Segment
	if err := o.call(ctx, func(ctx context.Context) error {
		var err error
		segments, err = o.collab.Transcriber.Transcribe(ctx, vocals)
		return err
	}); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage, "transcribe", "transcription failed", err)
	}
	for i := range segments {
		segments[i].Index = i
	}

	words := wordCount(segments)
	o.result(ctx, r, func(res *jobs.Results) {
		res.SegmentCount = len(segments)
		res.WordCount = words
		res.Segments = segments
	})
	r.logger.Info("transcript ready", logging.Args(
		logging.Int("segments", len(segments)),
		logging.Int("words", words),
	)...)
	o.advance(ctx, r, jobs.StatusTranslating, "", jobs.ProgressTranscribed)
	return segments, nil
}

func (o *Orchestrator) translate(ctx context.Context, r *run, segments []jobs.Segment, vocals string) ([]jobs.Segment, error) {
	const stage = string(jobs.StatusTranslating)
	ctx = services.WithStage(ctx, stage)

	target := r.job.Language
	var translated []jobs.Segment
	if source := strings.ToLower(o.cfg.Translation.SourceLanguage); source != "" && source == target {
		translated = make([]jobs.Segment, len(segments))
		copy(translated, segments)
		for i := range translated {
			translated[i].Translated = translated[i].Text
			translated[i].Language = target
		}
		o.note(ctx, r, jobs.NoteTranslation, fmt.Sprintf("target language %s matches the source; lyrics kept as transcribed", target))
	} else if len(segments) > 0 {
		if err := o.call(ctx, func(ctx context.Context) error {
			var err error
			translated, err = o.collab.Translator.Translate(ctx, segments, vocals, target)
			return err
		}); err != nil {
			return nil, services.Wrap(services.ErrExternalTool, stage, "translate", "translation failed", err)
		}
	}

	o.result(ctx, r, func(res *jobs.Results) { res.Segments = translated })
	o.advance(ctx, r, jobs.StatusProxyTTS, "", jobs.ProgressTranslated)
	return translated, nil
}

func (o *Orchestrator) renderProxy(ctx context.Context, r *run, vocals string, segments []jobs.Segment) (string, error) {
	const stage = string(jobs.StatusProxyTTS)
	ctx = services.WithStage(ctx, stage)

	vocalBuf, err := audio.ReadWAV(vocals)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stage, "contour", "read vocal stem", err)
	}
	contour, err := o.analyzer.Extract(ctx, vocalBuf)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stage, "contour", "extract melody", err)
	}

	total := len(segments)
	o.advance(ctx, r, jobs.StatusProxyTTS, jobs.SegmentStage(0, total), jobs.ProgressProxyStart)
	rendered := o.renderSegments(ctx, r, segments, contour)

	result := stitch.Stitch(rendered, vocalBuf.Seconds(), o.stitchOpts)
	if result.Placeholder {
		logging.WarnWithContext(r.logger, "no segment produced audio", "proxy_placeholder",
			logging.Int("segments", total),
			logging.String(logging.FieldImpact, "dub contains only the instrumental"),
			logging.String(logging.FieldErrorHint, "check the TTS command and transcript"),
		)
	}
	if result.Clipped > 0 {
		r.logger.Warn("stitched proxy clips", logging.Args(
			logging.Int("clipped_samples", result.Clipped),
			logging.String(logging.FieldEventType, "proxy_clipped"),
		)...)
	}
	if err := audio.WriteWAV(r.layout.Proxy(), result.Audio); err != nil {
		return "", services.Wrap(services.ErrTransient, stage, "stitch", "write proxy vocals", err)
	}
	o.result(ctx, r, func(res *jobs.Results) { res.ProxyVocals = o.url(r, artifacts.ProxyFile) })
	return r.layout.Proxy(), nil
}

// selectSpeaker matches input, the proxy in conversion format, against the
// reference singers and falls back to the configured default.
func (o *Orchestrator) selectSpeaker(ctx context.Context, r *run, input string) string {
	var speaker string
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		speaker, err = o.collab.Converter.SelectSpeaker(ctx, input)
		return err
	})
	if speaker == "" {
		speaker = o.cfg.VoiceConversion.DefaultSpeaker
	}
	if err != nil {
		o.note(ctx, r, jobs.NoteSpeaker, fmt.Sprintf("speaker match unavailable, using %s: %v", speaker, err))
	}
	o.result(ctx, r, func(res *jobs.Results) { res.SelectedVoice = speaker })
	return speaker
}

func (o *Orchestrator) convert(ctx context.Context, r *run, proxy string) (string, error) {
	const stage = string(jobs.StatusSVC)
	ctx = services.WithStage(ctx, stage)
	o.advance(ctx, r, jobs.StatusSVC, "", 0)

	input := r.layout.ConversionInput()
	if err := o.call(ctx, func(ctx context.Context) error {
		return o.collab.Formatter.Convert(ctx, proxy, input, o.cfg.Audio.ConversionSampleRate, o.cfg.Audio.ConversionChannels)
	}); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stage, "prepare", "write conversion input", err)
	}
	speaker := o.selectSpeaker(ctx, r, input)

	out := r.layout.TranslatedVocals()
	if err := o.call(ctx, func(ctx context.Context) error {
		return o.collab.Converter.Convert(ctx, input, out, speaker)
	}); err != nil {
		return "", services.Wrap(services.ErrExternalTool, stage, "convert", "voice conversion failed", err)
	}
	o.result(ctx, r, func(res *jobs.Results) { res.TranslatedVocals = o.url(r, artifacts.TranslatedVocalsFile) })
	o.advance(ctx, r, jobs.StatusMixing, "", jobs.ProgressConverted)
	return out, nil
}

func (o *Orchestrator) mix(ctx context.Context, r *run, vocals, instrumental string) error {
	const stage = string(jobs.StatusMixing)
	ctx = services.WithStage(ctx, stage)

	if err := o.call(ctx, func(ctx context.Context) error {
		return o.collab.Mixer.Mix(ctx, vocals, instrumental, r.layout.FinalMix())
	}); err != nil {
		return services.Wrap(services.ErrExternalTool, stage, "mix", "mixdown failed", err)
	}
	o.result(ctx, r, func(res *jobs.Results) { res.FinalMix = o.url(r, artifacts.FinalMixFile) })
	o.advance(ctx, r, jobs.StatusMixing, "", jobs.ProgressMixed)
	return nil
}

// publish uploads the public artifacts when object storage is configured and
// swaps the local URLs for presigned ones. Failures only add a note.
func (o *Orchestrator) publish(ctx context.Context, r *run) {
	if o.collab.Publisher == nil {
		return
	}
	files := map[string]string{
		artifacts.VocalsFile:           r.layout.Vocals(),
		artifacts.InstrumentalFile:     r.layout.Instrumental(),
		artifacts.ProxyFile:            r.layout.Proxy(),
		artifacts.TranslatedVocalsFile: r.layout.TranslatedVocals(),
		artifacts.FinalMixFile:         r.layout.FinalMix(),
	}
	var urls map[string]string
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		urls, err = o.collab.Publisher.Publish(ctx, r.job.ID, files)
		return err
	})
	if err != nil {
		o.note(ctx, r, jobs.NotePublish, fmt.Sprintf("object storage upload failed; artifacts served locally: %v", err))
		return
	}
	o.result(ctx, r, func(res *jobs.Results) {
		for name, target := range map[string]*string{
			artifacts.VocalsFile:           &res.Vocals,
			artifacts.InstrumentalFile:     &res.Instrumental,
			artifacts.ProxyFile:            &res.ProxyVocals,
			artifacts.TranslatedVocalsFile: &res.TranslatedVocals,
			artifacts.FinalMixFile:         &res.FinalMix,
		} {
			if u := urls[name]; u != "" {
				*target = u
			}
		}
	})
}

// call bounds fn with the configured process timeout.
func (o *Orchestrator) call(ctx context.Context, fn func(context.Context) error) error {
	if timeout := o.cfg.ProcessTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = fmt.Errorf("exceeded %s: %w: %w", o.cfg.ProcessTimeout(), services.ErrTimeout, err)
	}
	return err
}

func (o *Orchestrator) advance(ctx context.Context, r *run, status jobs.Status, stage string, progress int) {
	if err := r.tracker.Advance(ctx, status, stage, progress); err != nil {
		o.persistWarning(r, err)
	}
	snap := r.tracker.Snapshot()
	if r.sampler.ShouldLog(snap.Progress, snap.Stage) {
		r.logger.Debug("progress", logging.Args(
			logging.String("stage", snap.Stage),
			logging.Int("progress", snap.Progress),
		)...)
	}
}

func (o *Orchestrator) result(ctx context.Context, r *run, fn func(*jobs.Results)) {
	if err := r.tracker.Result(ctx, fn); err != nil {
		o.persistWarning(r, err)
	}
}

func (o *Orchestrator) note(ctx context.Context, r *run, kind jobs.NoteKind, text string) {
	if err := r.tracker.Note(ctx, kind, text); err != nil {
		o.persistWarning(r, err)
	}
}

func (o *Orchestrator) persistWarning(r *run, err error) {
	logging.WarnWithContext(r.logger, "job record not persisted", "job_persist_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the jobs database"),
		logging.String(logging.FieldImpact, "status endpoint may lag behind the running job"),
	)
}

func (o *Orchestrator) url(r *run, name string) string {
	return artifacts.LocalURL(o.cfg.Paths.PublicBaseURL, r.job.ID, name)
}

func (o *Orchestrator) notify(job jobs.Job) {
	if o.collab.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	var err error
	if job.Status == jobs.StatusDone {
		err = o.collab.Notifier.NotifyJobCompleted(ctx, &job)
	} else {
		err = o.collab.Notifier.NotifyJobFailed(ctx, &job)
	}
	if err != nil {
		o.logger.Warn("notification failed", logging.Args(
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "notify_failed"),
		)...)
	}
}

// cleanup removes the source copies and, unless configured otherwise, the
// intermediate renders. It runs on every exit path.
func (o *Orchestrator) cleanup(r *run) {
	remove := []string{r.layout.Upload(r.job.SourceName), r.layout.Trimmed()}
	if !o.cfg.Pipeline.KeepIntermediate {
		remove = append(remove, r.layout.SegmentsDir(), r.layout.ConversionInput())
	}
	for _, path := range remove {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Debug("cleanup failed", logging.Args(logging.String("path", path), logging.Error(err))...)
		}
	}
}

func wordCount(segments []jobs.Segment) int {
	n := 0
	for _, seg := range segments {
		if len(seg.Words) > 0 {
			n += len(seg.Words)
			continue
		}
		n += len(strings.Fields(seg.Text))
	}
	return n
}
