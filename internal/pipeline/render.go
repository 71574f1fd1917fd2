package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"songdub/internal/audio"
	"songdub/internal/jobs"
	"songdub/internal/logging"
	"songdub/internal/pitch"
	"songdub/internal/services"
	"songdub/internal/stitch"
	"songdub/internal/textutil"
)

// Per-segment scratch files inside proxy_segments/NNNN.
const (
	ttsFile     = "tts.wav"
	stretchFile = "tts_stretch.wav"
	pitchedFile = "tts_pitched.wav"
)

// renderSegments renders every segment on a bounded pool and returns the
// successful renders in segment order. Progress is reported as each segment
// finishes, whatever its outcome.
func (o *Orchestrator) renderSegments(ctx context.Context, r *run, segments []jobs.Segment, contour *pitch.Contour) []stitch.Rendered {
	total := len(segments)
	if total == 0 {
		return nil
	}
	workers := max(o.cfg.Pipeline.SegmentWorkers, 1)

	results := make([]*stitch.Rendered, total)
	sem := make(chan struct{}, workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for i, seg := range segments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, seg jobs.Segment) {
			defer wg.Done()
			defer func() { <-sem }()

			segCtx := services.WithSegment(ctx, seg.Index)
			rendered, err := o.renderSegment(segCtx, r, seg, contour)
			if err != nil {
				details := services.Details(err)
				logging.WarnWithContext(logging.WithContext(segCtx, r.logger), "segment skipped", "segment_skipped",
					logging.Int(logging.FieldSegment, seg.Index),
					logging.String("error", details.Message),
					logging.String(logging.FieldErrorHint, details.Hint),
					logging.String(logging.FieldImpact, "segment left silent in the dub"),
				)
				o.note(ctx, r, jobs.NoteTTS, fmt.Sprintf("segment %d: %s", seg.Index, details.Message))
			} else {
				results[i] = rendered
			}

			mu.Lock()
			done++
			o.advance(ctx, r, jobs.StatusProxyTTS, jobs.SegmentStage(done, total), jobs.SegmentProgress(done, total))
			mu.Unlock()
		}(i, seg)
	}
	wg.Wait()

	out := make([]stitch.Rendered, 0, total)
	for _, rendered := range results {
		if rendered != nil {
			out = append(out, *rendered)
		}
	}
	return out
}

// renderSegment speaks the translated line, fits it to the segment duration,
// and carries over the original melody when the window is voiced. A nil
// result with a nil error means there was nothing to say.
func (o *Orchestrator) renderSegment(ctx context.Context, r *run, seg jobs.Segment, contour *pitch.Contour) (*stitch.Rendered, error) {
	const stage = string(jobs.StatusProxyTTS)
	text := textutil.CleanForTTS(seg.Translated)
	if text == "" {
		return nil, nil
	}

	dir := r.layout.SegmentDir(seg.Index)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "segment", "create segment dir", err)
	}

	ttsPath := filepath.Join(dir, ttsFile)
	if err := o.synthesize(ctx, text, r.job.Language, ttsPath); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage, "tts", "speech synthesis failed", err)
	}
	speech, err := audio.ReadWAV(ttsPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stage, "tts", "read synthesized speech", err)
	}

	duration := seg.Duration()
	fitted, err := o.fitter.Fit(speech, duration)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "stretch", "fit segment duration", err)
	}
	if err := audio.WriteWAV(filepath.Join(dir, stretchFile), fitted); err != nil {
		return nil, services.Wrap(services.ErrTransient, stage, "stretch", "write fitted speech", err)
	}

	out := fitted
	f0, times := contour.Window(seg.Start, seg.Start+duration)
	if pitch.VoicedCount(f0) >= o.cfg.Audio.MinVoicedSamples {
		pitched, err := o.engine.Transplant(ctx, fitted, f0, times)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "melody transplant failed", "transplant_failed",
				logging.Int(logging.FieldSegment, seg.Index),
				logging.Error(err),
				logging.String(logging.FieldImpact, "segment keeps the speech melody"),
			)
		} else {
			out = audio.Conform(pitched, fitted.Rate, 1).FitFrames(fitted.Frames())
			if err := audio.WriteWAV(filepath.Join(dir, pitchedFile), out); err != nil {
				return nil, services.Wrap(services.ErrTransient, stage, "transplant", "write pitched speech", err)
			}
		}
	}

	return &stitch.Rendered{Index: seg.Index, Start: seg.Start, Audio: out}, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, text, lang, out string) error {
	if timeout := o.cfg.TTSTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return o.call(ctx, func(ctx context.Context) error {
		return o.collab.Synthesizer.Synthesize(ctx, text, lang, out)
	})
}
