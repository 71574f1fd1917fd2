package transplant

import (
	"context"
	"errors"
	"fmt"

	"songdub/internal/audio"
	"songdub/internal/pitch"
	"songdub/internal/services"
	"songdub/internal/vocoder"
)

// Options tunes the transplant. Zero values fall back to DefaultOptions.
type Options struct {
	Floor           float64
	Ceil            float64
	Weights         [3]float64
	MinSmoothVoiced int
	Analyzer        *pitch.Analyzer
}

// DefaultOptions returns the 50-1100 Hz range and [0.2, 0.6, 0.2] smoothing.
func DefaultOptions() Options {
	return Options{
		Floor:           50,
		Ceil:            1100,
		Weights:         [3]float64{0.2, 0.6, 0.2},
		MinSmoothVoiced: 5,
	}
}

// Engine performs melody transplants. It holds no per-call state and is safe
// for concurrent use.
type Engine struct {
	opts Options
}

// NewEngine builds an engine.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Floor <= 0 {
		opts.Floor = def.Floor
	}
	if opts.Ceil <= opts.Floor {
		opts.Ceil = def.Ceil
	}
	if opts.Weights == ([3]float64{}) {
		opts.Weights = def.Weights
	}
	if opts.MinSmoothVoiced < 0 {
		opts.MinSmoothVoiced = def.MinSmoothVoiced
	}
	if opts.Analyzer == nil {
		opts.Analyzer = pitch.Shared()
	}
	return &Engine{opts: opts}
}

// Transplant re-synthesizes buf so it follows the target melody given by
// f0Target at times tTarget (seconds relative to the start of buf). The input
// is conformed to mono at the analyzer rate; the output keeps its length.
func (e *Engine) Transplant(ctx context.Context, buf *audio.Buffer, f0Target, tTarget []float64) (*audio.Buffer, error) {
	if len(f0Target) != len(tTarget) {
		return nil, services.Wrap(services.ErrValidation, "", "transplant", "target contour",
			fmt.Errorf("%d f0 values for %d times", len(f0Target), len(tTarget)))
	}
	if buf == nil || buf.Frames() == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "transplant", "analyze", errors.New("empty utterance"))
	}

	rate := e.opts.Analyzer.Params().SampleRate
	an, err := vocoder.Analyze(ctx, audio.Conform(buf, rate, 1), vocoder.Params{Analyzer: e.opts.Analyzer})
	if err != nil {
		return nil, err
	}

	f0 := e.Retarget(f0Target, tTarget, an.Frames(), float64(an.Hop)/float64(an.Rate))
	samples, err := vocoder.Synthesize(an, f0)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "transplant", "synthesize", err)
	}
	return audio.FromMono(an.Rate, samples), nil
}

// Retarget builds the synthesis contour for a grid of frames spaced hop
// seconds apart: resample, clamp, then smooth.
func (e *Engine) Retarget(f0Target, tTarget []float64, frames int, hop float64) []float64 {
	grid := make([]float64, frames)
	for i := range grid {
		grid[i] = float64(i) * hop
	}
	f0 := ResampleContour(f0Target, tTarget, grid)
	f0 = Clamp(f0, e.opts.Floor, e.opts.Ceil)
	return SmoothVoiced(f0, e.opts.Weights, e.opts.MinSmoothVoiced)
}
