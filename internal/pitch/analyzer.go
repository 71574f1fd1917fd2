package pitch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"songdub/internal/audio"
	"songdub/internal/services"
)

// Params configures the estimator.
type Params struct {
	SampleRate int
	Hop        time.Duration
	Floor      float64
	Ceil       float64
	Threshold  float64
}

// DefaultParams returns the 16 kHz / 10 ms / 50-1100 Hz analysis grid.
func DefaultParams() Params {
	return Params{
		SampleRate: 16000,
		Hop:        10 * time.Millisecond,
		Floor:      50,
		Ceil:       1100,
		Threshold:  0.15,
	}
}

func (p Params) validate() error {
	switch {
	case p.SampleRate <= 0:
		return fmt.Errorf("pitch: sample rate %d", p.SampleRate)
	case p.Hop <= 0:
		return fmt.Errorf("pitch: hop %s", p.Hop)
	case p.Floor <= 0 || p.Ceil <= p.Floor:
		return fmt.Errorf("pitch: range %.1f-%.1f Hz", p.Floor, p.Ceil)
	case p.Threshold <= 0 || p.Threshold >= 1:
		return fmt.Errorf("pitch: threshold %.3f", p.Threshold)
	}
	return nil
}

// HopSamples returns the hop length at rate.
func (p Params) HopSamples(rate int) int {
	n := int(math.Round(p.Hop.Seconds() * float64(rate)))
	if n < 1 {
		n = 1
	}
	return n
}

// Analyzer runs YIN over mono audio. It is safe for concurrent use.
type Analyzer struct {
	params Params
	pool   sync.Pool
}

var (
	sharedOnce     sync.Once
	sharedAnalyzer *Analyzer
)

// Shared returns the process-wide analyzer built from DefaultParams.
func Shared() *Analyzer {
	sharedOnce.Do(func() {
		sharedAnalyzer = &Analyzer{params: DefaultParams()}
	})
	return sharedAnalyzer
}

// NewAnalyzer builds an analyzer with custom parameters.
func NewAnalyzer(p Params) (*Analyzer, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Analyzer{params: p}, nil
}

// Params returns the analyzer configuration.
func (a *Analyzer) Params() Params {
	return a.params
}

// Extract downmixes and resamples buf to the analysis rate and returns its
// F0 contour with one frame per hop covering the full duration.
func (a *Analyzer) Extract(ctx context.Context, buf *audio.Buffer) (*Contour, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "pitch", "extract contour", errors.New("empty vocal audio"))
	}
	if err := buf.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "", "pitch", "extract contour", err)
	}
	mono := audio.Conform(buf, a.params.SampleRate, 1)
	f0, _, err := a.Track(ctx, mono.Samples, mono.Rate)
	if err != nil {
		return nil, err
	}
	hop := a.params.Hop.Seconds()
	times := make([]float64, len(f0))
	for i := range times {
		times[i] = float64(i) * hop
	}
	return &Contour{Hop: a.params.Hop, Times: times, F0: f0}, nil
}

// Track estimates F0 and aperiodicity for every hop of samples recorded at
// rate. Frame i is centred on sample i*hop. Aperiodicity is the normalized
// YIN difference at the chosen lag (0 = perfectly periodic, 1 = noise).
func (a *Analyzer) Track(ctx context.Context, samples []float64, rate int) (f0, aperiodicity []float64, err error) {
	hop := a.params.HopSamples(rate)
	frames := (len(samples) + hop - 1) / hop
	f0 = make([]float64, frames)
	aperiodicity = make([]float64, frames)
	if frames == 0 {
		return f0, aperiodicity, nil
	}

	s := a.scratch(rate)
	defer a.pool.Put(s)

	for i := 0; i < frames; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		s.load(samples, i*hop)
		f0[i], aperiodicity[i] = s.estimate(rate, a.params)
	}
	return f0, aperiodicity, nil
}

func (a *Analyzer) scratch(rate int) *yinScratch {
	tauMax := int(math.Ceil(float64(rate) / a.params.Floor))
	if v, ok := a.pool.Get().(*yinScratch); ok && v.tauMax == tauMax {
		return v
	}
	return newYINScratch(tauMax)
}
