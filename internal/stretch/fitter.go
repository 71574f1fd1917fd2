package stretch

import (
	"math"

	"songdub/internal/audio"
)

// Rate is the working sample rate of fitted audio.
const Rate = 16000

const (
	maxPassRatio = 2.0
	minPassRatio = 0.5
)

// Fitter stretches audio to a target duration.
type Fitter struct {
	// MinTarget floors the requested duration, in seconds.
	MinTarget float64
	// Tolerance skips stretching when the duration is already this close.
	Tolerance float64
}

// NewFitter returns a fitter with the given floor and tolerance in seconds.
// Non-positive values select 0.03 s and 5 ms.
func NewFitter(minTarget, tolerance float64) *Fitter {
	if minTarget <= 0 {
		minTarget = 0.03
	}
	if tolerance <= 0 {
		tolerance = 0.005
	}
	return &Fitter{MinTarget: minTarget, Tolerance: tolerance}
}

// Fit returns buf as mono 16 kHz audio lasting exactly target seconds
// (after flooring). Ratios beyond [0.5, 2] are applied as chained passes.
func (f *Fitter) Fit(buf *audio.Buffer, target float64) (*audio.Buffer, error) {
	target = math.Max(target, f.MinTarget)
	want := int(math.Round(target * Rate))
	if buf == nil || buf.Frames() == 0 {
		return audio.NewBuffer(Rate, 1, want), nil
	}

	mono := audio.Conform(buf, Rate, 1)
	current := mono.Seconds()
	if math.Abs(current-target) < f.Tolerance {
		return mono, nil
	}

	x := mono.Samples
	ratio := current / target
	for ratio > maxPassRatio {
		x = wsola(x, maxPassRatio)
		ratio /= maxPassRatio
	}
	for ratio < minPassRatio {
		x = wsola(x, minPassRatio)
		ratio /= minPassRatio
	}
	x = wsola(x, ratio)

	return audio.FromMono(Rate, x).FitFrames(want), nil
}
