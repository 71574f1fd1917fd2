package pitch

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// silenceRMS marks frames too quiet to carry a pitch.
const silenceRMS = 1e-4

// yinScratch holds per-goroutine buffers for one analysis configuration.
// The integration window equals the maximum lag, so each frame spans
// 2*tauMax samples.
type yinScratch struct {
	tauMax int
	frame  []float64
	fft    *fourier.FFT
	padA   []float64
	padB   []float64
	specA  []complex128
	specB  []complex128
	corr   []float64
	energy []float64
	cmndf  []float64
}

func newYINScratch(tauMax int) *yinScratch {
	n := 2 * tauMax
	size := 1
	for size < n+tauMax {
		size <<= 1
	}
	return &yinScratch{
		tauMax: tauMax,
		frame:  make([]float64, n),
		fft:    fourier.NewFFT(size),
		padA:   make([]float64, size),
		padB:   make([]float64, size),
		specA:  make([]complex128, size/2+1),
		specB:  make([]complex128, size/2+1),
		corr:   make([]float64, size),
		energy: make([]float64, n+1),
		cmndf:  make([]float64, tauMax+1),
	}
}

// load copies the frame centred on center, zero-filling outside samples.
func (s *yinScratch) load(samples []float64, center int) {
	start := center - s.tauMax
	for j := range s.frame {
		k := start + j
		if k >= 0 && k < len(samples) {
			s.frame[j] = samples[k]
		} else {
			s.frame[j] = 0
		}
	}
}

// estimate returns (f0, aperiodicity) for the loaded frame.
func (s *yinScratch) estimate(rate int, p Params) (float64, float64) {
	w := s.tauMax
	x := s.frame

	s.energy[0] = 0
	for j, v := range x {
		s.energy[j+1] = s.energy[j] + v*v
	}
	if math.Sqrt(s.energy[w]/float64(w)) < silenceRMS {
		return 0, 1
	}

	// Cross term r(tau) = sum_{j<w} x[j]*x[j+tau] via FFT correlation.
	clear(s.padA)
	clear(s.padB)
	copy(s.padA, x[:w])
	copy(s.padB, x)
	s.fft.Coefficients(s.specA, s.padA)
	s.fft.Coefficients(s.specB, s.padB)
	for k := range s.specA {
		s.specA[k] = cmplx.Conj(s.specA[k]) * s.specB[k]
	}
	s.fft.Sequence(s.corr, s.specA)
	scale := 1 / float64(len(s.corr))

	tauMin := int(math.Floor(float64(rate) / p.Ceil))
	if tauMin < 2 {
		tauMin = 2
	}
	e0 := s.energy[w]
	s.cmndf[0] = 1
	running := 0.0
	for tau := 1; tau <= w; tau++ {
		etau := s.energy[tau+w] - s.energy[tau]
		d := e0 + etau - 2*s.corr[tau]*scale
		if d < 0 {
			d = 0
		}
		running += d
		if running > 0 {
			s.cmndf[tau] = d * float64(tau) / running
		} else {
			s.cmndf[tau] = 1
		}
	}

	best := -1
	for tau := tauMin; tau <= w; tau++ {
		if s.cmndf[tau] < p.Threshold {
			for tau+1 <= w && s.cmndf[tau+1] < s.cmndf[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		minVal := 1.0
		for tau := tauMin; tau <= w; tau++ {
			minVal = math.Min(minVal, s.cmndf[tau])
		}
		return 0, clamp01(minVal)
	}

	refined := float64(best)
	if best > 1 && best < w {
		a, b, c := s.cmndf[best-1], s.cmndf[best], s.cmndf[best+1]
		if den := a - 2*b + c; den != 0 {
			shift := 0.5 * (a - c) / den
			if math.Abs(shift) < 1 {
				refined += shift
			}
		}
	}
	f0 := float64(rate) / refined
	if f0 < p.Floor || f0 > p.Ceil {
		return 0, clamp01(s.cmndf[best])
	}
	return f0, clamp01(s.cmndf[best])
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
