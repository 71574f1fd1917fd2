package vocoder

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"songdub/internal/audio"
	"songdub/internal/pitch"
	"songdub/internal/services"
)

const (
	defaultFFTSize = 1024
	// Aperiodicity ramps from the frame's periodicity to 1 across this band.
	noiseBandLow  = 4000.0
	noiseBandHigh = 7500.0
	// Unvoiced frames are smoothed as if pitched at this frequency.
	unvoicedSmoothF0 = 500.0
	// floorRatio is the envelope floor relative to the frame's smoothed
	// power peak at 0 Hz. Above the frame pitch it falls 6 dB per octave.
	floorRatio = 1e-2
	// silentPower keeps the log finite on digital silence.
	silentPower = 1e-20
)

// Params configures analysis.
type Params struct {
	// Analyzer supplies F0 and frame periodicity. Nil uses pitch.Shared.
	Analyzer *pitch.Analyzer
	// FFTSize is the envelope analysis length in samples; zero picks 1024.
	FFTSize int
}

// Analysis is the decomposed utterance. Envelope and Aperiodicity hold one
// row of FFTSize/2+1 bins per frame; frame i is centred on sample i*Hop.
type Analysis struct {
	Rate         int
	Hop          int
	FFTSize      int
	Length       int
	F0           []float64
	Envelope     [][]float64
	Aperiodicity [][]float64
	FrameRMS     []float64
}

// Frames returns the number of analysis frames.
func (a *Analysis) Frames() int {
	return len(a.F0)
}

// Analyze decomposes a mono buffer. Multichannel input is downmixed.
func Analyze(ctx context.Context, buf *audio.Buffer, p Params) (*Analysis, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "vocoder", "analyze", errors.New("empty utterance"))
	}
	analyzer := p.Analyzer
	if analyzer == nil {
		analyzer = pitch.Shared()
	}
	size := p.FFTSize
	if size <= 0 {
		size = defaultFFTSize
	}
	mono := buf
	if buf.Channels != 1 {
		mono = buf.Mono()
	}
	x := mono.Samples

	f0, periodicity, err := analyzer.Track(ctx, x, mono.Rate)
	if err != nil {
		return nil, err
	}
	hop := analyzer.Params().HopSamples(mono.Rate)
	frames := len(f0)
	bins := size/2 + 1

	an := &Analysis{
		Rate:         mono.Rate,
		Hop:          hop,
		FFTSize:      size,
		Length:       len(x),
		F0:           f0,
		Envelope:     make([][]float64, frames),
		Aperiodicity: make([][]float64, frames),
		FrameRMS:     make([]float64, frames),
	}

	fft := acquireFFT(size)
	defer releaseFFT(size, fft)
	window := hannWindow(size)
	frame := make([]float64, size)
	est := newEnvelopeEstimator(fft, size, mono.Rate)

	for i := 0; i < frames; i++ {
		if i%128 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		center := i * hop
		fillFrame(frame, x, center)
		an.FrameRMS[i] = frameRMS(x, center, hop)
		floats.Mul(frame, window)

		smoothF0 := f0[i]
		if smoothF0 <= 0 {
			smoothF0 = unvoicedSmoothF0
		}
		an.Envelope[i] = est.envelope(frame, smoothF0)
		an.Aperiodicity[i] = bandAperiodicity(bins, mono.Rate, size, f0[i], periodicity[i])
	}
	return an, nil
}

// fillFrame copies len(dst) samples centred on center, zero-padding edges.
func fillFrame(dst, x []float64, center int) {
	start := center - len(dst)/2
	for j := range dst {
		k := start + j
		if k >= 0 && k < len(x) {
			dst[j] = x[k]
		} else {
			dst[j] = 0
		}
	}
}

// frameRMS measures level over one hop on either side of center.
func frameRMS(x []float64, center, hop int) float64 {
	lo, hi := max(center-hop, 0), min(center+hop, len(x))
	if hi <= lo {
		return 0
	}
	sum := 0.0
	for _, v := range x[lo:hi] {
		sum += v * v
	}
	return math.Sqrt(sum / float64(hi-lo))
}

// envelopeEstimator holds the per-call buffers for spectral envelope
// estimation. It is not safe for concurrent use.
type envelopeEstimator struct {
	fft    *fourier.FFT
	rate   float64
	spec   []complex128
	power  []float64
	smooth []float64
	cum    []float64
	cep    []float64
}

func newEnvelopeEstimator(fft *fourier.FFT, size, rate int) *envelopeEstimator {
	bins := size/2 + 1
	return &envelopeEstimator{
		fft:    fft,
		rate:   float64(rate),
		spec:   make([]complex128, bins),
		power:  make([]float64, bins),
		smooth: make([]float64, bins),
		cep:    make([]float64, size),
	}
}

// envelope returns the smooth magnitude envelope of a windowed frame pitched
// at f0. The power spectrum is averaged over a 2/3*f0 wide band so the gaps
// between harmonic lines fill in, floored relative to the frame peak, and
// then smoothed again in the log domain with a sinc lifter whose first zero
// sits at the pitch period.
func (e *envelopeEstimator) envelope(frame []float64, f0 float64) []float64 {
	n := len(e.cep)
	binHz := e.rate / float64(n)

	e.fft.Coefficients(e.spec, frame)
	for k, c := range e.spec {
		e.power[k] = real(c)*real(c) + imag(c)*imag(c)
	}
	e.smoothPower(2.0 / 3.0 * f0 / binHz)

	peak := floats.Max(e.smooth)
	for k, p := range e.smooth {
		ratio := float64(k) * binHz / f0
		floor := floorRatio * peak / (1 + ratio*ratio)
		e.spec[k] = complex(math.Log(p+floor+silentPower), 0)
	}

	e.fft.Sequence(e.cep, e.spec)
	scale := 1 / float64(n)
	for q := range e.cep {
		lifter := 1.0
		if q > 0 {
			x := math.Pi * f0 * float64(min(q, n-q)) / e.rate
			lifter = math.Sin(x) / x
		}
		e.cep[q] *= scale * lifter
	}
	e.fft.Coefficients(e.spec, e.cep)

	env := make([]float64, len(e.spec))
	for k, c := range e.spec {
		env[k] = math.Exp(real(c) / 2)
	}
	return env
}

// smoothPower box-averages e.power over width bins into e.smooth. Bins are
// treated as unit cells and the spectrum is mirrored at 0 Hz and Nyquist so
// the edges are not pulled down.
func (e *envelopeEstimator) smoothPower(width float64) {
	if width <= 1 {
		copy(e.smooth, e.power)
		return
	}
	last := len(e.power) - 1
	at := func(j int) float64 {
		for last > 0 && (j < 0 || j > last) {
			if j < 0 {
				j = -j
			}
			if j > last {
				j = 2*last - j
			}
		}
		return e.power[max(0, min(j, last))]
	}

	half := width / 2
	pad := int(math.Ceil(half)) + 1
	need := len(e.power) + 2*pad + 1
	if cap(e.cum) < need {
		e.cum = make([]float64, need)
	}
	cum := e.cum[:need]
	cum[0] = 0
	for m := 1; m < need; m++ {
		cum[m] = cum[m-1] + at(m-1-pad)
	}
	// integral of the cell function from the left edge of the padding to x.
	integral := func(x float64) float64 {
		u := x + 0.5 + float64(pad)
		m := int(math.Floor(u))
		return cum[m] + (u-float64(m))*at(m-pad)
	}
	for k := range e.smooth {
		x := float64(k)
		e.smooth[k] = (integral(x+half) - integral(x-half)) / width
	}
}

// bandAperiodicity spreads the frame periodicity across bins: the frame's
// own value below noiseBandLow ramping to fully aperiodic at noiseBandHigh.
func bandAperiodicity(bins, rate, size int, f0, periodicity float64) []float64 {
	ap := make([]float64, bins)
	if f0 <= 0 {
		for k := range ap {
			ap[k] = 1
		}
		return ap
	}
	for k := range ap {
		freq := float64(k) * float64(rate) / float64(size)
		ramp := (freq - noiseBandLow) / (noiseBandHigh - noiseBandLow)
		ramp = math.Max(0, math.Min(1, ramp))
		ap[k] = periodicity + (1-periodicity)*ramp
	}
	return ap
}
