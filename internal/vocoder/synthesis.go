package vocoder

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/dsp/fourier"
)

// maxGain bounds the per-frame energy correction. A target pitch far from
// the analysed one lands its harmonics on the envelope floor, which sits at
// most about 30 dB under the formants.
const maxGain = 32.0

// Synthesize renders an with f0 as the new pitch track. f0 holds one value
// per analysis frame; zero marks an unvoiced frame. The result has the
// analysed length and sample rate.
func Synthesize(an *Analysis, f0 []float64) ([]float64, error) {
	if an == nil || an.Frames() == 0 {
		return nil, fmt.Errorf("vocoder: empty analysis")
	}
	if len(f0) != an.Frames() {
		return nil, fmt.Errorf("vocoder: f0 has %d frames, analysis has %d", len(f0), an.Frames())
	}

	size := an.FFTSize
	fft := acquireFFT(size)
	defer releaseFFT(size, fft)
	window := hannWindow(size)

	out := make([]float64, an.Length)
	addPulses(out, an, f0, fft, window)
	addNoise(out, an, f0, fft, window)
	matchEnergy(out, an)
	return out, nil
}

// addPulses overlap-adds one zero-phase response per glottal period.
func addPulses(out []float64, an *Analysis, f0 []float64, fft *fourier.FFT, window []float64) {
	responses := make([][]float64, an.Frames())
	hop := float64(an.Hop)
	pos := 0.0
	for pos < float64(len(out)) {
		frame := int(math.Round(pos / hop))
		if frame >= len(f0) {
			break
		}
		freq := interpolateF0(f0, pos/hop)
		if freq <= 0 {
			pos = (math.Floor(pos/hop) + 1) * hop
			continue
		}
		if responses[frame] == nil {
			responses[frame] = pulseResponse(an, frame, fft, window)
		}
		period := float64(an.Rate) / freq
		addAt(out, responses[frame], pos, math.Sqrt(period))
		pos += period
	}
}

// interpolateF0 returns the pitch at fractional frame position x. A zero
// neighbour makes the nearest frame's value win so voicing edges stay sharp.
func interpolateF0(f0 []float64, x float64) float64 {
	lo := int(math.Floor(x))
	if lo >= len(f0)-1 {
		return f0[len(f0)-1]
	}
	hi := lo + 1
	a, b := f0[lo], f0[hi]
	if a <= 0 || b <= 0 {
		if x-float64(lo) < 0.5 {
			return a
		}
		return b
	}
	frac := x - float64(lo)
	return a + (b-a)*frac
}

// pulseResponse builds the centred, tapered periodic response of a frame.
func pulseResponse(an *Analysis, frame int, fft *fourier.FFT, window []float64) []float64 {
	size := an.FFTSize
	env := an.Envelope[frame]
	ap := an.Aperiodicity[frame]
	spec := make([]complex128, len(env))
	for k := range env {
		spec[k] = complex(env[k]*math.Sqrt(1-ap[k]), 0)
	}
	seq := fft.Sequence(nil, spec)
	half := size / 2
	ir := make([]float64, size)
	scale := 1 / float64(size)
	for n := 0; n < size; n++ {
		ir[n] = seq[(n-half+size)%size] * scale * window[n]
	}
	return ir
}

// addAt overlap-adds ir centred on fractional position pos, splitting the
// contribution between the two nearest samples.
func addAt(out, ir []float64, pos, gain float64) {
	base := int(math.Floor(pos))
	frac := pos - float64(base)
	start := base - len(ir)/2
	w0, w1 := gain*(1-frac), gain*frac
	for n, v := range ir {
		k := start + n
		if k >= 0 && k < len(out) {
			out[k] += w0 * v
		}
		if k+1 >= 0 && k+1 < len(out) {
			out[k+1] += w1 * v
		}
	}
}

// addNoise overlap-adds envelope-shaped Gaussian noise weighted by each
// frame's aperiodicity. Target-unvoiced frames are fully aperiodic.
func addNoise(out []float64, an *Analysis, f0 []float64, fft *fourier.FFT, window []float64) {
	size := an.FFTSize
	rng := rand.New(rand.NewPCG(uint64(an.Length), uint64(an.Rate)))
	noise := make([]float64, size)
	spec := make([]complex128, size/2+1)
	seq := make([]float64, size)
	olaNorm := 1 / math.Sqrt(3*float64(size)/(8*float64(an.Hop)))
	scale := olaNorm / float64(size)

	for i := range f0 {
		env := an.Envelope[i]
		ap := an.Aperiodicity[i]
		for n := range noise {
			noise[n] = rng.NormFloat64()
		}
		fft.Coefficients(spec, noise)
		for k := range spec {
			weight := 1.0
			if f0[i] > 0 {
				weight = math.Sqrt(ap[k])
			}
			spec[k] *= complex(env[k]*weight, 0)
		}
		fft.Sequence(seq, spec)
		start := i*an.Hop - size/2
		for n, v := range seq {
			k := start + n
			if k >= 0 && k < len(out) {
				out[k] += v * scale * window[n]
			}
		}
	}
}

// matchEnergy rescales out so each frame's RMS matches the analysed input,
// interpolating gains linearly between frame centres.
func matchEnergy(out []float64, an *Analysis) {
	frames := an.Frames()
	gains := make([]float64, frames)
	for i := range gains {
		got := frameRMS(out, i*an.Hop, an.Hop)
		if got < 1e-9 {
			continue
		}
		gains[i] = math.Min(an.FrameRMS[i]/got, maxGain)
	}
	for n := range out {
		x := float64(n) / float64(an.Hop)
		lo := int(x)
		if lo >= frames-1 {
			out[n] *= gains[frames-1]
			continue
		}
		frac := x - float64(lo)
		out[n] *= gains[lo] + (gains[lo+1]-gains[lo])*frac
	}
}
