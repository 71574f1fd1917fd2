package timbre

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"songdub/internal/audio"
)

const (
	sampleRate = 16000
	fftSize    = 512
	hopSize    = 160
	melBands   = 40
	coeffs     = 24
	deltaWidth = 2
	maxSeconds = 12
	powerFloor = 1e-10
	melMaxFreq = sampleRate / 2
)

// ErrSilent is returned when a recording carries no usable energy.
var ErrSilent = errors.New("timbre: silent or empty audio")

// filterbank holds the mel triangle weights and the DCT-II basis. It depends
// only on the constants above and is shared read-only.
var bank = newFilterbank()

type filterbank struct {
	mel [][]float64 // melBands x (fftSize/2+1)
	dct [][]float64 // coeffs x melBands
}

func hzToMel(f float64) float64 { return 2595 * math.Log10(1+f/700) }
func melToHz(m float64) float64 { return 700 * (math.Pow(10, m/2595) - 1) }

func newFilterbank() *filterbank {
	bins := fftSize/2 + 1
	points := make([]float64, melBands+2)
	lo, hi := hzToMel(0), hzToMel(melMaxFreq)
	for i := range points {
		points[i] = melToHz(lo + (hi-lo)*float64(i)/float64(melBands+1))
	}

	fb := &filterbank{mel: make([][]float64, melBands), dct: make([][]float64, coeffs)}
	for b := range melBands {
		row := make([]float64, bins)
		left, centre, right := points[b], points[b+1], points[b+2]
		for k := range row {
			f := float64(k) * sampleRate / fftSize
			switch {
			case f > left && f <= centre:
				row[k] = (f - left) / (centre - left)
			case f > centre && f < right:
				row[k] = (right - f) / (right - centre)
			}
		}
		fb.mel[b] = row
	}
	for c := range coeffs {
		row := make([]float64, melBands)
		scale := math.Sqrt(2.0 / melBands)
		if c == 0 {
			scale = math.Sqrt(1.0 / melBands)
		}
		for b := range row {
			row[b] = scale * math.Cos(math.Pi*float64(c)*(float64(b)+0.5)/melBands)
		}
		fb.dct[c] = row
	}
	return fb
}

// MFCC returns one row of coefficients per frame for buf.
func MFCC(buf *audio.Buffer) [][]float64 {
	x := audio.Conform(buf, sampleRate, 1).Samples
	if len(x) < fftSize {
		x = append(append([]float64(nil), x...), make([]float64, fftSize-len(x))...)
	}
	frames := 1 + (len(x)-fftSize)/hopSize

	fft := fourier.NewFFT(fftSize)
	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/fftSize)
	}
	frame := make([]float64, fftSize)
	spec := make([]complex128, fftSize/2+1)
	power := make([]float64, fftSize/2+1)
	logMel := make([]float64, melBands)

	out := make([][]float64, frames)
	for f := range frames {
		copy(frame, x[f*hopSize:f*hopSize+fftSize])
		floats.Mul(frame, window)
		fft.Coefficients(spec, frame)
		for k, c := range spec {
			power[k] = real(c)*real(c) + imag(c)*imag(c)
		}
		for b, row := range bank.mel {
			logMel[b] = 10 * math.Log10(math.Max(floats.Dot(row, power), powerFloor))
		}
		row := make([]float64, coeffs)
		for c, basis := range bank.dct {
			row[c] = floats.Dot(basis, logMel)
		}
		out[f] = row
	}
	return out
}

// deltas applies the regression formula over +-deltaWidth frames, repeating
// edge frames.
func deltas(feat [][]float64) [][]float64 {
	n := len(feat)
	denom := 0.0
	for d := 1; d <= deltaWidth; d++ {
		denom += 2 * float64(d*d)
	}
	out := make([][]float64, n)
	for t := range feat {
		row := make([]float64, len(feat[t]))
		for d := 1; d <= deltaWidth; d++ {
			next := feat[min(t+d, n-1)]
			prev := feat[max(t-d, 0)]
			for c := range row {
				row[c] += float64(d) * (next[c] - prev[c])
			}
		}
		floats.Scale(1/denom, row)
		out[t] = row
	}
	return out
}

// Embedding summarizes a recording as the unit-normalized concatenation of
// the per-coefficient mean and standard deviation of MFCCs and their deltas.
// Recordings longer than 12 s are centre-cropped.
func Embedding(buf *audio.Buffer) ([]float64, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, ErrSilent
	}
	mono := audio.Conform(buf, sampleRate, 1)
	if limit := maxSeconds * sampleRate; mono.Frames() > limit {
		start := (mono.Frames() - limit) / 2
		mono = audio.FromMono(sampleRate, mono.Samples[start:start+limit])
	}
	if mono.Peak() == 0 {
		return nil, ErrSilent
	}

	mfcc := MFCC(mono)
	feat := append(transpose(mfcc), transpose(deltas(mfcc))...)
	means := make([]float64, len(feat))
	stds := make([]float64, len(feat))
	for i, series := range feat {
		means[i], stds[i] = stat.PopMeanStdDev(series, nil)
	}
	emb := append(means, stds...)
	return normalize(emb)
}

func transpose(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]float64, len(rows[0]))
	for c := range out {
		out[c] = make([]float64, len(rows))
		for r := range rows {
			out[c][r] = rows[r][c]
		}
	}
	return out
}

func normalize(v []float64) ([]float64, error) {
	norm := floats.Norm(v, 2)
	if norm <= 0 || math.IsNaN(norm) {
		return nil, ErrSilent
	}
	floats.Scale(1/norm, v)
	return v, nil
}
