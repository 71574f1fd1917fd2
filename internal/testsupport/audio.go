package testsupport

import (
	"math"
	"path/filepath"
	"slices"
	"testing"

	"gonum.org/v1/gonum/stat"

	"songdub/internal/audio"
)

// Tone returns a mono harmonic tone with fundamental f0. Six harmonics with
// 1/k amplitude give the estimator a voice-like spectrum.
func Tone(rate int, f0, seconds float64) *audio.Buffer {
	n := int(math.Round(seconds * float64(rate)))
	samples := make([]float64, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		v := 0.0
		for k := 1; k <= 6; k++ {
			if float64(k)*f0 >= float64(rate)/2 {
				break
			}
			v += math.Sin(2*math.Pi*float64(k)*f0*t) / float64(k)
		}
		samples[i] = 0.3 * v
	}
	return audio.FromMono(rate, samples)
}

// Phrases concatenates tones and silences: each entry is (f0, seconds) and
// f0 == 0 inserts silence.
func Phrases(rate int, parts ...[2]float64) *audio.Buffer {
	var out []float64
	for _, part := range parts {
		if part[0] <= 0 {
			out = append(out, audio.Silence(rate, 1, part[1]).Samples...)
			continue
		}
		out = append(out, Tone(rate, part[0], part[1]).Samples...)
	}
	return audio.FromMono(rate, out)
}

// WriteTone writes a tone WAV under dir and returns its path.
func WriteTone(t testing.TB, dir, name string, rate int, f0, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := audio.WriteWAV(path, Tone(rate, f0, seconds)); err != nil {
		t.Fatalf("write tone %s: %v", path, err)
	}
	return path
}

// WriteBuffer writes buf as WAV and fails the test on error.
func WriteBuffer(t testing.TB, path string, buf *audio.Buffer) {
	t.Helper()
	if err := audio.WriteWAV(path, buf); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MedianVoiced returns the median of the positive values in f0.
func MedianVoiced(f0 []float64) float64 {
	voiced := make([]float64, 0, len(f0))
	for _, v := range f0 {
		if v > 0 {
			voiced = append(voiced, v)
		}
	}
	if len(voiced) == 0 {
		return 0
	}
	slices.Sort(voiced)
	return stat.Quantile(0.5, stat.Empirical, voiced, nil)
}
