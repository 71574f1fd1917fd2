package vocoder

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// fftPools hands out per-size FFT plans. fourier.FFT keeps internal work
// space and must not be shared between goroutines.
var fftPools sync.Map

func acquireFFT(n int) *fourier.FFT {
	pool, _ := fftPools.LoadOrStore(n, &sync.Pool{New: func() any { return fourier.NewFFT(n) }})
	return pool.(*sync.Pool).Get().(*fourier.FFT)
}

func releaseFFT(n int, fft *fourier.FFT) {
	if pool, ok := fftPools.Load(n); ok {
		pool.(*sync.Pool).Put(fft)
	}
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
