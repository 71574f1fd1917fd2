package pitch

import (
	"sort"
	"time"
)

// MinVoicedSamples is the smallest number of voiced frames a window needs
// before its melody is considered reliable.
const MinVoicedSamples = 3

// Contour is an F0 time series sampled every Hop. F0[i] == 0 marks an
// unvoiced frame at Times[i].
type Contour struct {
	Hop   time.Duration
	Times []float64
	F0    []float64
}

// Len returns the number of frames.
func (c *Contour) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Times)
}

// Duration returns the time covered by the contour in seconds.
func (c *Contour) Duration() float64 {
	if c.Len() == 0 {
		return 0
	}
	return c.Times[len(c.Times)-1] + c.Hop.Seconds()
}

// Window returns the frames whose times fall in [start, end) with times
// rebased so the first returned sample is relative to start. The returned
// slices are fresh copies.
func (c *Contour) Window(start, end float64) (f0, t []float64) {
	if c.Len() == 0 || end <= start {
		return nil, nil
	}
	lo := sort.SearchFloat64s(c.Times, start)
	hi := sort.SearchFloat64s(c.Times, end)
	if hi <= lo {
		return nil, nil
	}
	f0 = make([]float64, hi-lo)
	t = make([]float64, hi-lo)
	copy(f0, c.F0[lo:hi])
	for i := lo; i < hi; i++ {
		t[i-lo] = c.Times[i] - start
	}
	return f0, t
}

// Voiced reports whether the window [start, end) carries enough voiced
// frames for a melody transplant.
func (c *Contour) Voiced(start, end float64) bool {
	f0, _ := c.Window(start, end)
	return VoicedCount(f0) >= MinVoicedSamples
}

// VoicedCount returns the number of frames with positive F0.
func VoicedCount(f0 []float64) int {
	n := 0
	for _, v := range f0 {
		if v > 0 {
			n++
		}
	}
	return n
}

// VoicedMean returns the mean F0 over voiced frames, or 0 if none.
func VoicedMean(f0 []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range f0 {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
