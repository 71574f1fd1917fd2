package stretch

import "math"

const (
	frameSize = 512
	// Search radius for the best-aligned analysis frame, in samples.
	seekRadius = 160
	seekStride = 2
)

// wsola rescales x in time by 1/speed. speed > 1 shortens. Inputs shorter
// than two frames are rescaled by linear interpolation instead.
func wsola(x []float64, speed float64) []float64 {
	outLen := int(math.Round(float64(len(x)) / speed))
	if outLen <= 0 {
		return nil
	}
	if len(x) < 2*frameSize {
		return linearScale(x, outLen)
	}

	hs := frameSize / 2
	ha := float64(hs) * speed
	window := make([]float64, frameSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(frameSize))
	}

	out := make([]float64, outLen+frameSize)
	norm := make([]float64, outLen+frameSize)
	maxPos := len(x) - frameSize
	prev := 0
	for k := 0; k*hs < outLen; k++ {
		pos := 0
		if k > 0 {
			nominal := int(math.Round(float64(k) * ha))
			pos = bestOffset(x, prev+hs, nominal, maxPos)
		}
		base := k * hs
		for i := 0; i < frameSize; i++ {
			src := pos + i
			if src >= len(x) {
				break
			}
			out[base+i] += x[src] * window[i]
			norm[base+i] += window[i]
		}
		prev = pos
	}
	for i := range out[:outLen] {
		if norm[i] > 1e-3 {
			out[i] /= norm[i]
		}
	}
	return out[:outLen]
}

// bestOffset finds the start near nominal whose frame best continues the
// natural successor of the previous frame (starting at natural).
func bestOffset(x []float64, natural, nominal, maxPos int) int {
	lo := max(0, nominal-seekRadius)
	hi := min(maxPos, nominal+seekRadius)
	if natural > maxPos {
		natural = maxPos
	}
	if hi < lo {
		return min(max(nominal, 0), maxPos)
	}
	ref := x[natural : natural+frameSize]
	best, bestScore := lo, math.Inf(-1)
	for cand := lo; cand <= hi; cand += seekStride {
		seg := x[cand : cand+frameSize]
		score := 0.0
		for i := 0; i < frameSize; i += 2 {
			score += ref[i] * seg[i]
		}
		if score > bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

func linearScale(x []float64, outLen int) []float64 {
	out := make([]float64, outLen)
	if len(x) == 0 {
		return out
	}
	if len(x) == 1 || outLen == 1 {
		for i := range out {
			out[i] = x[0]
		}
		return out
	}
	step := float64(len(x)-1) / float64(outLen-1)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = x[lo]*(1-frac) + x[lo+1]*frac
	}
	return out
}
