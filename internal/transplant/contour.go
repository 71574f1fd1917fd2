package transplant

import "sort"

// ResampleContour maps a target contour sampled at tTarget onto tGrid.
// Values are linearly interpolated between voiced target points only.
// Grid points before the first or after the last voiced point, or whose
// nearest target frame is unvoiced, are 0. Fewer than two voiced target
// points yields an all-zero contour.
func ResampleContour(f0Target, tTarget, tGrid []float64) []float64 {
	out := make([]float64, len(tGrid))
	n := min(len(f0Target), len(tTarget))
	if n == 0 {
		return out
	}

	vt := make([]float64, 0, n)
	vf := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if f0Target[i] > 0 {
			vt = append(vt, tTarget[i])
			vf = append(vf, f0Target[i])
		}
	}
	if len(vt) < 2 {
		return out
	}

	for j, t := range tGrid {
		if t < vt[0] || t > vt[len(vt)-1] {
			continue
		}
		if f0Target[nearest(tTarget[:n], t)] <= 0 {
			continue
		}
		k := sort.SearchFloat64s(vt, t)
		switch {
		case k < len(vt) && vt[k] == t:
			out[j] = vf[k]
		case k == 0:
			out[j] = vf[0]
		default:
			t0, t1 := vt[k-1], vt[k]
			frac := (t - t0) / (t1 - t0)
			out[j] = vf[k-1] + (vf[k]-vf[k-1])*frac
		}
	}
	return out
}

// nearest returns the index of the sorted times entry closest to t.
func nearest(times []float64, t float64) int {
	k := sort.SearchFloat64s(times, t)
	if k == 0 {
		return 0
	}
	if k >= len(times) {
		return len(times) - 1
	}
	if t-times[k-1] <= times[k]-t {
		return k - 1
	}
	return k
}

// Clamp zeroes values outside [floor, ceil]. The input is not modified.
func Clamp(f0 []float64, floor, ceil float64) []float64 {
	out := make([]float64, len(f0))
	for i, v := range f0 {
		if v >= floor && v <= ceil {
			out[i] = v
		}
	}
	return out
}

// SmoothVoiced applies a 3-tap weighted average inside each voiced run.
// Unvoiced frames never contribute, so run boundaries stay sharp; at a run
// edge the available taps are renormalized. Contours with minVoiced or fewer
// voiced frames are returned unchanged.
func SmoothVoiced(f0 []float64, weights [3]float64, minVoiced int) []float64 {
	out := append([]float64(nil), f0...)
	voiced := 0
	for _, v := range f0 {
		if v > 0 {
			voiced++
		}
	}
	if voiced <= minVoiced {
		return out
	}
	for i, v := range f0 {
		if v <= 0 {
			continue
		}
		sum := weights[1] * v
		norm := weights[1]
		if i > 0 && f0[i-1] > 0 {
			sum += weights[0] * f0[i-1]
			norm += weights[0]
		}
		if i+1 < len(f0) && f0[i+1] > 0 {
			sum += weights[2] * f0[i+1]
			norm += weights[2]
		}
		if norm > 0 {
			out[i] = sum / norm
		}
	}
	return out
}
