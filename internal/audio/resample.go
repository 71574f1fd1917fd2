package audio

import "math"

// resampleZeroCrossings is the half-width of the interpolation kernel in
// zero crossings of the (possibly lowered) cutoff sinc.
const resampleZeroCrossings = 16

// Resample converts buf to rate with a Hann-windowed sinc interpolator. When
// downsampling the kernel cutoff drops to the output Nyquist frequency.
func Resample(buf *Buffer, rate int) *Buffer {
	if rate <= 0 || buf.Rate == rate || buf.Frames() == 0 {
		out := buf.Clone()
		if rate > 0 && buf.Frames() == 0 {
			out.Rate = rate
		}
		return out
	}

	inFrames := buf.Frames()
	step := float64(buf.Rate) / float64(rate)
	outFrames := int(math.Round(float64(inFrames) / step))
	cutoff := math.Min(1, 1/step)
	halfWidth := float64(resampleZeroCrossings) / cutoff
	out := NewBuffer(rate, buf.Channels, outFrames)

	for j := 0; j < outFrames; j++ {
		pos := float64(j) * step
		lo := int(math.Ceil(pos - halfWidth))
		hi := int(math.Floor(pos + halfWidth))
		if lo < 0 {
			lo = 0
		}
		if hi > inFrames-1 {
			hi = inFrames - 1
		}
		for c := 0; c < buf.Channels; c++ {
			acc := 0.0
			norm := 0.0
			for k := lo; k <= hi; k++ {
				d := pos - float64(k)
				w := cutoff * sinc(cutoff*d) * hann(d, halfWidth)
				acc += w * buf.Samples[k*buf.Channels+c]
				norm += w
			}
			if norm != 0 && (lo == 0 || hi == inFrames-1) {
				// Renormalize near the edges where the kernel is truncated.
				acc /= norm
			}
			out.Samples[j*buf.Channels+c] = acc
		}
	}
	return out
}

// Conform resamples and remixes buf to the requested format.
func Conform(buf *Buffer, rate, channels int) *Buffer {
	out := buf
	if channels > 0 && buf.Channels != channels {
		out = out.WithChannels(channels)
	}
	if rate > 0 && out.Rate != rate {
		out = Resample(out, rate)
	}
	if out == buf {
		return buf.Clone()
	}
	return out
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func hann(d, halfWidth float64) float64 {
	if math.Abs(d) >= halfWidth {
		return 0
	}
	return 0.5 + 0.5*math.Cos(math.Pi*d/halfWidth)
}
