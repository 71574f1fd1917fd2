package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmpty is returned when an operation requires at least one frame.
var ErrEmpty = errors.New("audio: empty buffer")

// Buffer is interleaved PCM audio.
type Buffer struct {
	Rate     int
	Channels int
	Samples  []float64
}

// NewBuffer allocates a zeroed buffer holding frames frames.
func NewBuffer(rate, channels, frames int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	if frames < 0 {
		frames = 0
	}
	return &Buffer{Rate: rate, Channels: channels, Samples: make([]float64, frames*channels)}
}

// Silence returns a buffer of digital silence lasting seconds.
func Silence(rate, channels int, seconds float64) *Buffer {
	return NewBuffer(rate, channels, int(math.Round(seconds*float64(rate))))
}

// FromMono wraps mono samples without copying.
func FromMono(rate int, samples []float64) *Buffer {
	return &Buffer{Rate: rate, Channels: 1, Samples: samples}
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b == nil || b.Channels < 1 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Seconds returns the buffer duration.
func (b *Buffer) Seconds() float64 {
	if b == nil || b.Rate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Rate)
}

// Validate reports malformed buffers.
func (b *Buffer) Validate() error {
	switch {
	case b == nil:
		return errors.New("audio: nil buffer")
	case b.Rate <= 0:
		return fmt.Errorf("audio: invalid sample rate %d", b.Rate)
	case b.Channels < 1:
		return fmt.Errorf("audio: invalid channel count %d", b.Channels)
	case len(b.Samples)%b.Channels != 0:
		return fmt.Errorf("audio: %d samples do not divide into %d channels", len(b.Samples), b.Channels)
	}
	return nil
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{Rate: b.Rate, Channels: b.Channels, Samples: append([]float64(nil), b.Samples...)}
}

// Mono averages all channels into a single channel.
func (b *Buffer) Mono() *Buffer {
	if b.Channels == 1 {
		return b.Clone()
	}
	frames := b.Frames()
	out := make([]float64, frames)
	scale := 1 / float64(b.Channels)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < b.Channels; c++ {
			sum += b.Samples[i*b.Channels+c]
		}
		out[i] = sum * scale
	}
	return FromMono(b.Rate, out)
}

// WithChannels converts to the requested channel count. Mono input is
// duplicated across outputs; multichannel input is first averaged to mono.
func (b *Buffer) WithChannels(channels int) *Buffer {
	if channels < 1 || channels == b.Channels {
		return b.Clone()
	}
	mono := b.Mono()
	if channels == 1 {
		return mono
	}
	frames := mono.Frames()
	out := NewBuffer(b.Rate, channels, frames)
	for i, v := range mono.Samples {
		for c := 0; c < channels; c++ {
			out.Samples[i*channels+c] = v
		}
	}
	return out
}

// Slice returns the frames covering [start, end) seconds, clamped to the buffer.
func (b *Buffer) Slice(start, end float64) *Buffer {
	frames := b.Frames()
	from := clampFrame(int(math.Round(start*float64(b.Rate))), frames)
	to := clampFrame(int(math.Round(end*float64(b.Rate))), frames)
	if to < from {
		to = from
	}
	return &Buffer{
		Rate:     b.Rate,
		Channels: b.Channels,
		Samples:  append([]float64(nil), b.Samples[from*b.Channels:to*b.Channels]...),
	}
}

// FitFrames truncates or zero-pads to exactly frames frames.
func (b *Buffer) FitFrames(frames int) *Buffer {
	if frames < 0 {
		frames = 0
	}
	out := NewBuffer(b.Rate, b.Channels, frames)
	copy(out.Samples, b.Samples)
	return out
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	peak := 0.0
	for _, v := range b.Samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root-mean-square level across all samples.
func (b *Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range b.Samples {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

func clampFrame(v, frames int) int {
	if v < 0 {
		return 0
	}
	if v > frames {
		return frames
	}
	return v
}
