package stitch

import (
	"math"

	"songdub/internal/audio"
)

// Rendered is one segment's audio and where it starts on the timeline.
type Rendered struct {
	Index int
	Start float64
	Audio *audio.Buffer
}

// Options controls the stitched output format.
type Options struct {
	Rate     int
	Channels int
	// PlaceholderSeconds is the length of the silent output for no segments.
	PlaceholderSeconds float64
}

// DefaultOptions returns 16 kHz stereo with a 1 s placeholder.
func DefaultOptions() Options {
	return Options{Rate: 16000, Channels: 2, PlaceholderSeconds: 1}
}

// Result is the stitched timeline.
type Result struct {
	Audio *audio.Buffer
	// Clipped counts output samples whose magnitude exceeds full scale.
	Clipped int
	// Placeholder is set when no segment contributed audio.
	Placeholder bool
}

// Stitch sums segments at their start offsets. The output lasts
// max(hint, latest segment end) seconds. Overlaps add without normalization.
func Stitch(segments []Rendered, hint float64, opts Options) Result {
	opts = withDefaults(opts)

	placed := make([]*audio.Buffer, 0, len(segments))
	offsets := make([]int, 0, len(segments))
	frames := int(math.Round(math.Max(hint, 0) * float64(opts.Rate)))
	for _, seg := range segments {
		if seg.Audio == nil || seg.Audio.Frames() == 0 {
			continue
		}
		buf := audio.Conform(seg.Audio, opts.Rate, opts.Channels)
		offset := int(math.Round(math.Max(seg.Start, 0) * float64(opts.Rate)))
		placed = append(placed, buf)
		offsets = append(offsets, offset)
		frames = max(frames, offset+buf.Frames())
	}

	if len(placed) == 0 {
		return Result{
			Audio:       audio.Silence(opts.Rate, opts.Channels, opts.PlaceholderSeconds),
			Placeholder: true,
		}
	}

	out := audio.NewBuffer(opts.Rate, opts.Channels, frames)
	for i, buf := range placed {
		base := offsets[i] * opts.Channels
		for j, v := range buf.Samples {
			out.Samples[base+j] += v
		}
	}

	clipped := 0
	for _, v := range out.Samples {
		if math.Abs(v) > 1 {
			clipped++
		}
	}
	return Result{Audio: out, Clipped: clipped}
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Rate <= 0 {
		opts.Rate = def.Rate
	}
	if opts.Channels <= 0 {
		opts.Channels = def.Channels
	}
	if opts.PlaceholderSeconds <= 0 {
		opts.PlaceholderSeconds = def.PlaceholderSeconds
	}
	return opts
}
