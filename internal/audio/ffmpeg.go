package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"songdub/internal/services"
)

// ProbeData is the subset of ffprobe's JSON output songdub reads.
type ProbeData struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat describes the container.
type ProbeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream describes one elementary stream.
type ProbeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

// Seconds returns the container duration.
func (p ProbeData) Seconds() (float64, error) {
	value := strings.TrimSpace(p.Format.Duration)
	if value == "" {
		for _, stream := range p.Streams {
			if stream.CodecType == "audio" && strings.TrimSpace(stream.Duration) != "" {
				value = stream.Duration
				break
			}
		}
	}
	if value == "" {
		return 0, fmt.Errorf("probe %s: no duration reported", p.Format.Filename)
	}
	return strconv.ParseFloat(value, 64)
}

// HasAudio reports whether at least one audio stream is present.
func (p ProbeData) HasAudio() bool {
	for _, stream := range p.Streams {
		if stream.CodecType == "audio" {
			return true
		}
	}
	return false
}

// Transcoder wraps ffmpeg and ffprobe. Command lines are assembled with
// ffmpeg-go and executed through a CommandRunner so every call carries a
// deadline.
type Transcoder struct {
	FFmpeg  string
	FFprobe string
	Timeout time.Duration
	Runner  services.CommandRunner
}

// NewTranscoder builds a transcoder using the given binaries.
func NewTranscoder(ffmpegBin, ffprobeBin string, timeout time.Duration, runner services.CommandRunner) *Transcoder {
	if runner == nil {
		runner = services.ExecRunner
	}
	if strings.TrimSpace(ffmpegBin) == "" {
		ffmpegBin = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBin) == "" {
		ffprobeBin = "ffprobe"
	}
	return &Transcoder{FFmpeg: ffmpegBin, FFprobe: ffprobeBin, Timeout: timeout, Runner: runner}
}

// Probe runs ffprobe against path.
func (t *Transcoder) Probe(ctx context.Context, path string) (ProbeData, error) {
	var data ProbeData
	args := []string{"-v", "error", "-show_format", "-show_streams", "-of", "json", path}
	output, err := services.RunWithTimeout(ctx, t.Runner, t.Timeout, t.FFprobe, args...)
	if err != nil {
		return data, services.Wrap(services.ErrExternalTool, "", "ffprobe", "probe "+filepath.Base(path), err)
	}
	if err := json.Unmarshal(output, &data); err != nil {
		return data, services.Wrap(services.ErrValidation, "", "ffprobe", "parse probe output", err)
	}
	return data, nil
}

// ConvertArgs returns the ffmpeg arguments that decode input into PCM WAV at
// rate and channels.
func ConvertArgs(input, output string, rate, channels int) []string {
	return ffmpeg.Input(input).
		Output(output, ffmpeg.KwArgs{
			"vn":     "",
			"acodec": "pcm_s16le",
			"ar":     rate,
			"ac":     channels,
		}).
		OverWriteOutput().
		GetArgs()
}

// TrimArgs returns the ffmpeg arguments that cut input to the window
// [start, end] seconds and decode it to PCM WAV. A non-positive end keeps
// everything after start.
func TrimArgs(input, output string, start, end float64) []string {
	in := ffmpeg.KwArgs{}
	if start > 0 {
		in["ss"] = strconv.FormatFloat(start, 'f', 3, 64)
	}
	if end > 0 {
		in["to"] = strconv.FormatFloat(end, 'f', 3, 64)
	}
	return ffmpeg.Input(input, in).
		Output(output, ffmpeg.KwArgs{"vn": "", "acodec": "pcm_s16le"}).
		OverWriteOutput().
		GetArgs()
}

// MixArgs returns the ffmpeg arguments that sum two stems with amix.
func MixArgs(first, second, output string) []string {
	mixed := ffmpeg.Filter(
		[]*ffmpeg.Stream{ffmpeg.Input(first), ffmpeg.Input(second)},
		"amix",
		ffmpeg.Args{},
		ffmpeg.KwArgs{"inputs": 2, "duration": "longest", "dropout_transition": 2},
	)
	return mixed.Output(output, ffmpeg.KwArgs{"acodec": "pcm_s16le"}).OverWriteOutput().GetArgs()
}

// Convert decodes any ffmpeg-readable input into a PCM WAV file.
func (t *Transcoder) Convert(ctx context.Context, input, output string, rate, channels int) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	args := ConvertArgs(input, output, rate, channels)
	if _, err := services.RunWithTimeout(ctx, t.Runner, t.Timeout, t.FFmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "ffmpeg", "convert "+filepath.Base(input), err)
	}
	return nil
}

// Trim writes the [start, end] window of input to output as PCM WAV.
func (t *Transcoder) Trim(ctx context.Context, input, output string, start, end float64) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	args := TrimArgs(input, output, start, end)
	if _, err := services.RunWithTimeout(ctx, t.Runner, t.Timeout, t.FFmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "ffmpeg", "trim "+filepath.Base(input), err)
	}
	return nil
}

// Mix sums two audio files into output with ffmpeg's amix filter.
func (t *Transcoder) Mix(ctx context.Context, first, second, output string) error {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	args := MixArgs(first, second, output)
	if _, err := services.RunWithTimeout(ctx, t.Runner, t.Timeout, t.FFmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "ffmpeg", "amix", err)
	}
	return nil
}

// Load reads path as a Buffer at rate and channels. WAV files are decoded
// natively; anything else goes through ffmpeg into scratchDir first.
func (t *Transcoder) Load(ctx context.Context, path, scratchDir string, rate, channels int) (*Buffer, error) {
	if IsWAV(path) {
		buf, err := ReadWAV(path)
		if err == nil {
			return Conform(buf, rate, channels), nil
		}
	}
	tmp, err := os.CreateTemp(scratchDir, "decode-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create scratch wav: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := t.Convert(ctx, path, tmpPath, rate, channels); err != nil {
		return nil, err
	}
	buf, err := ReadWAV(tmpPath)
	if err != nil {
		return nil, err
	}
	return Conform(buf, rate, channels), nil
}
