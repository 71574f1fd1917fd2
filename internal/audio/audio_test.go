package audio_test

import (
	"context"
	"math"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"songdub/internal/audio"
)

func sine(rate int, freq, seconds float64) *audio.Buffer {
	n := int(seconds * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return audio.FromMono(rate, samples)
}

func zeroCrossings(samples []float64) int {
	count := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			count++
		}
	}
	return count
}

func TestWAVRoundTrip(t *testing.T) {
	src := sine(16000, 440, 0.5).WithChannels(2)
	path := filepath.Join(t.TempDir(), "nested", "tone.wav")
	if err := audio.WriteWAV(path, src); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if !audio.IsWAV(path) {
		t.Fatal("expected IsWAV to detect written file")
	}
	got, err := audio.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if got.Rate != 16000 || got.Channels != 2 || got.Frames() != src.Frames() {
		t.Fatalf("unexpected format: rate=%d ch=%d frames=%d", got.Rate, got.Channels, got.Frames())
	}
	for i := range src.Samples {
		if math.Abs(src.Samples[i]-got.Samples[i]) > 1.0/16000 {
			t.Fatalf("sample %d drifted: %f vs %f", i, src.Samples[i], got.Samples[i])
		}
	}
}

func TestWAVSecondsReadsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := audio.WriteWAV(path, sine(22050, 220, 1.5).WithChannels(2)); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	secs, err := audio.WAVSeconds(path)
	if err != nil {
		t.Fatalf("WAVSeconds: %v", err)
	}
	if math.Abs(secs-1.5) > 0.001 {
		t.Fatalf("expected 1.5 s, got %.4f", secs)
	}
	if _, err := audio.WAVSeconds(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteWAVClipsOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loud.wav")
	if err := audio.WriteWAV(path, audio.FromMono(8000, []float64{2, -3, 0.25, 0})); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	got, err := audio.ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if got.Peak() > 1.0001 {
		t.Fatalf("expected clipped peak, got %f", got.Peak())
	}
}

func TestChannelConversion(t *testing.T) {
	stereo := &audio.Buffer{Rate: 8000, Channels: 2, Samples: []float64{1, 0, 0.5, 0.5}}
	mono := stereo.Mono()
	if mono.Channels != 1 || !slices.Equal(mono.Samples, []float64{0.5, 0.5}) {
		t.Fatalf("unexpected mono mix: %+v", mono)
	}
	up := mono.WithChannels(2)
	if up.Frames() != 2 || up.Samples[0] != up.Samples[1] {
		t.Fatalf("unexpected upmix: %+v", up.Samples)
	}
	if stereo.Samples[0] != 1 {
		t.Fatal("conversion mutated input")
	}
}

func TestSliceAndFit(t *testing.T) {
	buf := sine(1000, 10, 2)
	part := buf.Slice(0.5, 1.5)
	if part.Frames() != 1000 {
		t.Fatalf("expected 1000 frames, got %d", part.Frames())
	}
	if buf.Slice(1.9, 5).Frames() != 100 {
		t.Fatal("slice should clamp to buffer end")
	}
	if buf.Slice(1.5, 0.5).Frames() != 0 {
		t.Fatal("inverted slice should be empty")
	}
	fit := part.FitFrames(1200)
	if fit.Frames() != 1200 || fit.Samples[1100] != 0 {
		t.Fatal("expected zero padding")
	}
	if part.FitFrames(10).Frames() != 10 {
		t.Fatal("expected truncation")
	}
}

func TestResamplePreservesPitchAndDuration(t *testing.T) {
	src := sine(44100, 220, 1)
	down := audio.Resample(src, 16000)
	if down.Rate != 16000 || down.Frames() != 16000 {
		t.Fatalf("unexpected downsample: rate=%d frames=%d", down.Rate, down.Frames())
	}
	want := zeroCrossings(src.Samples)
	if got := zeroCrossings(down.Samples); abs(got-want) > 2 {
		t.Fatalf("zero crossings changed: got %d want %d", got, want)
	}
	up := audio.Resample(down, 22050)
	if up.Frames() != 22050 {
		t.Fatalf("unexpected upsample frames: %d", up.Frames())
	}
	if rms := up.RMS(); math.Abs(rms-0.5/math.Sqrt2) > 0.02 {
		t.Fatalf("unexpected rms after round trip: %f", rms)
	}
}

func TestConformChangesRateAndChannels(t *testing.T) {
	got := audio.Conform(sine(16000, 100, 0.25), 44100, 2)
	if got.Rate != 44100 || got.Channels != 2 {
		t.Fatalf("unexpected format: %d/%d", got.Rate, got.Channels)
	}
}

func TestSilence(t *testing.T) {
	s := audio.Silence(44100, 2, 1)
	if s.Frames() != 44100 || s.Peak() != 0 || s.Seconds() != 1 {
		t.Fatalf("unexpected silence: frames=%d", s.Frames())
	}
}

func TestConvertArgs(t *testing.T) {
	args := strings.Join(audio.ConvertArgs("in.mp3", "out.wav", 16000, 1), " ")
	for _, want := range []string{"-i in.mp3", "-ar 16000", "-ac 1", "-acodec pcm_s16le", "out.wav", "-y"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestTrimArgsWindow(t *testing.T) {
	args := strings.Join(audio.TrimArgs("in.mp3", "cut.wav", 1.5, 9), " ")
	for _, want := range []string{"-ss 1.500", "-to 9.000", "-i in.mp3", "cut.wav"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
	open := strings.Join(audio.TrimArgs("in.mp3", "cut.wav", 0, 0), " ")
	if strings.Contains(open, "-ss") || strings.Contains(open, "-to") {
		t.Fatalf("unbounded trim should not seek: %q", open)
	}
}

func TestMixArgsUsesAmix(t *testing.T) {
	args := strings.Join(audio.MixArgs("a.wav", "b.wav", "mix.wav"), " ")
	for _, want := range []string{"amix", "inputs=2", "duration=longest", "dropout_transition=2", "mix.wav"} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
}

func TestTranscoderProbe(t *testing.T) {
	var gotName string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName = name
		return []byte(`{"format":{"filename":"x.mp3","duration":"12.5"},"streams":[{"codec_type":"audio","channels":2}]}`), nil
	}
	tc := audio.NewTranscoder("", "/opt/ffprobe", 0, runner)
	data, err := tc.Probe(context.Background(), "x.mp3")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if gotName != "/opt/ffprobe" {
		t.Fatalf("unexpected binary: %q", gotName)
	}
	secs, err := data.Seconds()
	if err != nil || secs != 12.5 || !data.HasAudio() {
		t.Fatalf("unexpected probe result: %v %v", secs, err)
	}
}

func TestTranscoderConvertRunsFFmpeg(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, nil
	}
	out := filepath.Join(t.TempDir(), "svc", "input.wav")
	tc := audio.NewTranscoder("/opt/ffmpeg", "", 0, runner)
	if err := tc.Convert(context.Background(), "proxy.wav", out, 44100, 1); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if gotName != "/opt/ffmpeg" {
		t.Fatalf("unexpected binary: %q", gotName)
	}
	if !slices.Equal(gotArgs, audio.ConvertArgs("proxy.wav", out, 44100, 1)) {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
}

func TestTranscoderLoadReadsWAVDirectly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := audio.WriteWAV(path, sine(22050, 300, 0.2)); err != nil {
		t.Fatal(err)
	}
	runner := func(context.Context, string, ...string) ([]byte, error) {
		t.Fatal("ffmpeg should not run for wav input")
		return nil, nil
	}
	buf, err := audio.NewTranscoder("", "", 0, runner).Load(context.Background(), path, t.TempDir(), 16000, 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Rate != 16000 || buf.Channels != 1 {
		t.Fatalf("unexpected format: %d/%d", buf.Rate, buf.Channels)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
