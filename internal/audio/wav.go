package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
	outputBitDepth = 16
)

// ErrNotWAV is returned when a file lacks a RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a wav file")

// ReadWAV decodes a WAV file into a Buffer.
func ReadWAV(path string) (*Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()
	buf, err := DecodeWAV(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return buf, nil
}

// DecodeWAV reads integer PCM (8 to 32 bit) or 32-bit float WAV data.
func DecodeWAV(r io.ReadSeeker) (*Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrNotWAV
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if pcm.Format == nil || pcm.Format.NumChannels < 1 || pcm.Format.SampleRate <= 0 {
		return nil, errors.New("audio: wav header missing format")
	}

	depth := int(decoder.BitDepth)
	samples := make([]float64, len(pcm.Data))
	switch {
	case decoder.WavAudioFormat == wavFormatFloat && depth == 32:
		for i, v := range pcm.Data {
			samples[i] = float64(math.Float32frombits(uint32(v)))
		}
	case decoder.WavAudioFormat == wavFormatFloat:
		return nil, fmt.Errorf("audio: unsupported float wav bit depth %d", depth)
	case depth == 8:
		for i, v := range pcm.Data {
			samples[i] = float64(v-128) / 128
		}
	case depth >= 16 && depth <= 32:
		scale := math.Ldexp(1, depth-1)
		for i, v := range pcm.Data {
			samples[i] = float64(v) / scale
		}
	default:
		return nil, fmt.Errorf("audio: unsupported wav bit depth %d", depth)
	}

	frames := len(samples) / pcm.Format.NumChannels
	return &Buffer{
		Rate:     pcm.Format.SampleRate,
		Channels: pcm.Format.NumChannels,
		Samples:  samples[:frames*pcm.Format.NumChannels],
	}, nil
}

// WriteWAV encodes buf as 16-bit PCM, creating parent directories as needed.
// Samples outside [-1, 1] are clipped.
func WriteWAV(path string, buf *Buffer) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create wav dir: %w", err)
	}
	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(file, buf); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close wav: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// EncodeWAV writes buf as 16-bit PCM to w.
func EncodeWAV(w io.WriteSeeker, buf *Buffer) error {
	encoder := wav.NewEncoder(w, buf.Rate, outputBitDepth, buf.Channels, wavFormatPCM)
	data := make([]int, len(buf.Samples))
	const full = 1<<(outputBitDepth-1) - 1
	for i, v := range buf.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(math.Round(v * full))
	}
	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels, SampleRate: buf.Rate},
		Data:           data,
		SourceBitDepth: outputBitDepth,
	}
	if err := encoder.Write(pcm); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}

// IsWAV reports whether path starts with a RIFF/WAVE header.
func IsWAV(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()
	return wav.NewDecoder(file).IsValidFile()
}

// WAVSeconds reads the duration of a WAV file from its header.
func WAVSeconds(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return 0, ErrNotWAV
	}
	d, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration %s: %w", filepath.Base(path), err)
	}
	return d.Seconds(), nil
}
