package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"songdub/internal/audio"
	"songdub/internal/fileutil"
	"songdub/internal/jobs"
	"songdub/internal/pipeline"
	"songdub/internal/services"
)

// Stubs implements every pipeline collaborator in-process. Each stage can be
// made to fail by setting its error field before the job runs.
type Stubs struct {
	t testing.TB

	Segments     []jobs.Segment
	SpeechF0     float64
	Speaker      string
	SeparateErr  error
	TranslateErr error
	SpeakerErr   error
	ConvertErr   error
	PublishErr   error
	// TTSErrors fails synthesis for the listed (cleaned) texts.
	TTSErrors map[string]error

	mu           sync.Mutex
	ttsCalls     []string
	published    []string
	contextAudio string
	speakerQuery string
	PublishURL   string
}

// StubCollaborators returns stubs that transcribe the given segments.
func StubCollaborators(t testing.TB, segments ...jobs.Segment) *Stubs {
	return &Stubs{
		t:          t,
		Segments:   segments,
		SpeechF0:   140,
		Speaker:    "voice1",
		TTSErrors:  map[string]error{},
		PublishURL: "https://objects.test",
	}
}

// Collaborators wires the stubs for an orchestrator.
func (s *Stubs) Collaborators() pipeline.Collaborators {
	return pipeline.Collaborators{
		Trimmer:     s,
		Separator:   s,
		Transcriber: s,
		Translator:  s,
		Synthesizer: s,
		Formatter:   formatter{},
		Converter:   s,
		Mixer:       s,
	}
}

// WithPublisher adds the stub publisher to collab.
func (s *Stubs) WithPublisher(collab pipeline.Collaborators) pipeline.Collaborators {
	collab.Publisher = s
	return collab
}

// TTSCalls returns the texts synthesized so far.
func (s *Stubs) TTSCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ttsCalls...)
}

// ContextAudio returns the track handed to the translator.
func (s *Stubs) ContextAudio() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextAudio
}

// SpeakerQuery returns the file speaker selection was asked to match.
func (s *Stubs) SpeakerQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerQuery
}

// Published returns the artifact names uploaded so far.
func (s *Stubs) Published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.published...)
}

func (s *Stubs) Trim(_ context.Context, input, output string, _, _ float64) error {
	return fileutil.CopyFile(input, output)
}

// Separate uses the input as the vocal stem and a quiet low tone as the
// instrumental.
func (s *Stubs) Separate(_ context.Context, input, outDir string) (services.Stems, error) {
	if s.SeparateErr != nil {
		return services.Stems{}, s.SeparateErr
	}
	src, err := audio.ReadWAV(input)
	if err != nil {
		return services.Stems{}, err
	}
	stems := services.Stems{
		Vocals:       filepath.Join(outDir, "stub_vocals.wav"),
		Instrumental: filepath.Join(outDir, "stub_instrumental.wav"),
	}
	if err := audio.WriteWAV(stems.Vocals, src); err != nil {
		return services.Stems{}, err
	}
	backing := Tone(src.Rate, 55, src.Seconds())
	for i := range backing.Samples {
		backing.Samples[i] *= 0.2
	}
	if err := audio.WriteWAV(stems.Instrumental, backing); err != nil {
		return services.Stems{}, err
	}
	return stems, nil
}

func (s *Stubs) Transcribe(context.Context, string) ([]jobs.Segment, error) {
	out := make([]jobs.Segment, len(s.Segments))
	copy(out, s.Segments)
	return out, nil
}

// Translate marks each line with the target language.
func (s *Stubs) Translate(_ context.Context, segs []jobs.Segment, contextAudio, target string) ([]jobs.Segment, error) {
	s.mu.Lock()
	s.contextAudio = contextAudio
	s.mu.Unlock()
	if s.TranslateErr != nil {
		return nil, s.TranslateErr
	}
	out := make([]jobs.Segment, len(segs))
	for i, seg := range segs {
		seg.Language = target
		if seg.Text != "" {
			seg.Translated = target + ": " + seg.Text
		}
		out[i] = seg
	}
	return out, nil
}

// Synthesize writes 0.25 s of tone per word at 22.05 kHz.
func (s *Stubs) Synthesize(ctx context.Context, text, _ string, out string) error {
	s.mu.Lock()
	s.ttsCalls = append(s.ttsCalls, text)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := s.TTSErrors[text]; ok {
		return err
	}
	words := max(len(strings.Fields(text)), 1)
	return audio.WriteWAV(out, Tone(22050, s.SpeechF0, 0.25*float64(words)))
}

func (s *Stubs) SelectSpeaker(_ context.Context, query string) (string, error) {
	s.mu.Lock()
	s.speakerQuery = query
	s.mu.Unlock()
	return s.Speaker, s.SpeakerErr
}

func (s *Stubs) Convert(_ context.Context, in, out, _ string) error {
	if s.ConvertErr != nil {
		return s.ConvertErr
	}
	return fileutil.CopyFile(in, out)
}

// Mix sums the two stems in the vocal stem's format.
func (s *Stubs) Mix(_ context.Context, vocals, instrumental, out string) error {
	v, err := audio.ReadWAV(vocals)
	if err != nil {
		return err
	}
	inst, err := audio.ReadWAV(instrumental)
	if err != nil {
		return err
	}
	inst = audio.Conform(inst, v.Rate, v.Channels)
	mixed := v.Clone()
	if inst.Frames() > mixed.Frames() {
		mixed = mixed.FitFrames(inst.Frames())
	}
	for i, x := range inst.Samples {
		mixed.Samples[i] += x
	}
	return audio.WriteWAV(out, mixed)
}

// formatter resamples in process instead of running ffmpeg.
type formatter struct{}

func (formatter) Convert(_ context.Context, input, output string, rate, channels int) error {
	buf, err := audio.ReadWAV(input)
	if err != nil {
		return err
	}
	return audio.WriteWAV(output, audio.Conform(buf, rate, channels))
}

func (s *Stubs) Publish(_ context.Context, jobID string, files map[string]string) (map[string]string, error) {
	if s.PublishErr != nil {
		return nil, s.PublishErr
	}
	urls := make(map[string]string, len(files))
	for name, path := range files {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("publish %s: %w", name, err)
		}
		s.mu.Lock()
		s.published = append(s.published, name)
		s.mu.Unlock()
		urls[name] = s.PublishURL + "/" + jobID + "/" + name
	}
	return urls, nil
}

// ErrStub is a generic collaborator failure.
var ErrStub = errors.New("stub failure")
