package tts_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"songdub/internal/services"
	"songdub/internal/services/tts"
)

var template = []string{"python3", "-m", "songdub_tts", "--text", "{text}", "--voice", "{voice}", "--language", "{lang}", "--out", "{out}"}

func TestSynthesizeExpandsTemplate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "seg", "tts.wav")
	svc := tts.New(template, map[string]string{"es": "es_ES-davefx"}, time.Minute)

	var gotName string
	var gotArgs []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return nil, os.WriteFile(out, []byte("RIFF"), 0o644)
	})

	if err := svc.Synthesize(context.Background(), "hola mundo", "es", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotName != "python3" {
		t.Fatalf("name = %q", gotName)
	}
	want := []string{"-m", "songdub_tts", "--text", "hola mundo", "--voice", "es_ES-davefx", "--language", "es", "--out", out}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("args = %v", gotArgs)
		}
	}
}

func TestSynthesizeUnknownLanguage(t *testing.T) {
	svc := tts.New(template, map[string]string{"es": "v"}, time.Minute)
	err := svc.Synthesize(context.Background(), "x", "ja", filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSynthesizeMissingOutput(t *testing.T) {
	svc := tts.New(template, map[string]string{"es": "v"}, time.Minute)
	svc.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) { return nil, nil })
	err := svc.Synthesize(context.Background(), "x", "es", filepath.Join(t.TempDir(), "a.wav"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
