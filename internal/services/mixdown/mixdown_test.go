package mixdown_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"songdub/internal/audio"
	"songdub/internal/services"
	"songdub/internal/services/mixdown"
)

func TestMixInvokesAmix(t *testing.T) {
	var gotName, gotArgs string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, strings.Join(args, " ")
		return nil, nil
	}
	dir := t.TempDir()
	m := mixdown.New(audio.NewTranscoder("/usr/bin/ffmpeg", "", 0, runner))
	if err := m.Mix(context.Background(), "v.wav", "i.wav", dir+"/final_mix.wav"); err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if gotName != "/usr/bin/ffmpeg" || !strings.Contains(gotArgs, "amix") || !strings.Contains(gotArgs, "-i v.wav") {
		t.Fatalf("unexpected invocation %s %s", gotName, gotArgs)
	}
}

func TestMixFailureIsStageFailure(t *testing.T) {
	runner := func(context.Context, string, ...string) ([]byte, error) { return nil, errors.New("bad input") }
	m := mixdown.New(audio.NewTranscoder("", "", 0, runner))
	err := m.Mix(context.Background(), "v.wav", "i.wav", t.TempDir()+"/out.wav")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Stage != "mixing" {
		t.Fatalf("expected mixing stage, got %v", err)
	}
}
