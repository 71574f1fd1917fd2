package translator_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"songdub/internal/audio"
	"songdub/internal/jobs"
	"songdub/internal/logging"
	"songdub/internal/services"
	"songdub/internal/services/translator"
)

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	fail    string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, system)
	f.mu.Unlock()
	if user == f.fail {
		return "", errors.New("upstream exploded")
	}
	return fmt.Sprintf(`{"translation": "%s!"}`, strings.ToUpper(user)), nil
}

func segments(texts ...string) []jobs.Segment {
	out := make([]jobs.Segment, len(texts))
	for i, text := range texts {
		out[i] = jobs.Segment{Index: i, Start: float64(i), End: float64(i) + 1, Text: text}
	}
	return out
}

func TestTranslateKeepsOrderAndEmptyText(t *testing.T) {
	fake := &fakeCompleter{}
	tr := translator.New(fake, translator.Options{Workers: 3, RequestsPerSecond: 1000}, logging.NewNop())
	in := segments("one", "", "three", "four", "five")

	out, err := tr.Translate(context.Background(), in, "", "es")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := []string{"ONE!", "", "THREE!", "FOUR!", "FIVE!"}
	for i, seg := range out {
		if seg.Translated != want[i] {
			t.Fatalf("segment %d: got %q want %q", i, seg.Translated, want[i])
		}
		if seg.Language != "es" || seg.Text != in[i].Text || seg.Start != in[i].Start {
			t.Fatalf("segment %d fields not carried: %+v", i, seg)
		}
	}
	if in[0].Translated != "" {
		t.Fatal("input segments must not be modified")
	}
	if len(fake.prompts) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(fake.prompts))
	}
	if !strings.Contains(fake.prompts[0], "from English to Spanish") {
		t.Fatalf("prompt should name the languages: %q", fake.prompts[0])
	}
}

func TestTranslateDescribesContextAudio(t *testing.T) {
	vocals := filepath.Join(t.TempDir(), "vocals.wav")
	if err := audio.WriteWAV(vocals, audio.Silence(16000, 1, 12)); err != nil {
		t.Fatal(err)
	}
	fake := &fakeCompleter{}
	tr := translator.New(fake, translator.Options{Workers: 1}, logging.NewNop())
	if _, err := tr.Translate(context.Background(), segments("one"), vocals, "es"); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if !strings.Contains(fake.prompts[0], "vocals.wav, which runs 12.0 seconds") {
		t.Fatalf("prompt should describe the track: %q", fake.prompts[0])
	}

	fake = &fakeCompleter{}
	tr = translator.New(fake, translator.Options{Workers: 1}, logging.NewNop())
	missing := filepath.Join(t.TempDir(), "gone.wav")
	if _, err := tr.Translate(context.Background(), segments("one"), missing, "es"); err != nil {
		t.Fatalf("unreadable context must not fail translation: %v", err)
	}
	if strings.Contains(fake.prompts[0], "gone.wav") {
		t.Fatalf("prompt should omit unreadable context: %q", fake.prompts[0])
	}
}

func TestTranslateFailureIsStageError(t *testing.T) {
	fake := &fakeCompleter{fail: "two"}
	tr := translator.New(fake, translator.Options{Workers: 2}, logging.NewNop())
	_, err := tr.Translate(context.Background(), segments("one", "two", "three"), "", "fr")
	if err == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if details := services.Details(err); details.Stage != "translating" {
		t.Fatalf("unexpected stage %q", details.Stage)
	}
}
