package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"songdub/internal/jobs"
	"songdub/internal/logging"
	"songdub/internal/services"
)

func newTracked(t *testing.T) (*jobs.Tracker, *jobs.MemoryRegistry) {
	t.Helper()
	reg := jobs.NewMemoryRegistry()
	job := jobs.New("es", "song.wav", 0, 10)
	if err := reg.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return jobs.NewTracker(job, reg, logging.NewNop()), reg
}

func TestTrackerProgressIsMonotonic(t *testing.T) {
	tr, reg := newTracked(t)
	ctx := context.Background()

	steps := []struct {
		status   jobs.Status
		progress int
	}{
		{jobs.StatusSeparating, jobs.ProgressSeparating},
		{jobs.StatusSeparating, jobs.ProgressSeparated},
		{jobs.StatusTranscribing, 20},
		{jobs.StatusTranscribing, jobs.ProgressTranscribed},
	}
	for _, step := range steps {
		if err := tr.Advance(ctx, step.status, "", step.progress); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}
	got, err := reg.Get(ctx, tr.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Progress != jobs.ProgressTranscribed || got.Status != jobs.StatusTranscribing {
		t.Fatalf("unexpected record %+v", got)
	}

	if err := tr.Advance(ctx, jobs.StatusTranslating, "", 10); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if snap := tr.Snapshot(); snap.Progress != jobs.ProgressTranscribed || snap.Status != jobs.StatusTranslating {
		t.Fatalf("lower progress should be ignored, got %+v", snap)
	}
}

func TestTrackerSegmentProgress(t *testing.T) {
	tr, _ := newTracked(t)
	ctx := context.Background()
	if err := tr.Advance(ctx, jobs.StatusProxyTTS, "", jobs.ProgressProxyStart); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := tr.SegmentDone(ctx, 1, 2); err != nil {
		t.Fatalf("SegmentDone: %v", err)
	}
	snap := tr.Snapshot()
	if snap.Progress != 81 || snap.Stage != "proxy_tts (1/2)" {
		t.Fatalf("unexpected segment progress %d %q", snap.Progress, snap.Stage)
	}
	for done, want := range map[int]int{0: 75, 1: 77, 4: 81, 8: 87} {
		if got := jobs.SegmentProgress(done, 8); got != want {
			t.Fatalf("SegmentProgress(%d, 8) = %d, want %d", done, got, want)
		}
	}
}

func TestTrackerTerminalStateIsFinal(t *testing.T) {
	tr, reg := newTracked(t)
	ctx := context.Background()

	var fired int
	tr.OnTerminal(func(jobs.Job) { fired++ })

	if err := tr.Result(ctx, func(r *jobs.Results) { r.Vocals = "/files/x/vocals.wav" }); err != nil {
		t.Fatalf("Result: %v", err)
	}
	stageErr := services.Wrap(services.ErrExternalTool, "translating", "translate", "provider rejected request", errors.New("status 400"))
	if err := tr.Fail(ctx, stageErr); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := tr.Complete(ctx); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := tr.Advance(ctx, jobs.StatusMixing, "", 95); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := tr.Result(ctx, func(r *jobs.Results) { r.FinalMix = "late" }); err != nil {
		t.Fatalf("Result: %v", err)
	}

	got, err := reg.Get(ctx, tr.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != jobs.StatusError {
		t.Fatalf("expected error status, got %s", got.Status)
	}
	if got.Results.Vocals == "" {
		t.Fatal("partial results should survive failure")
	}
	if got.Results.FinalMix != "" {
		t.Fatal("results must not change after the terminal state")
	}
	if got.Error != "translating: translate: provider rejected request: status 400" {
		t.Fatalf("unexpected error text %q", got.Error)
	}
	if fired != 1 {
		t.Fatalf("terminal hook fired %d times", fired)
	}

	if err := tr.Note(ctx, jobs.NotePublish, "bucket unavailable"); err != nil {
		t.Fatalf("Note: %v", err)
	}
	if got, _ := reg.Get(ctx, tr.ID()); got.Notes.Publish != "bucket unavailable" {
		t.Fatalf("notes should be accepted after the terminal state, got %+v", got.Notes)
	}
}

func TestTrackerNoteKeepsFirst(t *testing.T) {
	tr, _ := newTracked(t)
	ctx := context.Background()
	_ = tr.Note(ctx, jobs.NoteTTS, "segment 0 failed")
	_ = tr.Note(ctx, jobs.NoteTTS, "segment 3 failed")
	if got := tr.Snapshot().Notes.TTS; got != "segment 0 failed" {
		t.Fatalf("expected first note to win, got %q", got)
	}
}

func TestTrackerConcurrentMutations(t *testing.T) {
	tr, _ := newTracked(t)
	ctx := context.Background()
	_ = tr.Advance(ctx, jobs.StatusProxyTTS, "", jobs.ProgressProxyStart)

	const total = 32
	var wg sync.WaitGroup
	for i := 1; i <= total; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			_ = tr.SegmentDone(ctx, done, total)
		}(i)
	}
	wg.Wait()
	if got := tr.Snapshot().Progress; got != 87 {
		t.Fatalf("expected 87 after all segments, got %d", got)
	}
}

func TestSegmentDurationFloor(t *testing.T) {
	seg := jobs.Segment{Start: 1.00, End: 1.01}
	if seg.Duration() != jobs.MinSegmentDuration {
		t.Fatalf("expected floor, got %v", seg.Duration())
	}
	if (jobs.Segment{Start: 1, End: 3}).Duration() != 2 {
		t.Fatal("unexpected duration")
	}
}
