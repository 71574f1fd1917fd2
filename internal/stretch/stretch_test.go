package stretch_test

import (
	"context"
	"math"
	"testing"

	"songdub/internal/audio"
	"songdub/internal/pitch"
	"songdub/internal/stretch"
	"songdub/internal/testsupport"
)

func TestFitHitsTargetAcrossRatios(t *testing.T) {
	fitter := stretch.NewFitter(0.03, 0.005)
	src := testsupport.Tone(16000, 180, 1)
	for _, factor := range []float64{0.1, 0.25, 0.5, 0.8, 1.3, 2, 3.7, 10} {
		target := src.Seconds() * factor
		out, err := fitter.Fit(src, target)
		if err != nil {
			t.Fatalf("Fit(%vx): %v", factor, err)
		}
		if out.Rate != stretch.Rate || out.Channels != 1 {
			t.Fatalf("Fit(%vx): format %d Hz x%d", factor, out.Rate, out.Channels)
		}
		if diff := math.Abs(out.Seconds() - target); diff > 0.01 {
			t.Fatalf("Fit(%vx): duration %.4f, target %.4f", factor, out.Seconds(), target)
		}
	}
}

func TestFitPreservesPitch(t *testing.T) {
	fitter := stretch.NewFitter(0, 0)
	src := testsupport.Tone(16000, 200, 1)
	for _, target := range []float64{0.6, 1.7} {
		out, err := fitter.Fit(src, target)
		if err != nil {
			t.Fatalf("Fit(%v): %v", target, err)
		}
		contour, err := pitch.Shared().Extract(context.Background(), out)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		median := testsupport.MedianVoiced(contour.F0)
		if math.Abs(median-200)/200 > 0.05 {
			t.Fatalf("Fit(%v): median F0 %.1f, want ~200", target, median)
		}
	}
}

func TestFitPassesThroughNearTarget(t *testing.T) {
	src := testsupport.Tone(16000, 220, 0.5)
	out, err := stretch.NewFitter(0.03, 0.005).Fit(src, 0.503)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if out.Frames() != src.Frames() {
		t.Fatalf("expected untouched length %d, got %d", src.Frames(), out.Frames())
	}
	for i := range src.Samples {
		if out.Samples[i] != src.Samples[i] {
			t.Fatalf("sample %d changed", i)
		}
	}
}

func TestFitConvertsFormatOnPassThrough(t *testing.T) {
	src := testsupport.Tone(22050, 220, 0.4).WithChannels(2)
	out, err := stretch.NewFitter(0.03, 0.005).Fit(src, 0.4)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if out.Rate != 16000 || out.Channels != 1 {
		t.Fatalf("expected mono 16 kHz, got %d Hz x%d", out.Rate, out.Channels)
	}
}

func TestFitFloorsTarget(t *testing.T) {
	out, err := stretch.NewFitter(0.03, 0.005).Fit(testsupport.Tone(16000, 200, 0.2), 0.001)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if out.Frames() != 480 {
		t.Fatalf("expected 480 frames at the 30 ms floor, got %d", out.Frames())
	}
}

func TestFitEmptyInputYieldsSilence(t *testing.T) {
	out, err := stretch.NewFitter(0.03, 0.005).Fit(audio.FromMono(16000, nil), 0.25)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if out.Frames() != 4000 || out.Peak() != 0 {
		t.Fatalf("expected 4000 silent frames, got %d (peak %v)", out.Frames(), out.Peak())
	}
}
