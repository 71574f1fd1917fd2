package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"songdub/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "separating", "demucs", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"separating", "demucs", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapPromotesDeadlineToTimeout(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "svc", "convert", "", context.DeadlineExceeded)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout marker, got %v", err)
	}
	if details := services.Details(err); details.Kind != services.ErrorKindTimeout {
		t.Fatalf("expected timeout kind, got %s", details.Kind)
	}
}

func TestDetailsClassification(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "pitch", "extract", "empty audio", nil)
	details := services.Details(validationErr)
	if details.Kind != services.ErrorKindValidation {
		t.Fatalf("expected validation kind, got %s", details.Kind)
	}
	if details.Message != "pitch: extract: empty audio" {
		t.Fatalf("unexpected message %q", details.Message)
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}

	plain := services.Details(errors.New("disk full"))
	if plain.Kind != services.ErrorKindTransient || plain.Message != "disk full" {
		t.Fatalf("unexpected plain details: %+v", plain)
	}

	if empty := services.Details(nil); empty.Kind != "" {
		t.Fatalf("expected empty details for nil error, got %+v", empty)
	}
}
