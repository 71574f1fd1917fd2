package services_test

import (
	"context"
	"testing"

	"songdub/internal/services"
)

func TestContextValuesRoundTrip(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "job-42")
	ctx = services.WithStage(ctx, "translate")
	ctx = services.WithSegment(ctx, 0)
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-42" {
		t.Fatalf("job id = %q %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "translate" {
		t.Fatalf("stage = %q %v", stage, ok)
	}
	if seg, ok := services.SegmentFromContext(ctx); !ok || seg != 0 {
		t.Fatalf("segment 0 must be reported: %d %v", seg, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("request id = %q %v", rid, ok)
	}
}

func TestEmptyValuesAreIgnored(t *testing.T) {
	ctx := services.WithStage(services.WithJobID(context.Background(), ""), "")
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("empty job id stored")
	}
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("empty stage stored")
	}
	if _, ok := services.SegmentFromContext(ctx); ok {
		t.Fatal("segment reported without being set")
	}
}
