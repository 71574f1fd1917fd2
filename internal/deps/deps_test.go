package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := CheckBinaries([]Requirement{{Name: "TTS", Command: "  "}})
	if results[0].Available || results[0].Detail != "command not configured" {
		t.Fatalf("unexpected status %#v", results[0])
	}
}

func TestMissingRequiredSkipsOptional(t *testing.T) {
	statuses := []Status{
		{Name: "FFmpeg", Available: true},
		{Name: "Demucs", Available: false},
		{Name: "Voice conversion", Available: false, Optional: true},
	}
	missing := MissingRequired(statuses)
	if len(missing) != 1 || missing[0].Name != "Demucs" {
		t.Fatalf("unexpected missing %#v", missing)
	}
}

func TestProbeRunsProbeArguments(t *testing.T) {
	binDir := t.TempDir()
	python := filepath.Join(binDir, "python3")
	if err := os.WriteFile(python, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	var calls []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, name+" "+strings.Join(args, " "))
		if strings.Contains(strings.Join(args, " "), "demucs") {
			return []byte("ModuleNotFoundError"), errors.New("exit status 1")
		}
		return nil, nil
	}

	results := Probe(context.Background(), []Requirement{
		{Name: "Python", Command: python, Probe: []string{"-c", "import demucs"}},
		{Name: "Plain", Command: python},
		{Name: "Missing", Command: "clearly-not-present-binary", Probe: []string{"--version"}},
	}, run)

	if len(calls) != 1 || calls[0] != python+" -c import demucs" {
		t.Fatalf("calls = %#v", calls)
	}
	if results[0].Available || !strings.Contains(results[0].Detail, "import demucs") {
		t.Fatalf("probe failure not reported: %#v", results[0])
	}
	if !results[1].Available {
		t.Fatalf("requirement without probe should be available: %#v", results[1])
	}
	if results[2].Available {
		t.Fatalf("missing binary should not be probed or available: %#v", results[2])
	}
}

func TestCheckBinariesSkipsProbes(t *testing.T) {
	binDir := t.TempDir()
	tool := filepath.Join(binDir, "tool")
	if err := os.WriteFile(tool, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	results := CheckBinaries([]Requirement{{Name: "Tool", Command: tool, Probe: []string{"--fail"}}})
	if !results[0].Available {
		t.Fatalf("PATH-only check should not run the probe: %#v", results[0])
	}
}
