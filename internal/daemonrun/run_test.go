package daemonrun

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"songdub/internal/config"
)

func TestEnsureCurrentLogPointerReplacesLink(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "songdub-1.log")
	second := filepath.Join(dir, "songdub-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "songdub.log"))
	if err != nil || string(data) != "songdub-2.log" {
		t.Fatalf("pointer reads %q, %v", data, err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "songdub.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q", data)
	}
}

func TestDependencySnapshotReportsMissingTools(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFmpeg = "songdub-no-such-binary"
	var buf bytes.Buffer
	logDependencySnapshot(slog.New(slog.NewJSONHandler(&buf, nil)), &cfg)

	var record struct {
		Msg    string          `json:"msg"`
		OnPath map[string]bool `json:"on_path"`
	}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if record.Msg != "dependency snapshot" {
		t.Fatalf("msg = %q", record.Msg)
	}
	available, ok := record.OnPath["FFmpeg"]
	if !ok || available {
		t.Fatalf("FFmpeg entry = %v %v, want present and false", available, ok)
	}
}
