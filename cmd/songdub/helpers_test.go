package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"songdub/internal/config"
	"songdub/internal/daemon"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/logging"
	"songdub/internal/pipeline"
	"songdub/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	addr       string
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("SONGDUB_LLM_API_KEY", "")
	return testsupport.NewConfig(t, testsupport.WithConfig(func(cfg *config.Config) {
		cfg.Translation.APIKey = ""
		cfg.Paths.PublicBaseURL = ""
	}))
}

// setupCLITestEnv starts an in-process daemon backed by stub collaborators
// and writes a config file pointing at it.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := newTestConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	stubs := testsupport.StubCollaborators(t, jobs.Segment{Start: 0.2, End: 1.4, Text: "la la la"})
	orch, err := pipeline.NewOrchestrator(cfg, store, stubs.Collaborators(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	manager := pipeline.NewManager(cfg, orch, logging.NewNop())
	d, err := daemon.New(cfg, store, manager, language.NewSet(cfg.Languages.Voices), logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})

	cfg.Paths.APIBind = d.Addr()
	configPath := filepath.Join(testsupport.BaseDir(cfg), "songdub.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, addr: d.Addr()}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSong(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chorus.wav")
	testsupport.WriteBuffer(t, path, testsupport.Phrases(16000,
		[2]float64{0, 0.2},
		[2]float64{196, 1.2},
		[2]float64{0, 0.6},
	))
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
