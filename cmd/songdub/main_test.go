package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"songdub/internal/artifacts"
	"songdub/internal/audio"
	"songdub/internal/jobs"
	"songdub/internal/language"
	"songdub/internal/logging"
	"songdub/internal/pipeline"
	"songdub/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	requireContains(t, string(data), "[paths]")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := newTestConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "songdub.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "Config path: "+path)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "broken.toml")
	if err := os.WriteFile(path, []byte("[paths\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSubmitWaitThenInspect(t *testing.T) {
	env := setupCLITestEnv(t)
	song := writeSong(t)

	out, _, err := runCLI(t, []string{"submit", song, "--language", "fr", "--wait"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	requireContains(t, out, "Queued job ")
	requireContains(t, out, "finished")
	requireContains(t, out, artifacts.FinalMixFile)

	id := strings.TrimSpace(strings.SplitN(strings.TrimPrefix(out, "Queued job "), "\n", 2)[0])

	out, _, err = runCLI(t, []string{"jobs"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, shortID(id))
	requireContains(t, out, "chorus.wav")

	out, _, err = runCLI(t, []string{"status", id}, env.configPath)
	if err != nil {
		t.Fatalf("status job: %v", err)
	}
	requireContains(t, out, "== Job ==")
	requireContains(t, out, "la la la")
	requireContains(t, out, "fr: la la la")

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "running")
	requireContains(t, out, "== Dependencies ==")
}

func TestSubmitWithoutWaitPrintsJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"submit", writeSong(t), "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, `"job_id"`)
}

func TestSubmitRejectsUnsupportedLanguage(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"submit", writeSong(t), "--language", "tlh"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "400")
}

func TestSubmitMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"submit", filepath.Join(t.TempDir(), "nope.wav")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"status", jobs.NewID()}, env.configPath)
	if err == nil {
		t.Fatal("expected not found")
	}
	requireContains(t, err.Error(), "not found")
}

func TestLanguagesMarksDefault(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"languages"}, env.configPath)
	if err != nil {
		t.Fatalf("languages: %v", err)
	}
	requireContains(t, out, env.cfg.Languages.Default+" *")
	requireContains(t, out, "Voice")
}

func TestDaemonCommandsReportRefusedConnection(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:1"
	path := filepath.Join(testsupport.BaseDir(cfg), "songdub.toml")
	writeTestConfig(t, path, cfg)

	_, _, err := runCLI(t, []string{"jobs"}, path)
	if err == nil {
		t.Fatal("expected connection error")
	}
	requireContains(t, err.Error(), "songdub serve")
}

func TestDepsReportsMissingTools(t *testing.T) {
	cfg := newTestConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "songdub.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"deps", "--skip-checks"}, path)
	if err == nil {
		t.Fatal("expected missing tools to fail")
	}
	requireContains(t, err.Error(), "required tools missing")
	requireContains(t, out, "FFmpeg")
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Notifications.NtfyTopic = ""
	path := filepath.Join(testsupport.BaseDir(cfg), "songdub.toml")
	writeTestConfig(t, path, cfg)

	_, _, err := runCLI(t, []string{"test-notify"}, path)
	if err == nil {
		t.Fatal("expected missing topic error")
	}
	requireContains(t, err.Error(), "ntfy_topic")
}

func TestOfflineDubWritesMix(t *testing.T) {
	cfg := newTestConfig(t)
	stubs := testsupport.StubCollaborators(t, jobs.Segment{Start: 0.2, End: 1.4, Text: "la la la"})
	var progress strings.Builder
	d := &offlineDub{
		cfg:      cfg,
		langs:    language.NewSet(cfg.Languages.Voices),
		collab:   stubs.Collaborators(),
		logger:   logging.NewNop(),
		progress: newProgressPrinter(&progress, false),
	}

	song := writeSong(t)
	job, dest, err := d.run(context.Background(), song, pipeline.Request{SourceName: song, Language: "de"}, "")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != jobs.StatusDone {
		t.Fatalf("status = %s (%s)", job.Status, job.Error)
	}
	if want := filepath.Join(filepath.Dir(song), "chorus.de.wav"); dest != want {
		t.Fatalf("dest = %q, want %q", dest, want)
	}
	if !audio.IsWAV(dest) {
		t.Fatalf("%s is not a wav", dest)
	}
	requireContains(t, progress.String(), "[100%]")
	if _, err := os.Stat(artifacts.NewLayout(cfg.JobsDir(), job.ID).Root); !os.IsNotExist(err) {
		t.Fatalf("job dir should be removed, stat err = %v", err)
	}
}

func TestOfflineDubRejectsBadWindow(t *testing.T) {
	cfg := newTestConfig(t)
	stubs := testsupport.StubCollaborators(t)
	d := &offlineDub{
		cfg:      cfg,
		langs:    language.NewSet(cfg.Languages.Voices),
		collab:   stubs.Collaborators(),
		logger:   logging.NewNop(),
		progress: newProgressPrinter(&strings.Builder{}, true),
	}
	_, _, err := d.run(context.Background(), writeSong(t), pipeline.Request{Start: 5, End: 2}, "")
	if err == nil {
		t.Fatal("expected window error")
	}
}

func TestFormatWindow(t *testing.T) {
	cases := map[string][2]float64{
		"whole song":      {0, 0},
		"1.50s to end":    {1.5, 0},
		"1.00s to 12.25s": {1, 12.25},
	}
	for want, window := range cases {
		if got := formatWindow(window[0], window[1]); got != want {
			t.Errorf("formatWindow(%v) = %q, want %q", window, got, want)
		}
	}
}

func TestLogsPrintsJobLogTail(t *testing.T) {
	cfg := newTestConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "songdub.toml")
	writeTestConfig(t, path, cfg)

	id := jobs.NewID()
	jobDir := cfg.JobDir(id)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "one\ntwo\nthree\n"
	if err := os.WriteFile(filepath.Join(jobDir, logging.JobLogFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"logs", id, "-n", "2"}, path)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("output = %q", out)
	}

	if _, _, err := runCLI(t, []string{"logs", "../etc"}, path); err == nil {
		t.Fatal("expected invalid job id error")
	}
}
