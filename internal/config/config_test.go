package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"songdub/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("SONGDUB_LLM_API_KEY", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "songdub")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.JobDir("abc") != filepath.Join(wantData, "jobs", "abc") {
		t.Fatalf("unexpected job dir: %q", cfg.JobDir("abc"))
	}
	if cfg.Paths.APIBind != "127.0.0.1:7860" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Translation.APIKey != "or-key" {
		t.Fatalf("expected translation key from env, got %q", cfg.Translation.APIKey)
	}
	if cfg.Audio.AnalysisSampleRate != 16000 || cfg.Hop().Milliseconds() != 10 {
		t.Fatalf("unexpected analysis grid: %d Hz / %s", cfg.Audio.AnalysisSampleRate, cfg.Hop())
	}
	if got := cfg.SupportedLanguages(); strings.Join(got, ",") != "de,es,fr" {
		t.Fatalf("unexpected languages: %v", got)
	}
	if cfg.VoiceConversion.DefaultSpeaker != "voice1" {
		t.Fatalf("unexpected default speaker: %q", cfg.VoiceConversion.DefaultSpeaker)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
}

func TestLoadCustomPathOverridesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	type payload struct {
		Paths struct {
			DataDir  string `toml:"data_dir"`
			APIBind  string `toml:"api_bind"`
			APIToken string `toml:"api_token"`
		} `toml:"paths"`
		Pipeline struct {
			SegmentWorkers int `toml:"segment_workers"`
		} `toml:"pipeline"`
		Languages struct {
			Default string            `toml:"default"`
			Voices  map[string]string `toml:"voices"`
		} `toml:"languages"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	var p payload
	p.Paths.DataDir = "~/dub-data"
	p.Paths.APIBind = " 0.0.0.0:9000 "
	p.Paths.APIToken = "secret"
	p.Pipeline.SegmentWorkers = 8
	p.Languages.Default = "IT"
	p.Languages.Voices = map[string]string{"IT": "it_IT-riccardo"}
	p.Logging.Format = "JSON"

	data, err := toml.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to resolve, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "dub-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("expected trimmed api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.SegmentWorkers != 8 {
		t.Fatalf("unexpected segment workers: %d", cfg.Pipeline.SegmentWorkers)
	}
	if voice, ok := cfg.VoiceFor("it"); !ok || voice != "it_IT-riccardo" {
		t.Fatalf("unexpected voice lookup: %q %v", voice, ok)
	}
	if _, ok := cfg.VoiceFor("es"); ok {
		t.Fatal("expected configured voices to replace defaults")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	// Defaults survive for keys the file omits.
	if cfg.Audio.MinVoicedSamples != 3 {
		t.Fatalf("unexpected min voiced samples: %d", cfg.Audio.MinVoicedSamples)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"weights", func(c *config.Config) { c.Audio.SmoothingWeights = []float64{0.5, 0.5} }, "smoothing_weights"},
		{"weights sum", func(c *config.Config) { c.Audio.SmoothingWeights = []float64{0.3, 0.6, 0.3} }, "sum to 1"},
		{"f0 range", func(c *config.Config) { c.Audio.F0Ceil = 40 }, "f0_floor"},
		{"workers", func(c *config.Config) { c.Pipeline.SegmentWorkers = 0 }, "segment_workers"},
		{"default language", func(c *config.Config) { c.Languages.Default = "ja" }, "languages.default"},
		{"tts template", func(c *config.Config) { c.Tools.TTSCommand = []string{"tts"} }, "tts_command"},
		{"storage", func(c *config.Config) { c.Storage.Enabled = true }, "storage.endpoint"},
		{"storage scheme", func(c *config.Config) {
			c.Storage.Enabled = true
			c.Storage.Endpoint = "http://minio:9000"
		}, "without a scheme"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Tools.DemucsModel != "htdemucs" {
		t.Fatalf("unexpected demucs model: %q", cfg.Tools.DemucsModel)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
