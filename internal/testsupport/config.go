package testsupport

import (
	"path/filepath"
	"testing"

	"songdub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// External tools point at names that do not exist so nothing shells out by
// accident; tests inject runners or stub collaborators instead.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.VoiceConversion.SpeakersDir = filepath.Join(base, "speakers")
	cfgVal.Translation.APIKey = "test"
	cfgVal.Pipeline.ProcessTimeoutSeconds = 30
	cfgVal.Pipeline.TranslationRPS = 0
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithAPIToken enables bearer authentication on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithSegmentWorkers overrides the segment pool size.
func WithSegmentWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.SegmentWorkers = n
	}
}

// WithKeepIntermediate preserves per-segment scratch files.
func WithKeepIntermediate() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.KeepIntermediate = true
	}
}

// WithConfig applies an arbitrary mutation.
func WithConfig(fn func(*config.Config)) ConfigOption {
	return func(b *configBuilder) {
		fn(b.cfg)
	}
}

// BaseDir returns the temp root backing cfg.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
