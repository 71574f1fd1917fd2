package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Audio contains the analysis and resynthesis parameters shared by the
// contour store, duration fitter, transplant engine, and stitcher.
type Audio struct {
	AnalysisSampleRate   int       `toml:"analysis_sample_rate"`
	HopMillis            float64   `toml:"hop_ms"`
	F0Floor              float64   `toml:"f0_floor"`
	F0Ceil               float64   `toml:"f0_ceil"`
	VoicingThreshold     float64   `toml:"voicing_threshold"`
	MinVoicedSamples     int       `toml:"min_voiced_samples"`
	SmoothingWeights     []float64 `toml:"smoothing_weights"`
	SmoothingMinVoiced   int       `toml:"smoothing_min_voiced"`
	MinSegmentSeconds    float64   `toml:"min_segment_seconds"`
	MinFitSeconds        float64   `toml:"min_fit_seconds"`
	StretchToleranceMS   float64   `toml:"stretch_tolerance_ms"`
	PlaceholderSeconds   float64   `toml:"placeholder_seconds"`
	StitchChannels       int       `toml:"stitch_channels"`
	ConversionSampleRate int       `toml:"conversion_sample_rate"`
	ConversionChannels   int       `toml:"conversion_channels"`
}

// Pipeline contains job scheduling, pool sizes, and process timeouts.
type Pipeline struct {
	MaxConcurrentJobs     int     `toml:"max_concurrent_jobs"`
	QueueSize             int     `toml:"queue_size"`
	SegmentWorkers        int     `toml:"segment_workers"`
	TranslationWorkers    int     `toml:"translation_workers"`
	TranslationRPS        float64 `toml:"translation_rps"`
	ProcessTimeoutSeconds int     `toml:"process_timeout_seconds"`
	TTSTimeoutSeconds     int     `toml:"tts_timeout_seconds"`
	KeepIntermediate      bool    `toml:"keep_intermediate"`
	MaxUploadMiB          int     `toml:"max_upload_mib"`
}

// Tools names the external programs songdub shells out to. Command templates
// accept {placeholders} that are substituted per invocation.
type Tools struct {
	Python         string   `toml:"python"`
	FFmpeg         string   `toml:"ffmpeg"`
	FFprobe        string   `toml:"ffprobe"`
	DemucsModel    string   `toml:"demucs_model"`
	WhisperCommand string   `toml:"whisper_command"`
	WhisperModel   string   `toml:"whisper_model"`
	WhisperDevice  string   `toml:"whisper_device"`
	TTSCommand     []string `toml:"tts_command"`
	SVCCommand     []string `toml:"svc_command"`
}

// Translation contains the chat-completion endpoint used for lyric translation.
type Translation struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	SourceLanguage string `toml:"source_language"`
}

// Languages maps each supported target language to its speech synthesis voice.
type Languages struct {
	Default string            `toml:"default"`
	Voices  map[string]string `toml:"voices"`
}

// VoiceConversion contains singing voice conversion settings.
type VoiceConversion struct {
	Enabled        bool   `toml:"enabled"`
	SpeakersDir    string `toml:"speakers_dir"`
	DefaultSpeaker string `toml:"default_speaker"`
}

// Storage contains optional S3-compatible artifact publishing settings.
type Storage struct {
	Enabled              bool   `toml:"enabled"`
	Endpoint             string `toml:"endpoint"`
	PublicEndpoint       string `toml:"public_endpoint"`
	AccessKey            string `toml:"access_key"`
	SecretKey            string `toml:"secret_key"`
	Bucket               string `toml:"bucket"`
	UseSSL               bool   `toml:"use_ssl"`
	PresignExpiryMinutes int    `toml:"presign_expiry_minutes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for songdub.
//
// Configuration sections by subsystem:
//   - Paths: job data directory, logs, and API bind address
//   - Audio: pitch analysis, stretching, transplant, and stitching parameters
//   - Pipeline: job concurrency, worker pools, and process timeouts
//   - Tools: external binaries and command templates
//   - Translation: chat-completion endpoint for lyric translation
//   - Languages: supported target languages and their TTS voices
//   - VoiceConversion: singer timbre conversion and speaker profiles
//   - Storage: optional MinIO/S3 artifact publishing
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths           Paths           `toml:"paths"`
	Audio           Audio           `toml:"audio"`
	Pipeline        Pipeline        `toml:"pipeline"`
	Tools           Tools           `toml:"tools"`
	Translation     Translation     `toml:"translation"`
	Languages       Languages       `toml:"languages"`
	VoiceConversion VoiceConversion `toml:"voice_conversion"`
	Storage         Storage         `toml:"storage"`
	Notifications   Notifications   `toml:"notifications"`
	Logging         Logging         `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/songdub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("songdub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobsDir returns the parent directory holding one subdirectory per job.
func (c *Config) JobsDir() string {
	return filepath.Join(c.Paths.DataDir, "jobs")
}

// JobDir returns the artifact directory for a job.
func (c *Config) JobDir(id string) string {
	return filepath.Join(c.JobsDir(), id)
}

// Hop returns the analysis frame period.
func (c *Config) Hop() time.Duration {
	return time.Duration(c.Audio.HopMillis * float64(time.Millisecond))
}

// ProcessTimeout returns the hard deadline applied to each external process call.
func (c *Config) ProcessTimeout() time.Duration {
	return time.Duration(c.Pipeline.ProcessTimeoutSeconds) * time.Second
}

// TTSTimeout returns the deadline for a single speech synthesis call.
func (c *Config) TTSTimeout() time.Duration {
	return time.Duration(c.Pipeline.TTSTimeoutSeconds) * time.Second
}

// SupportedLanguages returns the configured target language codes in sorted order.
func (c *Config) SupportedLanguages() []string {
	out := make([]string, 0, len(c.Languages.Voices))
	for code := range c.Languages.Voices {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// VoiceFor returns the synthesis voice configured for a language.
func (c *Config) VoiceFor(lang string) (string, bool) {
	voice, ok := c.Languages.Voices[strings.ToLower(strings.TrimSpace(lang))]
	return voice, ok
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
