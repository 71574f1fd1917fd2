package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateLanguages(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAudio() error {
	a := c.Audio
	if a.AnalysisSampleRate <= 0 {
		return errors.New("audio.analysis_sample_rate must be positive")
	}
	if a.HopMillis <= 0 {
		return errors.New("audio.hop_ms must be positive")
	}
	if a.F0Floor <= 0 || a.F0Ceil <= a.F0Floor {
		return errors.New("audio.f0_floor must be positive and below audio.f0_ceil")
	}
	if a.F0Ceil >= float64(a.AnalysisSampleRate)/2 {
		return fmt.Errorf("audio.f0_ceil must be below the analysis Nyquist frequency (%d Hz)", a.AnalysisSampleRate/2)
	}
	if a.VoicingThreshold <= 0 || a.VoicingThreshold >= 1 {
		return errors.New("audio.voicing_threshold must be between 0 and 1")
	}
	if a.MinVoicedSamples < 1 {
		return errors.New("audio.min_voiced_samples must be >= 1")
	}
	if len(a.SmoothingWeights) != 3 {
		return errors.New("audio.smoothing_weights must contain exactly three weights")
	}
	sum := 0.0
	for _, w := range a.SmoothingWeights {
		if w < 0 {
			return errors.New("audio.smoothing_weights must be non-negative")
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		return errors.New("audio.smoothing_weights must sum to 1")
	}
	if a.SmoothingMinVoiced < 0 {
		return errors.New("audio.smoothing_min_voiced must be >= 0")
	}
	if a.MinFitSeconds <= 0 || a.MinSegmentSeconds < a.MinFitSeconds {
		return errors.New("audio.min_fit_seconds must be positive and not exceed audio.min_segment_seconds")
	}
	if a.StretchToleranceMS < 0 {
		return errors.New("audio.stretch_tolerance_ms must be >= 0")
	}
	if a.PlaceholderSeconds <= 0 {
		return errors.New("audio.placeholder_seconds must be positive")
	}
	if a.StitchChannels < 1 || a.StitchChannels > 2 {
		return errors.New("audio.stitch_channels must be 1 or 2")
	}
	if a.ConversionSampleRate <= 0 {
		return errors.New("audio.conversion_sample_rate must be positive")
	}
	if a.ConversionChannels < 1 || a.ConversionChannels > 2 {
		return errors.New("audio.conversion_channels must be 1 or 2")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	values := map[string]int{
		"pipeline.max_concurrent_jobs":     c.Pipeline.MaxConcurrentJobs,
		"pipeline.segment_workers":         c.Pipeline.SegmentWorkers,
		"pipeline.translation_workers":     c.Pipeline.TranslationWorkers,
		"pipeline.process_timeout_seconds": c.Pipeline.ProcessTimeoutSeconds,
		"pipeline.tts_timeout_seconds":     c.Pipeline.TTSTimeoutSeconds,
	}
	if err := ensurePositiveMap(values); err != nil {
		return err
	}
	if c.Pipeline.TranslationRPS < 0 {
		return errors.New("pipeline.translation_rps must be >= 0")
	}
	return nil
}

func (c *Config) validateTools() error {
	if !containsPlaceholder(c.Tools.TTSCommand, "{out}") || !containsPlaceholder(c.Tools.TTSCommand, "{text}") {
		return errors.New("tools.tts_command must reference {text} and {out}")
	}
	if c.VoiceConversion.Enabled {
		if !containsPlaceholder(c.Tools.SVCCommand, "{in}") || !containsPlaceholder(c.Tools.SVCCommand, "{out}") {
			return errors.New("tools.svc_command must reference {in} and {out} when voice_conversion.enabled is true")
		}
	}
	return nil
}

func (c *Config) validateLanguages() error {
	if len(c.Languages.Voices) == 0 {
		return errors.New("languages.voices must configure at least one target language")
	}
	if _, ok := c.Languages.Voices[c.Languages.Default]; !ok {
		return fmt.Errorf("languages.default %q has no entry in languages.voices", c.Languages.Default)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if c.Storage.Endpoint == "" {
		return errors.New("storage.endpoint must be set when storage.enabled is true")
	}
	if strings.Contains(c.Storage.Endpoint, "://") {
		return errors.New("storage.endpoint must be host[:port] without a scheme")
	}
	if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
		return errors.New("storage.access_key and storage.secret_key must be set when storage.enabled is true (or set SONGDUB_S3_ACCESS_KEY/SONGDUB_S3_SECRET_KEY)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
}

func containsPlaceholder(args []string, placeholder string) bool {
	for _, arg := range args {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
