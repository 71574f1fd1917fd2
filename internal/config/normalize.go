package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizePipeline()
	c.normalizeTools()
	c.normalizeTranslation()
	c.normalizeLanguages()
	if err := c.normalizeVoiceConversion(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("SONGDUB_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	c.Paths.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicBaseURL), "/")
	return nil
}

func (c *Config) normalizeAudio() {
	if len(c.Audio.SmoothingWeights) == 0 {
		c.Audio.SmoothingWeights = append([]float64(nil), defaultSmoothingWeights...)
	}
	if c.Audio.StitchChannels == 0 {
		c.Audio.StitchChannels = defaultStitchChannels
	}
	if c.Audio.ConversionChannels == 0 {
		c.Audio.ConversionChannels = defaultConversionChannels
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = defaultQueueSize
	}
	if c.Pipeline.MaxUploadMiB <= 0 {
		c.Pipeline.MaxUploadMiB = defaultMaxUploadMiB
	}
}

func (c *Config) normalizeTools() {
	c.Tools.Python = trimOr(c.Tools.Python, defaultPython)
	c.Tools.FFmpeg = trimOr(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = trimOr(c.Tools.FFprobe, defaultFFprobe)
	c.Tools.DemucsModel = trimOr(c.Tools.DemucsModel, defaultDemucsModel)
	c.Tools.WhisperCommand = trimOr(c.Tools.WhisperCommand, defaultWhisperCommand)
	c.Tools.WhisperModel = trimOr(c.Tools.WhisperModel, defaultWhisperModel)
	c.Tools.WhisperDevice = strings.ToLower(strings.TrimSpace(c.Tools.WhisperDevice))
	if len(c.Tools.TTSCommand) == 0 {
		c.Tools.TTSCommand = defaultTTSCommand()
	}
	if len(c.Tools.SVCCommand) == 0 {
		c.Tools.SVCCommand = defaultSVCCommand()
	}
}

func (c *Config) normalizeTranslation() {
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	if c.Translation.APIKey == "" {
		for _, key := range []string{"SONGDUB_LLM_API_KEY", "OPENROUTER_API_KEY"} {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				c.Translation.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.Translation.BaseURL = trimOr(c.Translation.BaseURL, defaultTranslationBaseURL)
	c.Translation.Model = trimOr(c.Translation.Model, defaultTranslationModel)
	c.Translation.Referer = trimOr(c.Translation.Referer, defaultTranslationReferer)
	c.Translation.Title = trimOr(c.Translation.Title, defaultTranslationTitle)
	c.Translation.SourceLanguage = strings.ToLower(trimOr(c.Translation.SourceLanguage, defaultSourceLanguage))
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = defaultTranslationTimeout
	}
}

func (c *Config) normalizeLanguages() {
	if len(c.Languages.Voices) == 0 {
		c.Languages.Voices = defaultVoices()
	}
	voices := make(map[string]string, len(c.Languages.Voices))
	for code, voice := range c.Languages.Voices {
		code = strings.ToLower(strings.TrimSpace(code))
		voice = strings.TrimSpace(voice)
		if code == "" || voice == "" {
			continue
		}
		voices[code] = voice
	}
	c.Languages.Voices = voices
	c.Languages.Default = strings.ToLower(trimOr(c.Languages.Default, defaultTargetLanguage))
}

func (c *Config) normalizeVoiceConversion() error {
	var err error
	if strings.TrimSpace(c.VoiceConversion.SpeakersDir) == "" {
		c.VoiceConversion.SpeakersDir = defaultSpeakersDir
	}
	if c.VoiceConversion.SpeakersDir, err = expandPath(c.VoiceConversion.SpeakersDir); err != nil {
		return fmt.Errorf("voice_conversion.speakers_dir: %w", err)
	}
	c.VoiceConversion.DefaultSpeaker = trimOr(c.VoiceConversion.DefaultSpeaker, defaultSpeaker)
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.PublicEndpoint = strings.TrimSpace(c.Storage.PublicEndpoint)
	c.Storage.Bucket = trimOr(c.Storage.Bucket, defaultBucket)
	if c.Storage.AccessKey == "" {
		c.Storage.AccessKey = os.Getenv("SONGDUB_S3_ACCESS_KEY")
	}
	if c.Storage.SecretKey == "" {
		c.Storage.SecretKey = os.Getenv("SONGDUB_S3_SECRET_KEY")
	}
	if c.Storage.PresignExpiryMinutes <= 0 {
		c.Storage.PresignExpiryMinutes = defaultPresignExpiryMinutes
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func trimOr(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
