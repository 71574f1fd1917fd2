package config

const (
	defaultDataDir               = "~/.local/share/songdub"
	defaultLogDir                = "~/.local/share/songdub/logs"
	defaultAPIBind               = "127.0.0.1:7860"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultAnalysisSampleRate    = 16000
	defaultHopMillis             = 10
	defaultF0Floor               = 50
	defaultF0Ceil                = 1100
	defaultVoicingThreshold      = 0.15
	defaultMinVoicedSamples      = 3
	defaultSmoothingMinVoiced    = 5
	defaultMinSegmentSeconds     = 0.05
	defaultMinFitSeconds         = 0.03
	defaultStretchToleranceMS    = 5
	defaultPlaceholderSeconds    = 1.0
	defaultStitchChannels        = 2
	defaultConversionSampleRate  = 44100
	defaultConversionChannels    = 1
	defaultMaxConcurrentJobs     = 1
	defaultQueueSize             = 16
	defaultSegmentWorkers        = 4
	defaultTranslationWorkers    = 4
	defaultTranslationRPS        = 2
	defaultProcessTimeoutSeconds = 1800
	defaultTTSTimeoutSeconds     = 120
	defaultMaxUploadMiB          = 200
	defaultPython                = "python3"
	defaultFFmpeg                = "ffmpeg"
	defaultFFprobe               = "ffprobe"
	defaultDemucsModel           = "htdemucs"
	defaultWhisperCommand        = "whisper"
	defaultWhisperModel          = "medium"
	defaultTranslationBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel      = "google/gemini-2.5-flash"
	defaultTranslationReferer    = "https://github.com/songdub/songdub"
	defaultTranslationTitle      = "songdub lyric translation"
	defaultTranslationTimeout    = 60
	defaultSourceLanguage        = "en"
	defaultTargetLanguage        = "es"
	defaultSpeakersDir           = "~/.local/share/songdub/speakers"
	defaultSpeaker               = "voice1"
	defaultBucket                = "songdub"
	defaultPresignExpiryMinutes  = 24 * 60
	defaultNotifyRequestTimeout  = 10
)

var defaultSmoothingWeights = []float64{0.2, 0.6, 0.2}

func defaultVoices() map[string]string {
	return map[string]string{
		"es": "es_ES-davefx-medium",
		"fr": "fr_FR-siwis-medium",
		"de": "de_DE-thorsten-medium",
	}
}

func defaultTTSCommand() []string {
	return []string{defaultPython, "-m", "songdub_tts", "--text", "{text}", "--voice", "{voice}", "--language", "{lang}", "--out", "{out}"}
}

func defaultSVCCommand() []string {
	return []string{defaultPython, "-m", "songdub_svc", "--input", "{in}", "--output", "{out}", "--speaker", "{speaker}"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Audio: Audio{
			AnalysisSampleRate:   defaultAnalysisSampleRate,
			HopMillis:            defaultHopMillis,
			F0Floor:              defaultF0Floor,
			F0Ceil:               defaultF0Ceil,
			VoicingThreshold:     defaultVoicingThreshold,
			MinVoicedSamples:     defaultMinVoicedSamples,
			SmoothingWeights:     append([]float64(nil), defaultSmoothingWeights...),
			SmoothingMinVoiced:   defaultSmoothingMinVoiced,
			MinSegmentSeconds:    defaultMinSegmentSeconds,
			MinFitSeconds:        defaultMinFitSeconds,
			StretchToleranceMS:   defaultStretchToleranceMS,
			PlaceholderSeconds:   defaultPlaceholderSeconds,
			StitchChannels:       defaultStitchChannels,
			ConversionSampleRate: defaultConversionSampleRate,
			ConversionChannels:   defaultConversionChannels,
		},
		Pipeline: Pipeline{
			MaxConcurrentJobs:     defaultMaxConcurrentJobs,
			QueueSize:             defaultQueueSize,
			SegmentWorkers:        defaultSegmentWorkers,
			TranslationWorkers:    defaultTranslationWorkers,
			TranslationRPS:        defaultTranslationRPS,
			ProcessTimeoutSeconds: defaultProcessTimeoutSeconds,
			TTSTimeoutSeconds:     defaultTTSTimeoutSeconds,
			MaxUploadMiB:          defaultMaxUploadMiB,
		},
		Tools: Tools{
			Python:         defaultPython,
			FFmpeg:         defaultFFmpeg,
			FFprobe:        defaultFFprobe,
			DemucsModel:    defaultDemucsModel,
			WhisperCommand: defaultWhisperCommand,
			WhisperModel:   defaultWhisperModel,
			TTSCommand:     defaultTTSCommand(),
			SVCCommand:     defaultSVCCommand(),
		},
		Translation: Translation{
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			Referer:        defaultTranslationReferer,
			Title:          defaultTranslationTitle,
			TimeoutSeconds: defaultTranslationTimeout,
			SourceLanguage: defaultSourceLanguage,
		},
		Languages: Languages{
			Default: defaultTargetLanguage,
			Voices:  defaultVoices(),
		},
		VoiceConversion: VoiceConversion{
			Enabled:        true,
			SpeakersDir:    defaultSpeakersDir,
			DefaultSpeaker: defaultSpeaker,
		},
		Storage: Storage{
			Bucket:               defaultBucket,
			PresignExpiryMinutes: defaultPresignExpiryMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
