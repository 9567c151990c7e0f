package config

const (
	defaultConfigPath          = "~/.config/speechtrim/config.toml"
	defaultUploadDir           = "~/.local/share/speechtrim/uploads"
	defaultStagingDir          = "~/.local/share/speechtrim/staging"
	defaultOutputDir           = "~/.local/share/speechtrim/processed_videos"
	defaultLogDir              = "~/.local/share/speechtrim/logs"
	defaultAPIBind             = "127.0.0.1:8000"
	defaultFFmpegBinary        = "ffmpeg"
	defaultSampleRate          = 16000
	defaultEnhanceFilter       = "afftdn"
	defaultOutputFormat        = "mp4"
	defaultWhisperBinary       = "whisper-cli"
	defaultWhisperModel        = "~/.local/share/speechtrim/models/ggml-base.bin"
	defaultWhisperLanguage     = "auto"
	defaultBeamSize            = 2
	defaultMaxConcurrentJobs   = 2
	defaultMaxPending          = 64
	defaultShutdownTimeout     = 30
	defaultStaleWorkspaceHours = 24
	defaultUploadMaxBytes      = 2 << 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var (
	defaultFillerWords       = []string{"um", "uh", "eh", "so", "like", "you know"}
	defaultAllowedExtensions = []string{".mp4", ".mov", ".mkv", ".avi", ".webm", ".m4v"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir:  defaultUploadDir,
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			SampleRate:    defaultSampleRate,
			EnhanceFilter: defaultEnhanceFilter,
			OutputFormat:  defaultOutputFormat,
		},
		Speech: Speech{
			Binary:    defaultWhisperBinary,
			ModelPath: defaultWhisperModel,
			Language:  defaultWhisperLanguage,
			BeamSize:  defaultBeamSize,
		},
		Filter: Filter{
			FillerWords: append([]string(nil), defaultFillerWords...),
		},
		Workflow: Workflow{
			MaxConcurrentJobs:   defaultMaxConcurrentJobs,
			MaxPending:          defaultMaxPending,
			ShutdownTimeout:     defaultShutdownTimeout,
			StaleWorkspaceHours: defaultStaleWorkspaceHours,
		},
		Upload: Upload{
			MaxBytes:          defaultUploadMaxBytes,
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
