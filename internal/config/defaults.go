package config

const (
	defaultUploadDir              = "~/.local/share/scribe/uploads"
	defaultStateDir               = "~/.local/share/scribe"
	defaultLogDir                 = "~/.local/share/scribe/logs"
	defaultAPIBind                = "127.0.0.1:7490"
	defaultLogRetentionDays       = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultEngineCommand          = "python3"
	defaultEngineScript           = "~/.local/share/scribe/engine/transcribe.py"
	defaultMemoryOutputThreshold  = 10
	defaultMaxOutputMB            = 500
	defaultDiagnosticTailKB       = 100
	defaultMemoryWarnMB           = 1000
	defaultMemoryLimitMB          = 2000
	defaultMemoryMonitorInterval  = 5
	defaultModel                  = "medium"
	defaultChunkThresholdSeconds  = 2400
	defaultChunkSeconds           = 720
	defaultMaxRetries             = 2
	defaultRetryBackoffSeconds    = 10
	defaultChunkCooldownSeconds   = 15
	defaultCloseGraceSeconds      = 2
	defaultTimeoutBaseSeconds     = 300
	defaultTimeoutMaxSeconds      = 7200
	defaultTimeoutRealtimeFactor  = 1.0
	defaultTimeoutPer100MBSeconds = 120
	defaultMaxConcurrent          = 1
	defaultCleanupIntervalHours   = 6
	defaultCleanupMaxAgeHours     = 24
	defaultJobExpiryHours         = 24
	defaultHeartbeatSeconds       = 15
	defaultProgressBufferSize     = 32
	defaultNtfyTimeoutSeconds     = 10
)

var defaultModels = []string{"tiny", "base", "small", "medium", "large"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Engine: Engine{
			Command:                 defaultEngineCommand,
			Args:                    []string{"-B"},
			Script:                  defaultEngineScript,
			Env:                     []string{"PYTHONIOENCODING=utf-8", "PYTHONUTF8=1"},
			MemoryOutputThresholdMB: defaultMemoryOutputThreshold,
			MaxOutputMB:             defaultMaxOutputMB,
			DiagnosticTailKB:        defaultDiagnosticTailKB,
			MemoryWarnMB:            defaultMemoryWarnMB,
			MemoryLimitMB:           defaultMemoryLimitMB,
			MemoryMonitorInterval:   defaultMemoryMonitorInterval,
		},
		Transcription: Transcription{
			DefaultModel:           defaultModel,
			Models:                 append([]string(nil), defaultModels...),
			ChunkThresholdSeconds:  defaultChunkThresholdSeconds,
			ChunkSeconds:           defaultChunkSeconds,
			MaxRetries:             defaultMaxRetries,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			ChunkCooldownSeconds:   defaultChunkCooldownSeconds,
			CloseGraceSeconds:      defaultCloseGraceSeconds,
			TimeoutBaseSeconds:     defaultTimeoutBaseSeconds,
			TimeoutMaxSeconds:      defaultTimeoutMaxSeconds,
			TimeoutRealtimeFactor:  defaultTimeoutRealtimeFactor,
			TimeoutPer100MBSeconds: defaultTimeoutPer100MBSeconds,
		},
		Queue: Queue{
			MaxConcurrent: defaultMaxConcurrent,
		},
		Cleanup: Cleanup{
			IntervalHours:  defaultCleanupIntervalHours,
			MaxAgeHours:    defaultCleanupMaxAgeHours,
			JobExpiryHours: defaultJobExpiryHours,
		},
		Progress: Progress{
			HeartbeatSeconds: defaultHeartbeatSeconds,
			BufferSize:       defaultProgressBufferSize,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
