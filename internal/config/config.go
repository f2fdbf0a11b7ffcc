package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	UploadDir string `toml:"upload_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	APIBind   string `toml:"api_bind"`
}

// Engine describes how the speech-to-text worker process is launched and
// supervised.
type Engine struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Script  string   `toml:"script"`
	Env     []string `toml:"env"`

	// MemoryOutputThresholdMB is the stdout size kept in memory before the
	// worker output spills to a temporary file.
	MemoryOutputThresholdMB int `toml:"memory_output_threshold_mb"`
	MaxOutputMB             int `toml:"max_output_mb"`
	DiagnosticTailKB        int `toml:"diagnostic_tail_kb"`

	MemoryWarnMB          int `toml:"memory_warn_mb"`
	MemoryLimitMB         int `toml:"memory_limit_mb"`
	MemoryMonitorInterval int `toml:"memory_monitor_interval"`
}

// Transcription contains the direct/chunked strategy knobs.
type Transcription struct {
	DefaultModel          string   `toml:"default_model"`
	Models                []string `toml:"models"`
	ChunkThresholdSeconds int      `toml:"chunk_threshold_seconds"`
	ChunkSeconds          int      `toml:"chunk_seconds"`
	MaxRetries            int      `toml:"max_retries"`
	RetryBackoffSeconds   int      `toml:"retry_backoff_seconds"`
	ChunkCooldownSeconds  int      `toml:"chunk_cooldown_seconds"`
	CloseGraceSeconds     int      `toml:"close_grace_seconds"`

	TimeoutBaseSeconds     int     `toml:"timeout_base_seconds"`
	TimeoutMaxSeconds      int     `toml:"timeout_max_seconds"`
	TimeoutRealtimeFactor  float64 `toml:"timeout_realtime_factor"`
	TimeoutPer100MBSeconds int     `toml:"timeout_per_100mb_seconds"`
}

// Queue contains job queue settings.
type Queue struct {
	MaxConcurrent int `toml:"max_concurrent"`
}

// Cleanup controls the periodic upload sweep and job record expiry.
type Cleanup struct {
	IntervalHours  int `toml:"interval_hours"`
	MaxAgeHours    int `toml:"max_age_hours"`
	JobExpiryHours int `toml:"job_expiry_hours"`
}

// Progress controls the outward progress stream.
type Progress struct {
	HeartbeatSeconds int `toml:"heartbeat_seconds"`
	BufferSize       int `toml:"buffer_size"`
}

// Tools names the media binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Notifications configures ntfy alerts for finished jobs.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Scribe.
//
// Configuration sections by subsystem:
//   - Paths: upload, state and log directories plus the API bind address
//   - Engine: worker process command line and supervision limits
//   - Transcription: direct vs chunked strategy, retries, timeouts
//   - Queue: concurrency cap
//   - Cleanup: upload sweep cadence and job expiry
//   - Progress: stream heartbeat
//   - Tools: ffmpeg/ffprobe binaries
//   - Notifications: optional ntfy topic
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Transcription Transcription `toml:"transcription"`
	Queue         Queue         `toml:"queue"`
	Cleanup       Cleanup       `toml:"cleanup"`
	Progress      Progress      `toml:"progress"`
	Tools         Tools         `toml:"tools"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribe/config.toml")
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

	projectPath, err := filepath.Abs("scribe.toml")
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
	for _, dir := range []string{c.Paths.UploadDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite job database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "scribe.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "scribe.lock")
}

// SocketPath returns the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "scribe.sock")
}

// FFmpegBinary returns the ffmpeg executable used for extraction and splitting.
func (c *Config) FFmpegBinary() string {
	if v := strings.TrimSpace(c.Tools.FFmpeg); v != "" {
		return v
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	if v := strings.TrimSpace(c.Tools.FFprobe); v != "" {
		return v
	}
	return "ffprobe"
}

// ValidModel reports whether the model size is one the engine accepts.
func (c *Config) ValidModel(model string) bool {
	for _, m := range c.Transcription.Models {
		if m == model {
			return true
		}
	}
	return false
}

// ChunkThreshold returns the duration above which media is chunked.
func (c *Config) ChunkThreshold() time.Duration {
	return seconds(c.Transcription.ChunkThresholdSeconds)
}

// CleanupInterval returns the delay between upload sweeps.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalHours) * time.Hour
}

// CleanupMaxAge returns the age after which unreferenced uploads are removed.
func (c *Config) CleanupMaxAge() time.Duration {
	return time.Duration(c.Cleanup.MaxAgeHours) * time.Hour
}

// JobExpiry returns how long job records are retained.
func (c *Config) JobExpiry() time.Duration {
	return time.Duration(c.Cleanup.JobExpiryHours) * time.Hour
}

// HeartbeatInterval returns the progress stream keepalive interval.
func (c *Config) HeartbeatInterval() time.Duration {
	return seconds(c.Progress.HeartbeatSeconds)
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
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
