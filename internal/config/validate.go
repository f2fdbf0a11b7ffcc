package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateCleanup(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateEngine() error {
	if strings.TrimSpace(c.Engine.Command) == "" {
		return errors.New("engine.command must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"engine.memory_output_threshold_mb": c.Engine.MemoryOutputThresholdMB,
		"engine.max_output_mb":              c.Engine.MaxOutputMB,
		"engine.diagnostic_tail_kb":         c.Engine.DiagnosticTailKB,
	}); err != nil {
		return err
	}
	if c.Engine.MaxOutputMB < c.Engine.MemoryOutputThresholdMB {
		return errors.New("engine.max_output_mb must be >= engine.memory_output_threshold_mb")
	}
	if c.Engine.MemoryWarnMB < 0 || c.Engine.MemoryLimitMB < 0 || c.Engine.MemoryMonitorInterval < 0 {
		return errors.New("engine memory monitor settings must be >= 0")
	}
	if c.Engine.MemoryLimitMB > 0 && c.Engine.MemoryWarnMB > c.Engine.MemoryLimitMB {
		return errors.New("engine.memory_warn_mb must not exceed engine.memory_limit_mb")
	}
	for _, kv := range c.Engine.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("engine.env entry %q must be KEY=VALUE", kv)
		}
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	if len(t.Models) == 0 {
		return errors.New("transcription.models must include at least one model")
	}
	if !slices.Contains(t.Models, t.DefaultModel) {
		return fmt.Errorf("transcription.default_model %q is not listed in transcription.models", t.DefaultModel)
	}
	if err := ensurePositiveMap(map[string]int{
		"transcription.chunk_threshold_seconds": t.ChunkThresholdSeconds,
		"transcription.chunk_seconds":           t.ChunkSeconds,
		"transcription.max_retries":             t.MaxRetries,
		"transcription.timeout_base_seconds":    t.TimeoutBaseSeconds,
		"transcription.timeout_max_seconds":     t.TimeoutMaxSeconds,
	}); err != nil {
		return err
	}
	if t.TimeoutMaxSeconds < t.TimeoutBaseSeconds {
		return errors.New("transcription.timeout_max_seconds must be >= transcription.timeout_base_seconds")
	}
	if t.RetryBackoffSeconds < 0 || t.ChunkCooldownSeconds < 0 || t.CloseGraceSeconds < 0 || t.TimeoutPer100MBSeconds < 0 {
		return errors.New("transcription delays must be >= 0")
	}
	if t.TimeoutRealtimeFactor < 0 {
		return errors.New("transcription.timeout_realtime_factor must be >= 0")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxConcurrent < 1 {
		return errors.New("queue.max_concurrent must be >= 1")
	}
	return nil
}

func (c *Config) validateCleanup() error {
	return ensurePositiveMap(map[string]int{
		"cleanup.interval_hours":     c.Cleanup.IntervalHours,
		"cleanup.max_age_hours":      c.Cleanup.MaxAgeHours,
		"cleanup.job_expiry_hours":   c.Cleanup.JobExpiryHours,
		"progress.heartbeat_seconds": c.Progress.HeartbeatSeconds,
		"progress.buffer_size":       c.Progress.BufferSize,
	})
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
