// Package config loads, normalizes, and validates Scribe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCRIBE_ENGINE_COMMAND and FFMPEG_PATH. The Config type centralizes every
// knob the daemon and CLI need: upload/state directories, the worker process
// command line, chunking thresholds, and retry and timeout limits.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
