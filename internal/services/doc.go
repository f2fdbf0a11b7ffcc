// Package services defines shared utilities consumed by the transcription
// pipeline and its external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, memory exhaustion
//     detection that drives chunk retries, and the mapping from failures to
//     the normalized message stored on a failed job.
package services
