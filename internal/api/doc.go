// Package api defines wire-format types and converters shared by the HTTP API
// and the IPC layer. It translates store and queue models into
// transport-friendly DTOs so the CLI and other consumers can render jobs
// without coupling to internal types.
//
// # Key Types
//
// Job: transport representation of a transcription job including its queue
// position while pending.
//
// QueueStatus: waiting count, slots in use, and a preview of the next jobs.
//
// DaemonStatus: aggregated runtime information including dependencies.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Job statuses are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Transcript text is omitted from
// list payloads and only carried on single-job lookups.
package api
