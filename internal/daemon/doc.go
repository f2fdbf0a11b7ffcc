// Package daemon coordinates the long-running Scribe process.
//
// It wires configuration, job storage, the upload file store, the progress
// publisher, the job queue and the transcription orchestrator into a single
// lifecycle with flock-based locking to prevent multiple instances. On start
// it fails jobs a previous run left unfinished, since queue state lives only
// in memory, then launches the queue, the periodic upload sweep, and the HTTP
// API with its Server-Sent Events progress stream.
//
// Keep orchestration logic here: transcription steps live in their own
// packages while the daemon focuses on startup, shutdown, submission and
// job maintenance.
package daemon
