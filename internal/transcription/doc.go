// Package transcription drives one job from a stored source file to a
// persisted transcript.
//
// Orchestrator.Run probes the media duration and picks a strategy. Files up
// to the chunk threshold go to a single engine run with a size- and
// duration-derived timeout. Longer files are converted to audio, split into
// fixed-length chunks and transcribed strictly in order in simple mode, with
// memory-exhaustion failures retried after a growing backoff and a cooldown
// between chunks so accelerator memory can drain. Chunk texts are joined
// with single spaces.
//
// Every outcome ends with the job in a terminal state, the source file
// deleted and the progress stream closed; chunk directories and extracted
// audio are removed on every path.
package transcription
