// Package engine supervises the external speech-to-text worker process.
//
// One Runner.Run call spawns exactly one process, invoked as
//
//	<command> [args...] [script] <input> <model> [--simple]
//
// in its own process group. Standard output is captured by a Sink that keeps
// small payloads in memory and spills larger ones to a temporary file, with a
// hard ceiling that kills the process. The diagnostic stream is kept in a
// rolling Tail and parsed line by line into Diagnostics: PROGRESS lines are
// forwarded to the caller while memory exhaustion and accelerator
// unavailability are flagged for classification.
//
// Exit classification is a pure table (ClassifyExit) so it can be tested
// without processes. Failures are tagged with the services error markers:
// ErrOOM, ErrTimeout, ErrCrash, ErrParse and ErrOutputTooLarge.
package engine
