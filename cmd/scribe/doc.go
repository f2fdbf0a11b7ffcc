// Command scribe is the command-line interface for the Scribe transcription
// daemon.
//
// `scribe daemon` runs the daemon in the foreground. The remaining commands
// talk to it over the JSON-RPC Unix socket: submit a file, inspect the queue
// and job list, show or download a transcript, delete a job. `scribe probe`
// and `scribe config` work without a running daemon.
package main
