// Package jobqueue admits submitted transcription jobs and runs them in FIFO
// order with a bounded number of concurrent runs.
//
// The queue is in-memory only. Entries exist exactly while their job is
// pending; a run occupies a slot from dequeue until the runner returns (or
// panics). Position updates are pushed to a Notifier whenever placement
// changes.
package jobqueue
