// Package progress fans per-job progress events out to at most one live
// listener per job and serves them as Server-Sent Events.
//
// Delivery never blocks the publisher: events are dropped when no listener is
// attached or when the listener's buffer is full. A newer subscriber for the
// same job replaces (and closes) the previous one.
package progress
