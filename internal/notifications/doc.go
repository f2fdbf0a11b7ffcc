// Package notifications delivers job outcome alerts.
//
// The default implementation posts to an ntfy topic URL taken from the
// [notifications] config section and degrades to a no-op when no topic is
// configured. The daemon publishes one event per finished job.
package notifications
