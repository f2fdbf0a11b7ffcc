// Package logs reads the daemon log file for the `scribe logs` command.
//
// Reads are line oriented and offset based so a follower can resume where it
// stopped. A log pointer that is re-targeted by a daemon restart shows up as a
// shorter file and restarts the follower at offset zero.
package logs
