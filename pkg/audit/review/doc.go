// Package review routes high-risk audit entries to expedited review.
//
// LogFlagger emits an error-level log line per flagged entry. Queue buffers
// flagged entries and writes them on a cron schedule as JSON batches with a
// SHA-256 sidecar file.
package review
