// Package retention enforces the regulatory retention policy on the audit
// trail. A Pruner calls PurgeExpired, which only removes entries whose
// retention date has passed; a Scheduler runs it on a cron expression.
package retention
